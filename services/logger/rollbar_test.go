package logsvc

import (
	"errors"
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/user"
)

func newTestLogger(t *testing.T) (*RollbarLogger, *test.Hook) {
	t.Helper()
	conf := core.NewTestConfig()
	std := NewStdLogger(conf)
	std.SetOutput(io.Discard)
	hook := test.NewLocal(std)
	return NewRollbarLogger(std, conf), hook
}

func TestRollbarLogger_fields(t *testing.T) {
	logger, hook := newTestLogger(t)
	err := errors.New("boom")
	id := user.Identity{ID: "42", Name: "Root", Email: "root@test.io", Role: user.RoleAdmin}

	logger.Error("query failed", err, map[string]interface{}{"table": "users"}, id, 7)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "query failed", entry.Message)
	assert.Equal(t, err, entry.Data[logrus.ErrorKey])
	assert.Equal(t, "users", entry.Data["table"])
	assert.Equal(t, "42", entry.Data["user_id"])
	assert.Equal(t, user.RoleAdmin, entry.Data["user_role"])
	assert.Equal(t, []interface{}{7}, entry.Data["args"])
	assert.NotContains(t, entry.Data, "component")
}

func TestRollbarLogger_WithComponent(t *testing.T) {
	logger, hook := newTestLogger(t)
	dbLogger := logger.WithComponent("DB")

	dbLogger.Info("connected")
	require.Len(t, hook.Entries, 1)
	assert.Equal(t, "DB", hook.LastEntry().Data["component"])

	// the parent logger is left untouched
	logger.Warn("slow request")
	require.Len(t, hook.Entries, 2)
	assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	assert.NotContains(t, hook.LastEntry().Data, "component")
}

func TestNewStdLogger(t *testing.T) {
	conf := core.NewTestConfig()
	assert.Equal(t, logrus.DebugLevel, NewStdLogger(conf).GetLevel())

	conf.TestMode = false
	conf.Debug = false
	std := NewStdLogger(conf)
	assert.Equal(t, logrus.InfoLevel, std.GetLevel())
	assert.IsType(t, &logrus.JSONFormatter{}, std.Formatter)
}
