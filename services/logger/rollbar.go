package logsvc

import (
	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/sirupsen/logrus"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/user"
)

// RollbarLogger reports to Rollbar and writes structured lines through logrus.
type RollbarLogger struct {
	std       *logrus.Logger
	component string
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *logrus.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug && !conf.TestMode && conf.RollbarToken != "")
	return &RollbarLogger{std: std}
}

// NewStdLogger returns the logrus logger used by RollbarLogger: text in debug, JSON otherwise.
func NewStdLogger(conf *core.Config) *logrus.Logger {
	std := logrus.New()
	if conf.Debug || conf.TestMode {
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		std.SetLevel(logrus.DebugLevel)
	} else {
		std.SetFormatter(&logrus.JSONFormatter{})
		std.SetLevel(logrus.InfoLevel)
	}
	return std
}

// WithComponent returns a logger tagging its lines with the name of the component, eg. "API" or "DB".
func (l RollbarLogger) WithComponent(name string) *RollbarLogger {
	l.component = name
	return &l
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// expected fmt: msg | error, map[string]interface{}, user.Identity
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var usrSet bool
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		if id, ok := arg.(user.Identity); ok {
			if !usrSet && !id.IsZero() { // only set one user
				rollbar.SetPerson(id.ID, id.Name, id.Email)
				usrSet = true
			}
		} else {
			newArgs = append(newArgs, arg)
		}
	}
	if !usrSet {
		rollbar.ClearPerson()
	}
	return newArgs
}

func (l RollbarLogger) entry(args []interface{}) *logrus.Entry {
	fields := make(logrus.Fields, len(args))
	var extra []interface{}
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			fields[logrus.ErrorKey] = a
		case map[string]interface{}:
			for k, v := range a {
				fields[k] = v
			}
		case user.Identity:
			fields["user_id"] = a.ID
			fields["user_role"] = a.Role
		default:
			extra = append(extra, a)
		}
	}
	if len(extra) > 0 {
		fields["args"] = extra
	}
	if l.component != "" {
		fields["component"] = l.component
	}
	return l.std.WithFields(fields)
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.entry(args).Debug(msg)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.entry(args).Info(msg)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.entry(args).Warn(msg)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.entry(args).Error(msg)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	rollbar.Wait()
	l.entry(args).Fatal(msg)
}
