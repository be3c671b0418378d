package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
	"github.com/mindzed/attendance/services/email"
	"github.com/mindzed/attendance/storage/database/inmem"
	"github.com/mindzed/attendance/tests"
)

var (
	usrRepo    user.Repository
	schoolRepo school.Repository
)

func setup(t *testing.T) *commandLine {
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)
	core.ParseEmailTemplates(conf, logger)

	// set up DB & repos
	db := inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)
	schoolRepo = inmemdb.NewSchoolRepository(db)

	// set up services
	validate := testutil.NewValidator()
	usrSvc := user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf, logger), validate, logger, conf)

	// start CLI
	return &commandLine{
		out:       io.Discard,
		usrSvc:    usrSvc,
		schoolSvc: school.NewService(schoolRepo, usrSvc, validate, logger),
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func runCliTests(t *testing.T, cli *commandLine, tests []cliTest) {
	t.Helper()
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			mockPassword(tt.pwd)
			err := cli.run(args)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, err)
			case tt.wantErrStr != "":
				if assert.Error(t, err) {
					assert.Equal(t, tt.wantErrStr, err.Error())
				}
			default:
				assert.NoError(t, err)
			}
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	runMigrationsFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	runCliTests(t, cli, []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "leave_requests", "sql"}},
	})
}

func Test_commandLine_createAdmin(t *testing.T) {
	cli := setup(t)

	runCliTests(t, cli, []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"createadmin"}, wantErr: errHelp},
		{name: "no password", args: []string{"createadmin", "-name", "Root", "-email", "root@test.io"}, wantErr: errHelp},
		{name: "create", args: []string{"createadmin", "-name", "Root", "-email", "root@test.io"}, pwd: "s3cret-pass"},
		{
			name: "already initialized", args: []string{"createadmin", "-name", "Other", "-email", "other@test.io"}, pwd: "s3cret-pass",
			wantErr: user.ErrAlreadyInitialized,
		},
	})

	usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Email: "root@test.io"})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, usr.Role)
	assert.NoError(t, usr.CheckPassword("s3cret-pass"))
}

func Test_commandLine_addUserAndClass(t *testing.T) {
	cli := setup(t)
	ctx := context.Background()

	runCliTests(t, cli, []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{
			name: "unknown role", args: []string{"adduser", "-name", "Janitor", "-email", "j@test.io", "-role", "janitor"},
			wantErrStr: "\"janitor\": invalid role",
		},
		{
			name: "hod", args: []string{"adduser", "-name", "Hod", "-email", "hod@test.io", "-role", "teacher", "-hod", "-designation", "Professor"},
			pwd: "s3cret-pass",
		},
		{name: "class without coordinator", args: []string{"addclass", "-name", "CSE B", "-batch", "2023"}},
		{name: "class", args: []string{"addclass", "-name", "CSE A", "-batch", "2022", "-coordinator", "hod@test.io"}},
		{
			name: "coordinator already taken", args: []string{"addclass", "-name", "CSE C", "-batch", "2024", "-coordinator", "hod@test.io"},
			wantErr: school.ErrCoordinatorTaken,
		},
		{name: "class: no args", args: []string{"addclass", "-name", "CSE D"}, wantErr: errHelp},
	})

	hod, err := usrRepo.GetUser(ctx, user.GetFilter{Email: "hod@test.io"})
	require.NoError(t, err)
	prof, err := schoolRepo.GetTeacherProfile(ctx, hod.ID)
	require.NoError(t, err)
	assert.True(t, prof.IsHod)
	assert.Equal(t, "Professor", prof.Designation)

	classes, err := schoolRepo.QueryClasses(ctx, school.ClassFilter{CoordinatorID: prof.ID})
	require.NoError(t, err)
	require.Len(t, classes, 1)
	classID := classes[0].ID

	runCliTests(t, cli, []cliTest{
		{
			name: "student", args: []string{"adduser", "-name", "Stu", "-email", "stu@test.io", "-role", "STUDENT", "-class", classID, "-roll", "07"},
		},
		{
			name: "session", args: []string{"addsession", "-class", classID, "-subject", "Maths", "-date", "2024-02-14T10:00:00Z"},
		},
		{
			name: "session: bad date", args: []string{"addsession", "-class", classID, "-subject", "Maths", "-date", "tomorrow"},
			wantErrStr: `parsing time "tomorrow" as "2006-01-02T15:04:05Z07:00": cannot parse "tomorrow" as "2006"`,
		},
	})

	stu, err := usrRepo.GetUser(ctx, user.GetFilter{Email: "stu@test.io"})
	require.NoError(t, err)
	assert.False(t, stu.HasPassword())
	stuProf, err := schoolRepo.GetStudentProfile(ctx, stu.ID)
	require.NoError(t, err)
	assert.Equal(t, classID, stuProf.ClassID)
	assert.Equal(t, "07", stuProf.RollNumber)
	assert.Equal(t, 1, stuProf.CurrentSemester)

	day := time.Date(2024, time.February, 14, 10, 0, 0, 0, time.UTC)
	count, err := schoolRepo.CountSessions(ctx, day.Add(-time.Hour), day.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)

	usr := testutil.CreateUser(t, usrRepo, "User", "user@test.io", "old-password", user.RoleStudent)

	runCliTests(t, cli, []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.io"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-email", "lol@test.io"}, pwd: "long-enough", wantErr: user.ErrNotFound},
		{
			name: "too short", args: []string{"resetpassword", "-email", usr.Email}, pwd: "short",
			wantErrStr: "New password must be at least 8 characters long.",
		},
		{name: "reset", args: []string{"resetpassword", "-email", usr.Email}, pwd: "long-enough"},
	})

	refreshedUsr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
	require.NoError(t, err)
	assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash))
	assert.NoError(t, refreshedUsr.CheckPassword("long-enough"))
}
