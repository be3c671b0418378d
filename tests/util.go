package testutil

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/crypto/bcrypt"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
	"github.com/mindzed/attendance/services/logger"
	"github.com/mindzed/attendance/storage/database"
)

// NewLogger returns a logger that discards its output.
func NewLogger(conf *core.Config) core.Logger {
	std := logsvc.NewStdLogger(conf)
	std.SetOutput(io.Discard)
	return logsvc.NewRollbarLogger(std, conf)
}

func NewValidator() *validator.Validate {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate
}

// OpenDB connects to TEST_DATABASE_URL, migrates it and empties it. The test is skipped when the variable is unset.
func OpenDB(t *testing.T) *sqlx.DB {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	db, err := database.OpenURL(context.Background(), dsn)
	if err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	if err = database.Migrate(db.DB); err != nil {
		t.Fatalf("OpenDB() failed: %v", err)
	}
	ResetDB(t, db)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func ResetDB(t *testing.T, db *sqlx.DB) {
	_, err := db.Exec(`TRUNCATE attendance_sessions, student_profiles, classes, teacher_profiles, system_bootstrap, users CASCADE`)
	if err != nil {
		t.Fatalf("ResetDB() failed: %v", err)
	}
}

func CreateUser(t *testing.T, repo user.Repository, name, email, pwd string, role user.Role, createdAt ...time.Time) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Email:     email,
		Role:      role,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd, bcrypt.MinCost); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateTeacher(t *testing.T, usrRepo user.Repository, repo school.Repository, name, email, pwd string, isHod bool) (user.User, school.TeacherProfile) {
	usr := CreateUser(t, usrRepo, name, email, pwd, user.RoleTeacher)
	prof, err := repo.CreateTeacherProfile(context.Background(), school.TeacherProfile{
		UserID:      usr.ID,
		IsHod:       isHod,
		Designation: "Lecturer",
	})
	if err != nil {
		t.Fatalf("CreateTeacher() failed: %v", err)
	}
	return usr, prof
}

func CreateClass(t *testing.T, repo school.Repository, name, batch, coordinatorID string) school.Class {
	class, err := repo.CreateClass(context.Background(), school.Class{
		Name:          name,
		Batch:         batch,
		CoordinatorID: coordinatorID,
	})
	if err != nil {
		t.Fatalf("CreateClass() failed: %v", err)
	}
	return class
}

func CreateStudent(t *testing.T, usrRepo user.Repository, repo school.Repository, name, email, pwd, classID, roll string) (user.User, school.StudentProfile) {
	usr := CreateUser(t, usrRepo, name, email, pwd, user.RoleStudent)
	prof, err := repo.CreateStudentProfile(context.Background(), school.StudentProfile{
		UserID:          usr.ID,
		ClassID:         classID,
		RollNumber:      roll,
		CurrentSemester: 1,
	})
	if err != nil {
		t.Fatalf("CreateStudent() failed: %v", err)
	}
	return usr, prof
}

func CreateSession(t *testing.T, repo school.Repository, classID, subject string, date time.Time) school.Session {
	sess, err := repo.CreateSession(context.Background(), school.Session{ClassID: classID, Subject: subject, Date: date})
	if err != nil {
		t.Fatalf("CreateSession() failed: %v", err)
	}
	return sess
}
