package school_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
	"github.com/mindzed/attendance/services/email"
	"github.com/mindzed/attendance/storage/database/inmem"
	"github.com/mindzed/attendance/tests"
)

type fixture struct {
	svc        *school.Service
	usrRepo    user.Repository
	schoolRepo school.Repository

	admin, hod, coordinator, teacher, noProfile user.User
	student, otherStudent, unenrolled           user.User
	coordinatorProf                             school.TeacherProfile
	classA, classB                              school.Class
}

func setup(t *testing.T) *fixture {
	t.Helper()
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)
	validate := testutil.NewValidator()

	db := inmemdb.Open()
	f := &fixture{
		usrRepo:    inmemdb.NewUserRepository(db),
		schoolRepo: inmemdb.NewSchoolRepository(db),
	}
	usrSvc := user.NewService(f.usrRepo, emailsvc.NewConsoleServiceMock(conf, logger), validate, logger, conf)
	f.svc = school.NewService(f.schoolRepo, usrSvc, validate, logger)

	now := time.Now()
	f.admin = testutil.CreateUser(t, f.usrRepo, "Admin", "admin@test.io", "", user.RoleAdmin, now.Add(-time.Hour))
	f.hod, _ = testutil.CreateTeacher(t, f.usrRepo, f.schoolRepo, "Hod", "hod@test.io", "", true)
	f.coordinator, f.coordinatorProf = testutil.CreateTeacher(t, f.usrRepo, f.schoolRepo, "Coordinator", "coord@test.io", "", false)
	f.teacher, _ = testutil.CreateTeacher(t, f.usrRepo, f.schoolRepo, "Basic", "basic@test.io", "", false)
	f.noProfile = testutil.CreateUser(t, f.usrRepo, "Ghost", "ghost@test.io", "", user.RoleTeacher)

	f.classA = testutil.CreateClass(t, f.schoolRepo, "CSE-A", "2022", f.coordinatorProf.ID)
	f.classB = testutil.CreateClass(t, f.schoolRepo, "CSE-B", "2023", "")

	f.student, _ = testutil.CreateStudent(t, f.usrRepo, f.schoolRepo, "Stu", "stu@test.io", "", f.classA.ID, "02")
	testutil.CreateStudent(t, f.usrRepo, f.schoolRepo, "Ann", "ann@test.io", "", f.classA.ID, "01")
	f.otherStudent, _ = testutil.CreateStudent(t, f.usrRepo, f.schoolRepo, "Bob", "bob@test.io", "", f.classB.ID, "01")
	f.unenrolled, _ = testutil.CreateStudent(t, f.usrRepo, f.schoolRepo, "Una", "una@test.io", "", "", "")
	return f
}

func assertPermissionError(t *testing.T, err error, msg string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, core.IsPermissionError(err), "want permission error, got %T (%v)", err, err)
	assert.Equal(t, msg, err.Error())
}

func TestService_ListAdmins(t *testing.T) {
	ctx := context.Background()
	f := setup(t)
	admin2 := testutil.CreateUser(t, f.usrRepo, "Admin 2", "admin2@test.io", "", user.RoleAdmin)

	admins, err := f.svc.ListAdmins(ctx, f.admin.Identity())
	require.NoError(t, err)
	if assert.Len(t, admins, 2) {
		assert.Equal(t, admin2.ID, admins[0].ID, "newest first")
		assert.Equal(t, f.admin.ID, admins[1].ID)
	}

	for _, caller := range []user.User{f.hod, f.teacher, f.student} {
		_, err = f.svc.ListAdmins(ctx, caller.Identity())
		assertPermissionError(t, err, "Unauthorized. Admin access required.")
	}

	_, err = f.svc.ListAdmins(ctx, user.Identity{})
	assert.Equal(t, user.ErrNoSession, err)
}

func TestService_ListTeachers(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	for _, caller := range []user.User{f.admin, f.hod} {
		teachers, err := f.svc.ListTeachers(ctx, caller.Identity())
		require.NoError(t, err)
		names := make([]string, 0, len(teachers))
		for _, tchr := range teachers {
			names = append(names, tchr.Name)
		}
		assert.Equal(t, []string{"Basic", "Coordinator", "Ghost", "Hod"}, names)

		// listed without a profile
		assert.Nil(t, teachers[2].Profile)
		if assert.NotNil(t, teachers[1].Profile) {
			assert.Equal(t, f.coordinatorProf, *teachers[1].Profile)
		}
	}

	for _, caller := range []user.User{f.teacher, f.coordinator, f.noProfile, f.student} {
		_, err := f.svc.ListTeachers(ctx, caller.Identity())
		assertPermissionError(t, err, "Unauthorized. Admin or HOD access required.")
	}
}

func TestService_ListPermittedClasses(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	tests := []struct {
		name   string
		caller user.User
		want   []school.Class
	}{
		{"admin sees all, newest batch first", f.admin, []school.Class{f.classB, f.classA}},
		{"hod sees all", f.hod, []school.Class{f.classB, f.classA}},
		{"coordinator sees own class", f.coordinator, []school.Class{f.classA}},
		{"teacher without class sees none", f.teacher, []school.Class{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classes, err := f.svc.ListPermittedClasses(ctx, tt.caller.Identity())
			require.NoError(t, err)
			assert.Equal(t, tt.want, classes)
		})
	}

	for _, caller := range []user.User{f.noProfile, f.student} {
		_, err := f.svc.ListPermittedClasses(ctx, caller.Identity())
		assertPermissionError(t, err, "Unauthorized. Insufficient permissions.")
	}
}

func TestService_ListStudentsByClass(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	allowed := []struct {
		name   string
		caller user.User
	}{
		{"admin", f.admin},
		{"hod", f.hod},
		{"coordinator", f.coordinator},
		{"classmate", f.student},
	}
	for _, tt := range allowed {
		t.Run(tt.name, func(t *testing.T) {
			students, err := f.svc.ListStudentsByClass(ctx, tt.caller.Identity(), f.classA.ID)
			require.NoError(t, err)
			if assert.Len(t, students, 2) {
				assert.Equal(t, "01", students[0].RollNumber)
				assert.Equal(t, "Ann", students[0].User.Name)
				assert.Equal(t, "02", students[1].RollNumber)
			}
		})
	}

	denied := []struct {
		name    string
		caller  user.User
		classID string
	}{
		{"other teacher", f.teacher, f.classA.ID},
		{"coordinator of another class", f.coordinator, f.classB.ID},
		{"teacher without profile", f.noProfile, f.classA.ID},
		{"student of another class", f.otherStudent, f.classA.ID},
		{"student without class", f.unenrolled, f.classA.ID},
		{"unknown class", f.coordinator, "nope"},
	}
	for _, tt := range denied {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.ListStudentsByClass(ctx, tt.caller.Identity(), tt.classID)
			assertPermissionError(t, err, "Unauthorized to view this class.")
		})
	}

	t.Run("spoofed role is not trusted", func(t *testing.T) {
		// a student claiming to be a teacher has no teacher profile
		spoofed := f.otherStudent.Identity()
		spoofed.Role = user.RoleTeacher
		_, err := f.svc.ListStudentsByClass(ctx, spoofed, f.classA.ID)
		assertPermissionError(t, err, "Unauthorized to view this class.")
	})
}

func TestService_MyClass(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	roster, err := f.svc.MyClass(ctx, f.student.Identity())
	require.NoError(t, err)
	assert.Equal(t, f.classA, roster.Class)
	assert.Len(t, roster.Students, 2)

	_, err = f.svc.MyClass(ctx, f.unenrolled.Identity())
	verr, ok := err.(*core.ValidationError)
	require.True(t, ok, "got %T", err)
	assert.Equal(t, school.ErrNotEnrolled, verr.Err)

	_, err = f.svc.MyClass(ctx, f.teacher.Identity())
	assertPermissionError(t, err, "Unauthorized. Insufficient permissions.")
}

func TestService_Dashboard(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	day := func(d, h, m, sec, ms int) time.Time {
		return time.Date(2024, time.February, d, h, m, sec, ms*int(time.Millisecond), time.Local)
	}
	core.NowFunc = func() time.Time { return day(14, 15, 4, 5, 0) }
	t.Cleanup(func() { core.NowFunc = time.Now })

	testutil.CreateSession(t, f.schoolRepo, f.classA.ID, "Maths", day(14, 0, 0, 0, 0))
	testutil.CreateSession(t, f.schoolRepo, f.classA.ID, "Physics", day(14, 12, 0, 0, 0))
	testutil.CreateSession(t, f.schoolRepo, f.classB.ID, "Late", day(14, 23, 59, 59, 999))
	testutil.CreateSession(t, f.schoolRepo, f.classB.ID, "Tomorrow", day(15, 0, 0, 0, 0))
	testutil.CreateSession(t, f.schoolRepo, f.classB.ID, "Yesterday", day(13, 23, 59, 59, 999))

	stats, err := f.svc.Dashboard(ctx, f.admin.Identity())
	require.NoError(t, err)
	assert.Equal(t, school.DashboardStats{TotalStudents: 4, TotalTeachers: 4, TodaySessions: 3}, stats)

	for _, caller := range []user.User{f.hod, f.student} {
		_, err = f.svc.Dashboard(ctx, caller.Identity())
		assertPermissionError(t, err, "Unauthorized. Admin access required.")
	}
}

func TestService_Settings(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	menu, err := f.svc.Settings(ctx, f.hod.Identity())
	require.NoError(t, err)
	assert.Equal(t, "Teacher & HOD Menu", menu.Sections[0].Title)

	menu, err = f.svc.Settings(ctx, f.teacher.Identity())
	require.NoError(t, err)
	assert.Equal(t, "TEACHER Menu", menu.Sections[0].Title)

	_, err = f.svc.Settings(ctx, user.Identity{})
	assert.Equal(t, user.ErrNoSession, err)
}

func TestService_CreateClass(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	class, err := f.svc.CreateClass(ctx, school.NewClass{Name: " CSE-C ", Batch: "2024", CoordinatorEmail: "BASIC@test.io"})
	require.NoError(t, err)
	assert.Equal(t, "CSE-C", class.Name)
	assert.NotEmpty(t, class.CoordinatorID)

	_, err = f.svc.CreateClass(ctx, school.NewClass{Name: "CSE-D", Batch: "2024", CoordinatorEmail: "basic@test.io"})
	assert.Equal(t, school.ErrCoordinatorTaken, err)

	_, err = f.svc.CreateClass(ctx, school.NewClass{Name: "CSE-E", Batch: "2024", CoordinatorEmail: "stu@test.io"})
	assert.Equal(t, school.ErrNotATeacher, err)

	_, err = f.svc.CreateClass(ctx, school.NewClass{Name: "CSE-F", Batch: "2024", CoordinatorEmail: "ghost@test.io"})
	assert.Equal(t, school.ErrNotATeacher, err, "teacher without profile")
}

func TestService_AddProfiles(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	_, err := f.svc.AddTeacherProfile(ctx, f.student, school.NewTeacherProfile{})
	assert.Equal(t, school.ErrRoleMismatch, err)

	_, err = f.svc.AddTeacherProfile(ctx, f.hod, school.NewTeacherProfile{})
	assert.Equal(t, school.ErrProfileExists, err)

	prof, err := f.svc.AddTeacherProfile(ctx, f.noProfile, school.NewTeacherProfile{IsHod: true, Designation: " Professor "})
	require.NoError(t, err)
	assert.Equal(t, "Professor", prof.Designation)

	newStudent := testutil.CreateUser(t, f.usrRepo, "Neo", "neo@test.io", "", user.RoleStudent)
	sp, err := f.svc.AddStudentProfile(ctx, newStudent, school.NewStudentProfile{ClassID: f.classB.ID, RollNumber: "07"})
	require.NoError(t, err)
	assert.Equal(t, 1, sp.CurrentSemester)

	_, err = f.svc.AddStudentProfile(ctx, f.admin, school.NewStudentProfile{})
	assert.Equal(t, school.ErrRoleMismatch, err)
}

func TestService_ScheduleSession(t *testing.T) {
	ctx := context.Background()
	f := setup(t)

	sess, err := f.svc.ScheduleSession(ctx, school.NewSession{ClassID: f.classA.ID, Subject: " Maths ", Date: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, "Maths", sess.Subject)

	_, err = f.svc.ScheduleSession(ctx, school.NewSession{ClassID: "nope", Subject: "Maths", Date: time.Now()})
	assert.Equal(t, school.ErrNotFound, errors.Cause(err))
}
