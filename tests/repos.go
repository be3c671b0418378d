package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
)

// ReposFactory returns empty repositories sharing one store.
type ReposFactory func(t *testing.T) (user.Repository, school.Repository)

// RunRepositoryTests checks that a storage backend honours the user.Repository and school.Repository contracts.
func RunRepositoryTests(t *testing.T, newRepos ReposFactory) {
	t.Run("first admin", func(t *testing.T) { testCreateFirstAdmin(t, newRepos) })
	t.Run("first admin concurrently", func(t *testing.T) { testCreateFirstAdminConcurrently(t, newRepos) })
	t.Run("users", func(t *testing.T) { testUsers(t, newRepos) })
	t.Run("profiles", func(t *testing.T) { testProfiles(t, newRepos) })
	t.Run("classes", func(t *testing.T) { testClasses(t, newRepos) })
	t.Run("sessions", func(t *testing.T) { testSessions(t, newRepos) })
}

func testCreateFirstAdmin(t *testing.T, newRepos ReposFactory) {
	usrRepo, _ := newRepos(t)
	ctx := context.Background()

	admin, err := usrRepo.CreateFirstAdmin(ctx, user.User{Name: "Root", Email: "root@test.io", Role: user.RoleStudent})
	require.NoError(t, err)
	assert.NotEmpty(t, admin.ID)
	assert.Equal(t, user.RoleAdmin, admin.Role)

	_, err = usrRepo.CreateFirstAdmin(ctx, user.User{Name: "Other", Email: "other@test.io"})
	assert.Equal(t, user.ErrAlreadyInitialized, errors.Cause(err))

	count, err := usrRepo.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testCreateFirstAdminConcurrently(t *testing.T, newRepos ReposFactory) {
	usrRepo, _ := newRepos(t)
	ctx := context.Background()

	const n = 8
	var (
		wg   sync.WaitGroup
		errs = make([]error, n)
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = usrRepo.CreateFirstAdmin(ctx, user.User{
				Name:  fmt.Sprintf("Admin %d", i),
				Email: fmt.Sprintf("admin%d@test.io", i),
			})
		}(i)
	}
	wg.Wait()

	var created int
	for _, err := range errs {
		if err == nil {
			created++
			continue
		}
		assert.Equal(t, user.ErrAlreadyInitialized, errors.Cause(err))
	}
	assert.Equal(t, 1, created)

	count, err := usrRepo.CountUsers(ctx, user.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testUsers(t *testing.T, newRepos ReposFactory) {
	usrRepo, _ := newRepos(t)
	ctx := context.Background()

	now := time.Now().UTC()
	old := CreateUser(t, usrRepo, "Zed", "zed@test.io", "s3cret-pass", user.RoleAdmin, now.Add(-time.Hour))
	recent := CreateUser(t, usrRepo, "Amy", "amy@test.io", "s3cret-pass", user.RoleAdmin, now)
	stu := CreateUser(t, usrRepo, "Stu", "stu@test.io", "", user.RoleStudent)

	_, err := usrRepo.CreateUser(ctx, user.User{Name: "Dup", Email: "zed@test.io", Role: user.RoleTeacher})
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))

	count, err := usrRepo.CountUsers(ctx, user.RoleStudent, user.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	t.Run("get", func(t *testing.T) {
		got, err := usrRepo.GetUser(ctx, user.GetFilter{Email: "amy@test.io"})
		require.NoError(t, err)
		assert.Equal(t, recent.ID, got.ID)
		assert.True(t, got.HasPassword())

		got, err = usrRepo.GetUser(ctx, user.GetFilter{ID: stu.ID})
		require.NoError(t, err)
		assert.False(t, got.HasPassword())

		_, err = usrRepo.GetUser(ctx, user.GetFilter{ID: stu.ID, Email: "amy@test.io"})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
		_, err = usrRepo.GetUser(ctx, user.GetFilter{Email: "ghost@test.io"})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
		_, err = usrRepo.GetUser(ctx, user.GetFilter{})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})

	t.Run("query", func(t *testing.T) {
		admins, err := usrRepo.QueryUsers(ctx, user.QueryFilter{
			Roles:    []user.Role{user.RoleAdmin},
			Ordering: []core.DBOrdering{{Field: "created_at", Ascending: false}},
		})
		require.NoError(t, err)
		require.Len(t, admins, 2)
		assert.Equal(t, recent.ID, admins[0].ID)
		assert.Equal(t, old.ID, admins[1].ID)

		all, err := usrRepo.QueryUsers(ctx, user.QueryFilter{})
		require.NoError(t, err)
		var names []string
		for _, usr := range all {
			names = append(names, usr.Name)
		}
		assert.Equal(t, []string{"Amy", "Stu", "Zed"}, names)
	})

	t.Run("update", func(t *testing.T) {
		lastLogin := time.Now().UTC().Truncate(time.Second)
		upd := stu
		upd.Name = "Stuart"
		upd.LastLogin = lastLogin
		upd.Role = user.RoleAdmin
		got, err := usrRepo.UpdateUser(ctx, upd)
		require.NoError(t, err)
		assert.Equal(t, "Stuart", got.Name)
		assert.Equal(t, user.RoleStudent, got.Role)
		assert.True(t, lastLogin.Equal(got.LastLogin))

		upd.Email = "zed@test.io"
		_, err = usrRepo.UpdateUser(ctx, upd)
		assert.Equal(t, user.ErrEmailExists, errors.Cause(err))

		_, err = usrRepo.UpdateUser(ctx, user.User{ID: "00000000-0000-0000-0000-000000000000", Email: "x@test.io"})
		assert.Equal(t, user.ErrNotFound, errors.Cause(err))
	})
}

func testProfiles(t *testing.T, newRepos ReposFactory) {
	usrRepo, repo := newRepos(t)
	ctx := context.Background()

	teacher, prof := CreateTeacher(t, usrRepo, repo, "Tom", "tom@test.io", "s3cret-pass", true)
	got, err := repo.GetTeacherProfile(ctx, teacher.ID)
	require.NoError(t, err)
	assert.Equal(t, prof, got)

	_, err = repo.CreateTeacherProfile(ctx, school.TeacherProfile{UserID: teacher.ID})
	assert.Equal(t, school.ErrProfileExists, errors.Cause(err))
	_, err = repo.CreateTeacherProfile(ctx, school.TeacherProfile{UserID: "00000000-0000-0000-0000-000000000000"})
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	// not enrolled
	stu := CreateUser(t, usrRepo, "Stu", "stu@test.io", "", user.RoleStudent)
	stuProf, err := repo.CreateStudentProfile(ctx, school.StudentProfile{UserID: stu.ID, RollNumber: "01", CurrentSemester: 3})
	require.NoError(t, err)
	gotStu, err := repo.GetStudentProfile(ctx, stu.ID)
	require.NoError(t, err)
	assert.Equal(t, stuProf, gotStu)
	assert.Empty(t, gotStu.ClassID)

	other := CreateUser(t, usrRepo, "Ann", "ann@test.io", "", user.RoleStudent)
	_, err = repo.CreateStudentProfile(ctx, school.StudentProfile{UserID: other.ID, ClassID: "00000000-0000-0000-0000-000000000000"})
	assert.Equal(t, school.ErrNotFound, errors.Cause(err))

	_, err = repo.GetStudentProfile(ctx, teacher.ID)
	assert.Equal(t, school.ErrNotFound, errors.Cause(err))
	_, err = repo.GetTeacherProfile(ctx, stu.ID)
	assert.Equal(t, school.ErrNotFound, errors.Cause(err))

	// only TEACHER users are listed, with or without a profile
	CreateTeacher(t, usrRepo, repo, "Ada", "ada@test.io", "s3cret-pass", false)
	CreateUser(t, usrRepo, "Ben", "ben@test.io", "", user.RoleTeacher)
	teachers, err := repo.QueryTeachers(ctx)
	require.NoError(t, err)
	require.Len(t, teachers, 3)
	assert.Equal(t, "Ada", teachers[0].Name)
	assert.Equal(t, "Ben", teachers[1].Name)
	assert.Nil(t, teachers[1].Profile)
	assert.Equal(t, "Tom", teachers[2].Name)
	require.NotNil(t, teachers[2].Profile)
	assert.Equal(t, prof, *teachers[2].Profile)
}

func testClasses(t *testing.T, newRepos ReposFactory) {
	usrRepo, repo := newRepos(t)
	ctx := context.Background()

	_, coordinator := CreateTeacher(t, usrRepo, repo, "Tom", "tom@test.io", "s3cret-pass", false)
	classA := CreateClass(t, repo, "CSE A", "2022", coordinator.ID)
	classB := CreateClass(t, repo, "CSE B", "2023", "")
	classC := CreateClass(t, repo, "CSE C", "2022", "")

	_, err := repo.CreateClass(ctx, school.Class{Name: "CSE D", Batch: "2024", CoordinatorID: coordinator.ID})
	assert.Equal(t, school.ErrCoordinatorTaken, errors.Cause(err))
	_, err = repo.CreateClass(ctx, school.Class{Name: "CSE E", Batch: "2024", CoordinatorID: "00000000-0000-0000-0000-000000000000"})
	assert.Equal(t, school.ErrNotATeacher, errors.Cause(err))

	got, err := repo.GetClass(ctx, classA.ID)
	require.NoError(t, err)
	assert.Equal(t, classA, got)
	_, err = repo.GetClass(ctx, "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, school.ErrNotFound, errors.Cause(err))

	classes, err := repo.QueryClasses(ctx, school.ClassFilter{})
	require.NoError(t, err)
	assert.Equal(t, []school.Class{classB, classA, classC}, classes)

	classes, err = repo.QueryClasses(ctx, school.ClassFilter{CoordinatorID: coordinator.ID})
	require.NoError(t, err)
	assert.Equal(t, []school.Class{classA}, classes)

	CreateStudent(t, usrRepo, repo, "Bob", "bob@test.io", "", classA.ID, "02")
	CreateStudent(t, usrRepo, repo, "Ann", "ann@test.io", "", classA.ID, "01")
	CreateStudent(t, usrRepo, repo, "Cat", "cat@test.io", "", classB.ID, "01")

	students, err := repo.QueryStudents(ctx, classA.ID)
	require.NoError(t, err)
	require.Len(t, students, 2)
	assert.Equal(t, "Ann", students[0].User.Name)
	assert.Equal(t, "Bob", students[1].User.Name)
	assert.Equal(t, classA.ID, students[0].ClassID)

	students, err = repo.QueryStudents(ctx, classC.ID)
	require.NoError(t, err)
	assert.Empty(t, students)
}

func testSessions(t *testing.T, newRepos ReposFactory) {
	_, repo := newRepos(t)
	ctx := context.Background()

	class := CreateClass(t, repo, "CSE A", "2022", "")
	day := time.Date(2024, time.February, 14, 0, 0, 0, 0, time.UTC)
	CreateSession(t, repo, class.ID, "Maths", day)
	CreateSession(t, repo, class.ID, "Physics", day.Add(10*time.Hour))
	CreateSession(t, repo, class.ID, "Chemistry", day.Add(24*time.Hour))

	_, err := repo.CreateSession(ctx, school.Session{ClassID: "00000000-0000-0000-0000-000000000000", Subject: "Art", Date: day})
	assert.Equal(t, school.ErrNotFound, errors.Cause(err))

	from, to := core.DayBounds(day)
	count, err := repo.CountSessions(ctx, from, to)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = repo.CountSessions(ctx, day.Add(48*time.Hour), day.Add(72*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
