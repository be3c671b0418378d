package school

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/user"
)

var (
	// errors
	ErrNotFound         = errors.New("not found")
	ErrProfileExists    = errors.New("this user already has a profile")
	ErrCoordinatorTaken = errors.New("this teacher already coordinates a class")
	ErrNotATeacher      = errors.New("the coordinator must be a teacher")
	ErrRoleMismatch     = errors.New("the profile does not match the user's role")
	ErrNotEnrolled      = errors.New("You are not enrolled in a class.")

	// permission messages
	msgAdminRequired        = "Unauthorized. Admin access required."
	msgAdminOrHodRequired   = "Unauthorized. Admin or HOD access required."
	msgInsufficientPerms    = "Unauthorized. Insufficient permissions."
	msgUnauthorizedForClass = "Unauthorized to view this class."
)

type (
	Repository interface {
		CreateTeacherProfile(ctx context.Context, prof TeacherProfile) (TeacherProfile, error)
		GetTeacherProfile(ctx context.Context, userID string) (TeacherProfile, error)
		CreateStudentProfile(ctx context.Context, prof StudentProfile) (StudentProfile, error)
		GetStudentProfile(ctx context.Context, userID string) (StudentProfile, error)

		CreateClass(ctx context.Context, class Class) (Class, error)
		GetClass(ctx context.Context, id string) (Class, error)
		// QueryClasses returns the classes matching filter, newest batch first.
		QueryClasses(ctx context.Context, filter ClassFilter) ([]Class, error)

		// QueryTeachers returns the TEACHER users by name, with their profile when they have one.
		QueryTeachers(ctx context.Context) ([]Teacher, error)
		// QueryStudents returns the students enrolled in a class, by roll number.
		QueryStudents(ctx context.Context, classID string) ([]Student, error)

		CreateSession(ctx context.Context, sess Session) (Session, error)
		// CountSessions counts the sessions dated within [from, to].
		CountSessions(ctx context.Context, from, to time.Time) (int, error)
	}

	Service struct {
		repo     Repository
		usrSvc   *user.Service
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewService(repo Repository, usrSvc *user.Service, validate *validator.Validate, logger core.Logger) *Service {
	return &Service{
		repo:     repo,
		usrSvc:   usrSvc,
		validate: validate,
		logger:   logger,
	}
}

// teacherProfile returns the caller's teacher profile, if any.
func (svc *Service) teacherProfile(ctx context.Context, caller user.Identity) (TeacherProfile, bool, error) {
	if caller.Role != user.RoleTeacher {
		return TeacherProfile{}, false, nil
	}
	prof, err := svc.repo.GetTeacherProfile(ctx, caller.ID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return TeacherProfile{}, false, nil
		}
		return TeacherProfile{}, false, errors.Wrap(err, "finding teacher profile")
	}
	return prof, true, nil
}

func (svc *Service) isHod(ctx context.Context, caller user.Identity) (bool, error) {
	prof, ok, err := svc.teacherProfile(ctx, caller)
	return ok && prof.IsHod, err
}

// ListAdmins returns all administrators, newest first. Admins only.
func (svc *Service) ListAdmins(ctx context.Context, caller user.Identity) ([]user.User, error) {
	if caller.IsZero() {
		return nil, user.ErrNoSession
	}
	if caller.Role != user.RoleAdmin {
		return nil, core.NewPermissionError(msgAdminRequired)
	}
	return svc.usrSvc.Query(ctx, user.QueryFilter{
		Roles:    []user.Role{user.RoleAdmin},
		Ordering: []core.DBOrdering{{Field: "created_at", Ascending: false}},
	})
}

// ListTeachers returns all teachers, with their profile when set. Admins and HODs only.
func (svc *Service) ListTeachers(ctx context.Context, caller user.Identity) ([]Teacher, error) {
	if caller.IsZero() {
		return nil, user.ErrNoSession
	}
	if caller.Role != user.RoleAdmin {
		hod, err := svc.isHod(ctx, caller)
		if err != nil {
			return nil, err
		}
		if !hod {
			return nil, core.NewPermissionError(msgAdminOrHodRequired)
		}
	}
	return svc.repo.QueryTeachers(ctx)
}

// ListPermittedClasses returns every class to admins and HODs,
// and only the class they coordinate to other teachers.
func (svc *Service) ListPermittedClasses(ctx context.Context, caller user.Identity) ([]Class, error) {
	if caller.IsZero() {
		return nil, user.ErrNoSession
	}
	if caller.Role == user.RoleAdmin {
		return svc.repo.QueryClasses(ctx, ClassFilter{})
	}

	prof, ok, err := svc.teacherProfile(ctx, caller)
	if err != nil {
		return nil, err
	}
	switch {
	case ok && prof.IsHod:
		return svc.repo.QueryClasses(ctx, ClassFilter{})
	case ok:
		return svc.repo.QueryClasses(ctx, ClassFilter{CoordinatorID: prof.ID})
	}
	return nil, core.NewPermissionError(msgInsufficientPerms)
}

// ListStudentsByClass returns the students of a class. The caller must be an admin, a HOD,
// the class coordinator or a student of that class.
func (svc *Service) ListStudentsByClass(ctx context.Context, caller user.Identity, classID string) ([]Student, error) {
	if caller.IsZero() {
		return nil, user.ErrNoSession
	}

	allowed, err := svc.canViewClass(ctx, caller, classID)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, core.NewPermissionError(msgUnauthorizedForClass)
	}
	return svc.repo.QueryStudents(ctx, classID)
}

func (svc *Service) canViewClass(ctx context.Context, caller user.Identity, classID string) (bool, error) {
	switch caller.Role {
	case user.RoleAdmin:
		return true, nil

	case user.RoleTeacher:
		prof, ok, err := svc.teacherProfile(ctx, caller)
		if err != nil || !ok {
			return false, err
		}
		if prof.IsHod {
			return true, nil
		}
		class, err := svc.repo.GetClass(ctx, classID)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return false, nil
			}
			return false, errors.Wrap(err, "finding class")
		}
		return class.CoordinatorID != "" && class.CoordinatorID == prof.ID, nil

	case user.RoleStudent:
		prof, err := svc.repo.GetStudentProfile(ctx, caller.ID)
		if err != nil {
			if errors.Cause(err) == ErrNotFound {
				return false, nil
			}
			return false, errors.Wrap(err, "finding student profile")
		}
		return prof.ClassID != "" && prof.ClassID == classID, nil
	}
	return false, nil
}

// MyClass returns the class a student is enrolled in along with its students.
func (svc *Service) MyClass(ctx context.Context, caller user.Identity) (ClassRoster, error) {
	if caller.IsZero() {
		return ClassRoster{}, user.ErrNoSession
	}
	if caller.Role != user.RoleStudent {
		return ClassRoster{}, core.NewPermissionError(msgInsufficientPerms)
	}

	prof, err := svc.repo.GetStudentProfile(ctx, caller.ID)
	if err != nil && errors.Cause(err) != ErrNotFound {
		return ClassRoster{}, errors.Wrap(err, "finding student profile")
	}
	if prof.ClassID == "" {
		return ClassRoster{}, core.NewValidationError(ErrNotEnrolled)
	}

	class, err := svc.repo.GetClass(ctx, prof.ClassID)
	if err != nil {
		return ClassRoster{}, errors.Wrap(err, "finding class")
	}
	students, err := svc.repo.QueryStudents(ctx, class.ID)
	if err != nil {
		return ClassRoster{}, err
	}
	return ClassRoster{Class: class, Students: students}, nil
}

// Dashboard aggregates the admin dashboard figures. Admins only.
// Today's sessions are those dated within the current local day.
func (svc *Service) Dashboard(ctx context.Context, caller user.Identity) (DashboardStats, error) {
	if caller.IsZero() {
		return DashboardStats{}, user.ErrNoSession
	}
	if caller.Role != user.RoleAdmin {
		return DashboardStats{}, core.NewPermissionError(msgAdminRequired)
	}

	var (
		stats DashboardStats
		err   error
	)
	if stats.TotalStudents, err = svc.usrSvc.Count(ctx, user.RoleStudent); err != nil {
		return DashboardStats{}, errors.Wrap(err, "counting students")
	}
	if stats.TotalTeachers, err = svc.usrSvc.Count(ctx, user.RoleTeacher); err != nil {
		return DashboardStats{}, errors.Wrap(err, "counting teachers")
	}
	start, end := core.DayBounds(core.NowFunc())
	if stats.TodaySessions, err = svc.repo.CountSessions(ctx, start, end); err != nil {
		return DashboardStats{}, errors.Wrap(err, "counting sessions")
	}
	return stats, nil
}

// Settings returns the caller's settings navigation.
func (svc *Service) Settings(ctx context.Context, caller user.Identity) (user.SettingsMenu, error) {
	if caller.IsZero() {
		return user.SettingsMenu{}, user.ErrNoSession
	}
	hod, err := svc.isHod(ctx, caller)
	if err != nil {
		return user.SettingsMenu{}, err
	}
	return user.NewSettingsMenu(caller.Role, hod), nil
}

// AddTeacherProfile attaches a teacher profile to a TEACHER user.
func (svc *Service) AddTeacherProfile(ctx context.Context, usr user.User, ntp NewTeacherProfile) (TeacherProfile, error) {
	if !usr.IsTeacher() {
		return TeacherProfile{}, ErrRoleMismatch
	}
	return svc.repo.CreateTeacherProfile(ctx, TeacherProfile{
		UserID:      usr.ID,
		IsHod:       ntp.IsHod,
		Designation: core.CleanString(ntp.Designation),
	})
}

// AddStudentProfile attaches a student profile to a STUDENT user, optionally enrolling them in a class.
func (svc *Service) AddStudentProfile(ctx context.Context, usr user.User, nsp NewStudentProfile) (StudentProfile, error) {
	if !usr.IsStudent() {
		return StudentProfile{}, ErrRoleMismatch
	}
	if err := svc.validate.Struct(nsp); err != nil {
		return StudentProfile{}, err
	}
	if nsp.ClassID != "" {
		if _, err := svc.repo.GetClass(ctx, nsp.ClassID); err != nil {
			return StudentProfile{}, errors.Wrap(err, "finding class")
		}
	}
	if nsp.CurrentSemester == 0 {
		nsp.CurrentSemester = 1
	}
	return svc.repo.CreateStudentProfile(ctx, StudentProfile{
		UserID:          usr.ID,
		ClassID:         nsp.ClassID,
		RollNumber:      core.CleanString(nsp.RollNumber),
		CurrentSemester: nsp.CurrentSemester,
	})
}

// CreateClass creates a class. A coordinator, when given, must be a teacher with a profile
// who does not coordinate another class yet.
func (svc *Service) CreateClass(ctx context.Context, nc NewClass) (Class, error) {
	if err := nc.Validate(svc.validate); err != nil {
		return Class{}, err
	}

	class := Class{Name: nc.Name, Batch: nc.Batch}
	if nc.CoordinatorEmail != "" {
		usr, err := svc.usrSvc.GetByEmail(ctx, nc.CoordinatorEmail)
		if err != nil {
			return Class{}, errors.Wrap(err, "finding coordinator")
		}
		prof, ok, err := svc.teacherProfile(ctx, usr.Identity())
		if err != nil {
			return Class{}, err
		}
		if !ok {
			return Class{}, ErrNotATeacher
		}
		class.CoordinatorID = prof.ID
	}
	return svc.repo.CreateClass(ctx, class)
}

func (svc *Service) ScheduleSession(ctx context.Context, ns NewSession) (Session, error) {
	if err := svc.validate.Struct(ns); err != nil {
		return Session{}, err
	}
	if _, err := svc.repo.GetClass(ctx, ns.ClassID); err != nil {
		return Session{}, errors.Wrap(err, "finding class")
	}
	return svc.repo.CreateSession(ctx, Session{
		ClassID: ns.ClassID,
		Subject: core.CleanString(ns.Subject),
		Date:    ns.Date,
	})
}
