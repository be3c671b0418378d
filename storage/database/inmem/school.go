package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
)

type schoolRepository struct {
	db *DB
}

func NewSchoolRepository(db *DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateTeacherProfile(_ context.Context, prof school.TeacherProfile) (school.TeacherProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[prof.UserID]; !ok {
		return school.TeacherProfile{}, user.ErrNotFound
	}
	for _, p := range repo.db.teachers {
		if p.UserID == prof.UserID {
			return school.TeacherProfile{}, school.ErrProfileExists
		}
	}
	prof.ID = uuid.NewString()
	repo.db.teachers[prof.ID] = &prof
	return prof, nil
}

func (repo *schoolRepository) GetTeacherProfile(_ context.Context, userID string) (school.TeacherProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.db.teachers {
		if p.UserID == userID {
			return *p, nil
		}
	}
	return school.TeacherProfile{}, school.ErrNotFound
}

func (repo *schoolRepository) CreateStudentProfile(_ context.Context, prof school.StudentProfile) (school.StudentProfile, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.users[prof.UserID]; !ok {
		return school.StudentProfile{}, user.ErrNotFound
	}
	if prof.ClassID != "" {
		if _, ok := repo.db.classes[prof.ClassID]; !ok {
			return school.StudentProfile{}, school.ErrNotFound
		}
	}
	for _, p := range repo.db.students {
		if p.UserID == prof.UserID {
			return school.StudentProfile{}, school.ErrProfileExists
		}
	}
	prof.ID = uuid.NewString()
	repo.db.students[prof.ID] = &prof
	return prof, nil
}

func (repo *schoolRepository) GetStudentProfile(_ context.Context, userID string) (school.StudentProfile, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	for _, p := range repo.db.students {
		if p.UserID == userID {
			return *p, nil
		}
	}
	return school.StudentProfile{}, school.ErrNotFound
}

func (repo *schoolRepository) CreateClass(_ context.Context, class school.Class) (school.Class, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if class.CoordinatorID != "" {
		if _, ok := repo.db.teachers[class.CoordinatorID]; !ok {
			return school.Class{}, school.ErrNotATeacher
		}
		for _, c := range repo.db.classes {
			if c.CoordinatorID == class.CoordinatorID {
				return school.Class{}, school.ErrCoordinatorTaken
			}
		}
	}
	class.ID = uuid.NewString()
	repo.db.classes[class.ID] = &class
	return class, nil
}

func (repo *schoolRepository) GetClass(_ context.Context, id string) (school.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return *c, nil
	}
	return school.Class{}, school.ErrNotFound
}

func (repo *schoolRepository) QueryClasses(_ context.Context, filter school.ClassFilter) ([]school.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	classes := make([]school.Class, 0, len(repo.db.classes))
	for _, c := range repo.db.classes {
		if filter.CoordinatorID == "" || c.CoordinatorID == filter.CoordinatorID {
			classes = append(classes, *c)
		}
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Batch != classes[j].Batch {
			return classes[i].Batch > classes[j].Batch
		}
		return classes[i].Name < classes[j].Name
	})
	return classes, nil
}

func (repo *schoolRepository) QueryTeachers(_ context.Context) ([]school.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	profiles := make(map[string]*school.TeacherProfile, len(repo.db.teachers)) // by user ID
	for _, p := range repo.db.teachers {
		profiles[p.UserID] = p
	}

	teachers := make([]school.Teacher, 0, len(profiles))
	for _, usr := range repo.db.users {
		if !usr.IsTeacher() {
			continue
		}
		teacher := school.Teacher{User: *usr}
		if p, ok := profiles[usr.ID]; ok {
			prof := *p
			teacher.Profile = &prof
		}
		teachers = append(teachers, teacher)
	}
	sort.Slice(teachers, func(i, j int) bool { return teachers[i].Name < teachers[j].Name })
	return teachers, nil
}

func (repo *schoolRepository) QueryStudents(_ context.Context, classID string) ([]school.Student, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	students := make([]school.Student, 0)
	for _, p := range repo.db.students {
		if p.ClassID != classID {
			continue
		}
		usr, ok := repo.db.users[p.UserID]
		if !ok {
			continue
		}
		students = append(students, school.Student{StudentProfile: *p, User: *usr})
	}
	sort.Slice(students, func(i, j int) bool { return students[i].RollNumber < students[j].RollNumber })
	return students, nil
}

func (repo *schoolRepository) CreateSession(_ context.Context, sess school.Session) (school.Session, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if _, ok := repo.db.classes[sess.ClassID]; !ok {
		return school.Session{}, school.ErrNotFound
	}
	sess.ID = uuid.NewString()
	repo.db.sessions[sess.ID] = &sess
	return sess, nil
}

func (repo *schoolRepository) CountSessions(_ context.Context, from, to time.Time) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var n int
	for _, s := range repo.db.sessions {
		if !s.Date.Before(from) && !s.Date.After(to) {
			n++
		}
	}
	return n, nil
}
