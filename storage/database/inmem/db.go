package inmemdb

import (
	"sync"

	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
)

// DB is an in-memory store for tests and local runs. All tables share one lock.
type DB struct {
	mu sync.RWMutex

	bootstrapped bool
	users        map[string]*user.User
	teachers     map[string]*school.TeacherProfile // by ID
	students     map[string]*school.StudentProfile // by ID
	classes      map[string]*school.Class
	sessions     map[string]*school.Session
}

func Open() *DB {
	return &DB{
		users:    make(map[string]*user.User),
		teachers: make(map[string]*school.TeacherProfile),
		students: make(map[string]*school.StudentProfile),
		classes:  make(map[string]*school.Class),
		sessions: make(map[string]*school.Session),
	}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()

	db.bootstrapped = false
	db.users = make(map[string]*user.User)
	db.teachers = make(map[string]*school.TeacherProfile)
	db.students = make(map[string]*school.StudentProfile)
	db.classes = make(map[string]*school.Class)
	db.sessions = make(map[string]*school.Session)
}
