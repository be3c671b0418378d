package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/user"
)

type userRepository struct {
	db *DB
}

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) countUsers(roles ...user.Role) int {
	if len(roles) == 0 {
		return len(repo.db.users)
	}
	var n int
	for _, usr := range repo.db.users {
		if hasRole(usr.Role, roles) {
			n++
		}
	}
	return n
}

func (repo *userRepository) CountUsers(_ context.Context, roles ...user.Role) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()
	return repo.countUsers(roles...), nil
}

func (repo *userRepository) insert(usr user.User) (user.User, error) {
	for _, u := range repo.db.users {
		if u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}
	usr.ID = uuid.NewString()
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) CreateFirstAdmin(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if repo.db.bootstrapped || repo.countUsers() > 0 {
		return user.User{}, user.ErrAlreadyInitialized
	}
	usr.Role = user.RoleAdmin
	usr, err := repo.insert(usr)
	if err != nil {
		return user.User{}, err
	}
	repo.db.bootstrapped = true
	return usr, nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	return repo.insert(usr)
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.users[filter.ID]; ok && (filter.Email == "" || usr.Email == filter.Email) {
			return *usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	if filter.Email != "" {
		for _, usr := range repo.db.users {
			if usr.Email == filter.Email {
				return *usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.users))
	for _, usr := range repo.db.users {
		if len(filter.Roles) == 0 || hasRole(usr.Role, filter.Roles) {
			users = append(users, *usr)
		}
	}

	ordering := filter.Ordering
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "name", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			c := compareUsers(users[i], users[j], ord.Field)
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	orig, ok := repo.db.users[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	for id, u := range repo.db.users {
		if id != usr.ID && u.Email == usr.Email {
			return user.User{}, user.ErrEmailExists
		}
	}

	// role and creation date never change
	usr.Role = orig.Role
	usr.CreatedAt = orig.CreatedAt
	repo.db.users[usr.ID] = &usr
	return usr, nil
}

func hasRole(role user.Role, roles []user.Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func compareUsers(a, b user.User, field string) int {
	switch field {
	case "name":
		return strings.Compare(a.Name, b.Name)
	case "email":
		return strings.Compare(a.Email, b.Email)
	case "created_at":
		switch {
		case a.CreatedAt.Before(b.CreatedAt):
			return -1
		case a.CreatedAt.After(b.CreatedAt):
			return 1
		}
	}
	return 0
}
