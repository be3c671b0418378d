package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/user"
)

const (
	uniqueViolation = "23505"
	usersEmailKey   = "users_email_key"

	userColumns = `id, name, email, password_hash, role, created_at, updated_at, last_login`
)

var userOrderings = map[string]string{
	"name":       "name",
	"email":      "email",
	"created_at": "created_at",
}

type userRow struct {
	ID           string     `db:"id"`
	Name         string     `db:"name"`
	Email        string     `db:"email"`
	PasswordHash null.Bytes `db:"password_hash"`
	Role         string     `db:"role"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	LastLogin    null.Time  `db:"last_login"`
}

func newUserRow(usr user.User) userRow {
	row := userRow{
		ID:        usr.ID,
		Name:      usr.Name,
		Email:     usr.Email,
		Role:      usr.Role.String(),
		CreatedAt: usr.CreatedAt,
		UpdatedAt: usr.UpdatedAt,
	}
	if usr.HasPassword() {
		row.PasswordHash = null.BytesFrom(usr.PasswordHash)
	}
	if !usr.LastLogin.IsZero() {
		row.LastLogin = null.TimeFrom(usr.LastLogin)
	}
	return row
}

func (row userRow) toUser() user.User {
	usr := user.User{
		ID:        row.ID,
		Name:      row.Name,
		Email:     row.Email,
		Role:      user.Role(row.Role),
		CreatedAt: row.CreatedAt.UTC(),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
	if row.PasswordHash.Valid {
		usr.PasswordHash = row.PasswordHash.Bytes
	}
	if row.LastLogin.Valid {
		usr.LastLogin = row.LastLogin.Time.UTC()
	}
	return usr
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CountUsers(ctx context.Context, roles ...user.Role) (int, error) {
	q, args := `SELECT COUNT(*) FROM users`, []interface{}(nil)
	if len(roles) > 0 {
		var err error
		if q, args, err = sqlx.In(`SELECT COUNT(*) FROM users WHERE role IN (?)`, rolesToStrings(roles)); err != nil {
			return 0, wrapErr(err, "building query")
		}
		q = repo.db.Rebind(q)
	}

	var count int
	if err := repo.db.GetContext(ctx, &count, q, args...); err != nil {
		return 0, wrapErr(err, "counting users")
	}
	return count, nil
}

func insertUser(ctx context.Context, ext sqlx.ExtContext, usr user.User) (user.User, error) {
	usr.ID = newID()
	q := `INSERT INTO users (` + userColumns + `)
		VALUES (:id, :name, :email, :password_hash, :role, :created_at, :updated_at, :last_login)`
	if _, err := sqlx.NamedExecContext(ctx, ext, q, newUserRow(usr)); err != nil {
		if isUniqueViolation(err, usersEmailKey) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, wrapErr(err, "inserting user")
	}
	return usr, nil
}

// CreateFirstAdmin counts users, claims the bootstrap marker and inserts the admin in one transaction.
// The marker's primary key makes concurrent bootstraps fail for all but one caller.
func (repo *userRepository) CreateFirstAdmin(ctx context.Context, usr user.User) (user.User, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, wrapErr(err, "beginning transaction")
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err = tx.GetContext(ctx, &count, `SELECT COUNT(*) FROM users`); err != nil {
		return user.User{}, wrapErr(err, "counting users")
	}
	if count > 0 {
		return user.User{}, user.ErrAlreadyInitialized
	}

	if _, err = tx.ExecContext(ctx, `INSERT INTO system_bootstrap (singleton) VALUES (TRUE)`); err != nil {
		if isUniqueViolation(err, "") {
			return user.User{}, user.ErrAlreadyInitialized
		}
		return user.User{}, wrapErr(err, "claiming bootstrap")
	}

	usr.Role = user.RoleAdmin
	if usr, err = insertUser(ctx, tx, usr); err != nil {
		return user.User{}, err
	}
	if err = tx.Commit(); err != nil {
		if isUniqueViolation(err, "") {
			return user.User{}, user.ErrAlreadyInitialized
		}
		return user.User{}, wrapErr(err, "committing transaction")
	}
	return usr, nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	return insertUser(ctx, repo.db, usr)
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	var (
		where []string
		args  []interface{}
	)
	if filter.ID != "" {
		args = append(args, filter.ID)
		where = append(where, fmt.Sprintf("id = $%d", len(args)))
	}
	if filter.Email != "" {
		args = append(args, filter.Email)
		where = append(where, fmt.Sprintf("email = $%d", len(args)))
	}
	if len(where) == 0 {
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	q := `SELECT ` + userColumns + ` FROM users WHERE ` + strings.Join(where, " AND ")
	if err := repo.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, wrapErr(err, "selecting user")
	}
	return row.toUser(), nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter user.QueryFilter) ([]user.User, error) {
	var (
		q    = `SELECT ` + userColumns + ` FROM users`
		args []interface{}
		err  error
	)
	if len(filter.Roles) > 0 {
		if q, args, err = sqlx.In(q+` WHERE role IN (?)`, rolesToStrings(filter.Roles)); err != nil {
			return nil, wrapErr(err, "building query")
		}
		q = repo.db.Rebind(q)
	}
	orderBy := core.OrderBy(filter.Ordering, userOrderings)
	if orderBy == "" {
		orderBy = "name ASC"
	}
	q += ` ORDER BY ` + orderBy

	var rows []userRow
	if err = repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, wrapErr(err, "selecting users")
	}
	users := make([]user.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, row.toUser())
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	stmt, err := repo.db.PrepareNamedContext(ctx, `UPDATE users
		SET name = :name, email = :email, password_hash = :password_hash, updated_at = :updated_at, last_login = :last_login
		WHERE id = :id
		RETURNING `+userColumns)
	if err != nil {
		return user.User{}, wrapErr(err, "preparing update")
	}
	defer func() { _ = stmt.Close() }()

	var row userRow
	if err = stmt.GetContext(ctx, &row, newUserRow(usr)); err != nil {
		switch {
		case errors.Cause(err) == sql.ErrNoRows:
			return user.User{}, user.ErrNotFound
		case isUniqueViolation(err, usersEmailKey):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, wrapErr(err, "updating user")
	}
	return row.toUser(), nil
}

func rolesToStrings(roles []user.Role) []string {
	strs := make([]string, 0, len(roles))
	for _, r := range roles {
		strs = append(strs, r.String())
	}
	return strs
}

func isUniqueViolation(err error, constraint string) bool {
	return isViolation(err, uniqueViolation, constraint)
}

// isViolation reports whether err is a postgres integrity error of code, on constraint when not empty.
func isViolation(err error, code pq.ErrorCode, constraint string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || pqErr.Code != code {
		return false
	}
	return constraint == "" || pqErr.Constraint == constraint
}

// wrapErr adds op to err. A closed pool cannot serve any further request and becomes a core.ShutdownError.
func wrapErr(err error, op string) error {
	if errors.Is(err, sql.ErrConnDone) {
		return core.NewShutdownError(err, op)
	}
	return errors.Wrap(err, op)
}
