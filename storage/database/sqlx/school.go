package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/mindzed/attendance/core/school"
	"github.com/mindzed/attendance/core/user"
)

const (
	foreignKeyViolation = "23503"

	teacherProfilesUserKey   = "teacher_profiles_user_id_key"
	studentProfilesUserKey   = "student_profiles_user_id_key"
	classesCoordinatorKey    = "classes_coordinator_id_key"
	classesCoordinatorFkey   = "classes_coordinator_id_fkey"
	studentProfilesClassFkey = "student_profiles_class_id_fkey"
)

func newID() string {
	return uuid.NewString()
}

type (
	studentProfileRow struct {
		ID              string      `db:"id"`
		UserID          string      `db:"user_id"`
		ClassID         null.String `db:"class_id"`
		RollNumber      string      `db:"roll_number"`
		CurrentSemester int         `db:"current_semester"`
	}

	classRow struct {
		ID            string      `db:"id"`
		Name          string      `db:"name"`
		Batch         string      `db:"batch"`
		CoordinatorID null.String `db:"coordinator_id"`
	}

	teacherRow struct {
		userRow
		ProfileID   null.String `db:"profile_id"`
		IsHod       null.Bool   `db:"is_hod"`
		Designation null.String `db:"designation"`
	}

	studentRow struct {
		userRow
		ProfileID       string      `db:"profile_id"`
		ClassID         null.String `db:"class_id"`
		RollNumber      string      `db:"roll_number"`
		CurrentSemester int         `db:"current_semester"`
	}
)

func (row studentProfileRow) toProfile() school.StudentProfile {
	return school.StudentProfile{
		ID:              row.ID,
		UserID:          row.UserID,
		ClassID:         row.ClassID.String,
		RollNumber:      row.RollNumber,
		CurrentSemester: row.CurrentSemester,
	}
}

func (row classRow) toClass() school.Class {
	return school.Class{
		ID:            row.ID,
		Name:          row.Name,
		Batch:         row.Batch,
		CoordinatorID: row.CoordinatorID.String,
	}
}

// nullString maps the empty string to NULL.
func nullString(s string) null.String {
	return null.NewString(s, s != "")
}

type schoolRepository struct {
	db *sqlx.DB
}

func NewSchoolRepository(db *sqlx.DB) school.Repository {
	return &schoolRepository{db: db}
}

func (repo *schoolRepository) CreateTeacherProfile(ctx context.Context, prof school.TeacherProfile) (school.TeacherProfile, error) {
	prof.ID = newID()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO teacher_profiles (id, user_id, is_hod, designation) VALUES ($1, $2, $3, $4)`,
		prof.ID, prof.UserID, prof.IsHod, prof.Designation,
	)
	if err != nil {
		switch {
		case isUniqueViolation(err, teacherProfilesUserKey):
			return school.TeacherProfile{}, school.ErrProfileExists
		case isViolation(err, foreignKeyViolation, ""):
			return school.TeacherProfile{}, user.ErrNotFound
		}
		return school.TeacherProfile{}, wrapErr(err, "inserting teacher profile")
	}
	return prof, nil
}

func (repo *schoolRepository) GetTeacherProfile(ctx context.Context, userID string) (school.TeacherProfile, error) {
	var prof school.TeacherProfile
	row := repo.db.QueryRowxContext(ctx,
		`SELECT id, user_id, is_hod, designation FROM teacher_profiles WHERE user_id = $1`, userID)
	if err := row.Scan(&prof.ID, &prof.UserID, &prof.IsHod, &prof.Designation); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return school.TeacherProfile{}, school.ErrNotFound
		}
		return school.TeacherProfile{}, wrapErr(err, "selecting teacher profile")
	}
	return prof, nil
}

func (repo *schoolRepository) CreateStudentProfile(ctx context.Context, prof school.StudentProfile) (school.StudentProfile, error) {
	prof.ID = newID()
	row := studentProfileRow{
		ID:              prof.ID,
		UserID:          prof.UserID,
		ClassID:         nullString(prof.ClassID),
		RollNumber:      prof.RollNumber,
		CurrentSemester: prof.CurrentSemester,
	}
	_, err := repo.db.NamedExecContext(ctx, `INSERT INTO student_profiles (id, user_id, class_id, roll_number, current_semester)
		VALUES (:id, :user_id, :class_id, :roll_number, :current_semester)`, row)
	if err != nil {
		switch {
		case isUniqueViolation(err, studentProfilesUserKey):
			return school.StudentProfile{}, school.ErrProfileExists
		case isViolation(err, foreignKeyViolation, studentProfilesClassFkey):
			return school.StudentProfile{}, school.ErrNotFound
		case isViolation(err, foreignKeyViolation, ""):
			return school.StudentProfile{}, user.ErrNotFound
		}
		return school.StudentProfile{}, wrapErr(err, "inserting student profile")
	}
	return prof, nil
}

func (repo *schoolRepository) GetStudentProfile(ctx context.Context, userID string) (school.StudentProfile, error) {
	var row studentProfileRow
	err := repo.db.GetContext(ctx, &row,
		`SELECT id, user_id, class_id, roll_number, current_semester FROM student_profiles WHERE user_id = $1`, userID)
	if err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return school.StudentProfile{}, school.ErrNotFound
		}
		return school.StudentProfile{}, wrapErr(err, "selecting student profile")
	}
	return row.toProfile(), nil
}

func (repo *schoolRepository) CreateClass(ctx context.Context, class school.Class) (school.Class, error) {
	class.ID = newID()
	row := classRow{
		ID:            class.ID,
		Name:          class.Name,
		Batch:         class.Batch,
		CoordinatorID: nullString(class.CoordinatorID),
	}
	_, err := repo.db.NamedExecContext(ctx,
		`INSERT INTO classes (id, name, batch, coordinator_id) VALUES (:id, :name, :batch, :coordinator_id)`, row)
	if err != nil {
		switch {
		case isUniqueViolation(err, classesCoordinatorKey):
			return school.Class{}, school.ErrCoordinatorTaken
		case isViolation(err, foreignKeyViolation, classesCoordinatorFkey):
			return school.Class{}, school.ErrNotATeacher
		}
		return school.Class{}, wrapErr(err, "inserting class")
	}
	return class, nil
}

func (repo *schoolRepository) GetClass(ctx context.Context, id string) (school.Class, error) {
	var row classRow
	if err := repo.db.GetContext(ctx, &row, `SELECT id, name, batch, coordinator_id FROM classes WHERE id = $1`, id); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return school.Class{}, school.ErrNotFound
		}
		return school.Class{}, wrapErr(err, "selecting class")
	}
	return row.toClass(), nil
}

func (repo *schoolRepository) QueryClasses(ctx context.Context, filter school.ClassFilter) ([]school.Class, error) {
	var (
		rows []classRow
		q    = `SELECT id, name, batch, coordinator_id FROM classes`
		args []interface{}
	)
	if filter.CoordinatorID != "" {
		q += ` WHERE coordinator_id = $1`
		args = append(args, filter.CoordinatorID)
	}
	q += ` ORDER BY batch DESC, name ASC`

	if err := repo.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, wrapErr(err, "selecting classes")
	}
	classes := make([]school.Class, 0, len(rows))
	for _, row := range rows {
		classes = append(classes, row.toClass())
	}
	return classes, nil
}

func (repo *schoolRepository) QueryTeachers(ctx context.Context) ([]school.Teacher, error) {
	var rows []teacherRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT u.id, u.name, u.email, u.password_hash, u.role, u.created_at, u.updated_at, u.last_login,
			tp.id AS profile_id, tp.is_hod, tp.designation
		FROM users u
		LEFT JOIN teacher_profiles tp ON tp.user_id = u.id
		WHERE u.role = $1
		ORDER BY u.name ASC`, user.RoleTeacher.String())
	if err != nil {
		return nil, wrapErr(err, "selecting teachers")
	}

	teachers := make([]school.Teacher, 0, len(rows))
	for _, row := range rows {
		teacher := school.Teacher{User: row.toUser()}
		if row.ProfileID.Valid {
			teacher.Profile = &school.TeacherProfile{
				ID:          row.ProfileID.String,
				UserID:      teacher.ID,
				IsHod:       row.IsHod.Bool,
				Designation: row.Designation.String,
			}
		}
		teachers = append(teachers, teacher)
	}
	return teachers, nil
}

func (repo *schoolRepository) QueryStudents(ctx context.Context, classID string) ([]school.Student, error) {
	var rows []studentRow
	err := repo.db.SelectContext(ctx, &rows, `
		SELECT u.id, u.name, u.email, u.password_hash, u.role, u.created_at, u.updated_at, u.last_login,
			sp.id AS profile_id, sp.class_id, sp.roll_number, sp.current_semester
		FROM student_profiles sp
		JOIN users u ON u.id = sp.user_id
		WHERE sp.class_id = $1
		ORDER BY sp.roll_number ASC`, classID)
	if err != nil {
		return nil, wrapErr(err, "selecting students")
	}

	students := make([]school.Student, 0, len(rows))
	for _, row := range rows {
		usr := row.toUser()
		students = append(students, school.Student{
			StudentProfile: school.StudentProfile{
				ID:              row.ProfileID,
				UserID:          usr.ID,
				ClassID:         row.ClassID.String,
				RollNumber:      row.RollNumber,
				CurrentSemester: row.CurrentSemester,
			},
			User: usr,
		})
	}
	return students, nil
}

func (repo *schoolRepository) CreateSession(ctx context.Context, sess school.Session) (school.Session, error) {
	sess.ID = newID()
	_, err := repo.db.ExecContext(ctx,
		`INSERT INTO attendance_sessions (id, class_id, subject, date) VALUES ($1, $2, $3, $4)`,
		sess.ID, sess.ClassID, sess.Subject, sess.Date,
	)
	if err != nil {
		if isViolation(err, foreignKeyViolation, "") {
			return school.Session{}, school.ErrNotFound
		}
		return school.Session{}, wrapErr(err, "inserting session")
	}
	return sess, nil
}

func (repo *schoolRepository) CountSessions(ctx context.Context, from, to time.Time) (int, error) {
	var count int
	err := repo.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM attendance_sessions WHERE date >= $1 AND date <= $2`, from, to)
	if err != nil {
		return 0, wrapErr(err, "counting sessions")
	}
	return count, nil
}
