package school

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mindzed/attendance/core"
	"github.com/mindzed/attendance/core/user"
)

type (
	TeacherProfile struct {
		ID          string `json:"id"`
		UserID      string `json:"user_id"`
		IsHod       bool   `json:"is_hod"`
		Designation string `json:"designation"`
	}

	StudentProfile struct {
		ID              string `json:"id"`
		UserID          string `json:"user_id"`
		ClassID         string `json:"class_id"` // empty when not enrolled
		RollNumber      string `json:"roll_number"`
		CurrentSemester int    `json:"current_semester"`
	}

	// Class is a group of students, optionally coordinated by one teacher (a CR).
	Class struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		Batch         string `json:"batch"`
		CoordinatorID string `json:"coordinator_id"` // TeacherProfile.ID; empty when unassigned
	}

	// Session is a scheduled class meeting.
	Session struct {
		ID      string    `json:"id"`
		ClassID string    `json:"class_id"`
		Subject string    `json:"subject"`
		Date    time.Time `json:"date"`
	}

	Teacher struct {
		user.User
		Profile *TeacherProfile `json:"teacher_profile"` // nil until a profile is added
	}

	Student struct {
		StudentProfile
		User user.User `json:"user"`
	}

	DashboardStats struct {
		TotalStudents int `json:"total_students"`
		TotalTeachers int `json:"total_teachers"`
		TodaySessions int `json:"today_sessions"`
	}

	ClassRoster struct {
		Class    Class     `json:"class"`
		Students []Student `json:"students"`
	}
)

// NewClass contains information needed to create a Class.
type NewClass struct {
	Name             string `json:"name" validate:"required,notblank"`
	Batch            string `json:"batch" validate:"required,notblank"`
	CoordinatorEmail string `json:"coordinator_email" validate:"omitempty,email"`
}

func (nc *NewClass) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Batch = core.CleanString(nc.Batch)
	nc.CoordinatorEmail = core.CleanString(nc.CoordinatorEmail, true /* lower */)
	return validate.Struct(nc)
}

type NewTeacherProfile struct {
	IsHod       bool   `json:"is_hod"`
	Designation string `json:"designation"`
}

type NewStudentProfile struct {
	ClassID         string `json:"class_id"`
	RollNumber      string `json:"roll_number"`
	CurrentSemester int    `json:"current_semester" validate:"gte=0"`
}

type NewSession struct {
	ClassID string    `json:"class_id" validate:"required"`
	Subject string    `json:"subject" validate:"required,notblank"`
	Date    time.Time `json:"date" validate:"required"`
}

type ClassFilter struct {
	CoordinatorID string
}
