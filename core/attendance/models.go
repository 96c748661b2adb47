package attendance

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Statuses
const (
	StatusPresent = "present"
	StatusAbsent  = "absent"
	StatusLate    = "late"
	StatusExcused = "excused"
)

type Attendance struct {
	ID                 int64     `json:"id" db:"id"`
	StudentID          int64     `json:"student_id" db:"student_id"`
	StudentEmail       string    `json:"student" db:"student_email"`
	CourseID           int64     `json:"course_id" db:"course_id"`
	CourseName         string    `json:"course" db:"course_name"`
	CourseInstructorID int64     `json:"-" db:"course_instructor_id"`
	Date               core.Date `json:"date" db:"date"`
	Status             string    `json:"status" db:"status"`
}

func (a Attendance) OwnerStudentID() int64 { return a.StudentID }
func (a Attendance) OwnerTeacherID() int64 { return a.CourseInstructorID }
func (a Attendance) InstructorOf() int64   { return a.CourseInstructorID }

// NewAttendance marks a Student, by email, for a Course, by name, on a date (today by default).
type NewAttendance struct {
	Student string    `json:"student" validate:"required,email"`
	Course  string    `json:"course" validate:"required,notblank"`
	Date    core.Date `json:"date"`
	Status  string    `json:"status" validate:"required,oneof=present absent late excused"`
}

func (na *NewAttendance) Validate(validate *validator.Validate) error {
	na.Student = core.CleanString(na.Student, true /* lower */)
	na.Course = core.CleanString(na.Course)
	na.Status = core.CleanString(na.Status, true /* lower */)
	if na.Date.IsZero() {
		na.Date = core.Today()
	}
	return validate.Struct(na)
}

// UpdateAttendance defines what may be modified on an Attendance. Empty fields keep their current value.
type UpdateAttendance struct {
	Date   core.Date `json:"date"`
	Status string    `json:"status" validate:"omitempty,oneof=present absent late excused"`
}

func (ua *UpdateAttendance) Validate(orig Attendance, validate *validator.Validate) error {
	if s := core.CleanString(ua.Status, true /* lower */); s != "" {
		ua.Status = s
	} else {
		ua.Status = orig.Status
	}
	if ua.Date.IsZero() {
		ua.Date = orig.Date
	}
	return validate.Struct(ua)
}

// Fields declares the list modifiers accepted on attendance records.
var Fields = core.FieldSet{
	Filters:  map[string]string{"course__name": "c.name", "date": "a.date", "status": "a.status"},
	Search:   []string{"su.email", "c.name"},
	Ordering: map[string]string{"date": "a.date", "course__name": "c.name", "status": "a.status"},
	Default:  []core.DBOrdering{{Field: "a.id", Ascending: true}},
	Dates:    []string{"date"},
}
