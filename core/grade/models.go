package grade

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

// Values are the accepted grade values.
var Values = []string{"A+", "A", "A-", "B+", "B", "B-", "C+", "C", "C-", "D+", "D", "D-", "E", "F"}

type Grade struct {
	ID                 int64     `json:"id" db:"id"`
	StudentID          int64     `json:"student_id" db:"student_id"`
	StudentEmail       string    `json:"student" db:"student_email"`
	CourseID           int64     `json:"course_id" db:"course_id"`
	CourseName         string    `json:"course" db:"course_name"`
	CourseInstructorID int64     `json:"-" db:"course_instructor_id"`
	TeacherID          int64     `json:"teacher_id" db:"teacher_id"`
	TeacherEmail       string    `json:"teacher" db:"teacher_email"`
	Value              string    `json:"grade" db:"grade"`
	Date               core.Date `json:"date" db:"date"`
}

func (g Grade) OwnerStudentID() int64 { return g.StudentID }
func (g Grade) OwnerTeacherID() int64 { return g.TeacherID }
func (g Grade) InstructorOf() int64   { return g.CourseInstructorID }

// NewGrade contains information needed to grade a Student, by email, in a Course, by name.
// Teacher defaults to the acting teacher, or to the course instructor when an admin grades.
type NewGrade struct {
	Student string    `json:"student" validate:"required,email"`
	Course  string    `json:"course" validate:"required,notblank"`
	Value   string    `json:"grade" validate:"required,grade"`
	Date    core.Date `json:"date"`
	Teacher string    `json:"teacher" validate:"omitempty,email"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.Student = core.CleanString(ng.Student, true /* lower */)
	ng.Course = core.CleanString(ng.Course)
	ng.Value = core.CleanString(ng.Value)
	ng.Teacher = core.CleanString(ng.Teacher, true /* lower */)
	if ng.Date.IsZero() {
		ng.Date = core.Today()
	}
	return validate.Struct(ng)
}

// UpdateGrade defines what may be modified on a Grade. Empty fields keep their current value.
type UpdateGrade struct {
	Value string    `json:"grade" validate:"omitempty,grade"`
	Date  core.Date `json:"date"`
}

func (ug *UpdateGrade) Validate(orig Grade, validate *validator.Validate) error {
	if v := core.CleanString(ug.Value); v != "" {
		ug.Value = v
	} else {
		ug.Value = orig.Value
	}
	if ug.Date.IsZero() {
		ug.Date = orig.Date
	}
	return validate.Struct(ug)
}

// Fields declares the list modifiers accepted on grades.
var Fields = core.FieldSet{
	Filters:  map[string]string{"course__name": "c.name", "grade": "g.grade", "date": "g.date"},
	Search:   []string{"su.email", "c.name", "g.grade"},
	Ordering: map[string]string{"date": "g.date", "grade": "g.grade", "course__name": "c.name"},
	Default:  []core.DBOrdering{{Field: "g.id", Ascending: true}},
	Dates:    []string{"date"},
}
