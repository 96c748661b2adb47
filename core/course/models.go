package course

import (
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
)

type Course struct {
	ID              int64       `json:"id" db:"id"`
	Name            string      `json:"name" db:"name"`
	Description     null.String `json:"description" db:"description"`
	InstructorID    int64       `json:"instructor_id" db:"instructor_id"`
	InstructorEmail string      `json:"instructor" db:"instructor_email"`
}

// NewCourse contains information needed to create a Course. The instructor is referenced by email.
type NewCourse struct {
	Name        string `json:"name" validate:"required,notblank,max=100"`
	Description string `json:"description" validate:"max=2000"`
	Instructor  string `json:"instructor" validate:"required,email"`
}

func (nc *NewCourse) Validate(validate *validator.Validate) error {
	nc.Name = core.CleanString(nc.Name)
	nc.Description = core.CleanString(nc.Description)
	nc.Instructor = core.CleanString(nc.Instructor, true /* lower */)
	return validate.Struct(nc)
}

// UpdateCourse defines what may be modified on a Course. Empty fields keep their current value.
type UpdateCourse struct {
	Name        string  `json:"name" validate:"max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Instructor  string  `json:"instructor" validate:"omitempty,email"`
}

func (uc *UpdateCourse) Validate(orig Course, validate *validator.Validate) error {
	if name := core.CleanString(uc.Name); name != "" {
		uc.Name = name
	} else {
		uc.Name = orig.Name
	}
	if uc.Description != nil {
		desc := core.CleanString(*uc.Description)
		uc.Description = &desc
	}
	if instructor := core.CleanString(uc.Instructor, true /* lower */); instructor != "" {
		uc.Instructor = instructor
	} else {
		uc.Instructor = orig.InstructorEmail
	}
	return validate.Struct(uc)
}

type Enrollment struct {
	ID           int64  `json:"id" db:"id"`
	StudentID    int64  `json:"student_id" db:"student_id"`
	StudentEmail string `json:"student" db:"student_email"`
	CourseID     int64  `json:"course_id" db:"course_id"`
	CourseName   string `json:"course" db:"course_name"`
}

// NewEnrollment enrolls a Student, by email, in a Course, by name.
type NewEnrollment struct {
	Student string `json:"student" validate:"required,email"`
	Course  string `json:"course" validate:"required,notblank"`
}

func (ne *NewEnrollment) Validate(validate *validator.Validate) error {
	ne.Student = core.CleanString(ne.Student, true /* lower */)
	ne.Course = core.CleanString(ne.Course)
	return validate.Struct(ne)
}

// UpdateEnrollment moves an Enrollment. Empty fields keep their current value.
type UpdateEnrollment struct {
	Student string `json:"student" validate:"omitempty,email"`
	Course  string `json:"course"`
}

func (ue *UpdateEnrollment) Validate(orig Enrollment, validate *validator.Validate) error {
	if s := core.CleanString(ue.Student, true /* lower */); s != "" {
		ue.Student = s
	} else {
		ue.Student = orig.StudentEmail
	}
	if c := core.CleanString(ue.Course); c != "" {
		ue.Course = c
	} else {
		ue.Course = orig.CourseName
	}
	return validate.Struct(ue)
}

type GetFilter struct {
	ID   int64
	Name string
}

// Fields declares the list modifiers accepted on courses.
var Fields = core.FieldSet{
	Filters:  map[string]string{"instructor__email": "i.email"},
	Search:   []string{"c.name", "c.description"},
	Ordering: map[string]string{"name": "c.name", "instructor__email": "i.email"},
	Default:  []core.DBOrdering{{Field: "c.id", Ascending: true}},
}

// EnrollmentFields declares the list modifiers accepted on enrollments.
var EnrollmentFields = core.FieldSet{
	Filters:  map[string]string{"student__email": "su.email", "course__name": "c.name"},
	Search:   []string{"su.email", "c.name"},
	Ordering: map[string]string{"student__email": "su.email", "course__name": "c.name"},
	Default:  []core.DBOrdering{{Field: "e.id", Ascending: true}},
}
