package notification

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

type Notification struct {
	ID           int64     `json:"id" db:"id"`
	StudentID    int64     `json:"student_id" db:"student_id"`
	StudentEmail string    `json:"student" db:"student_email"`
	Message      string    `json:"message" db:"message"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
}

func (n Notification) OwnerStudentID() int64 { return n.StudentID }
func (n Notification) OwnerTeacherID() int64 { return 0 }
func (n Notification) InstructorOf() int64   { return 0 }

// NewNotification contains information needed to notify a Student, by email.
type NewNotification struct {
	Student string `json:"student" validate:"required,email"`
	Message string `json:"message" validate:"required,notblank,max=1000"`
}

func (nn *NewNotification) Validate(validate *validator.Validate) error {
	nn.Student = core.CleanString(nn.Student, true /* lower */)
	nn.Message = core.CleanString(nn.Message)
	return validate.Struct(nn)
}

// Fields declares the list modifiers accepted on notifications.
var Fields = core.FieldSet{
	Filters:  map[string]string{"student__email": "su.email"},
	Search:   []string{"n.message"},
	Ordering: map[string]string{"created_at": "n.created_at"},
	Default:  []core.DBOrdering{{Field: "n.created_at", Ascending: false}, {Field: "n.id", Ascending: false}},
}

// BatchResult sums up a scheduled job: a failed recipient never stops the others.
type BatchResult struct {
	Sent   int
	Failed int
	Errors []error
}

func (r *BatchResult) add(err error) {
	if err != nil {
		r.Failed++
		r.Errors = append(r.Errors, err)
		return
	}
	r.Sent++
}

// ReportRow is one student line of the daily admin report.
type ReportRow struct {
	StudentName  string
	StudentEmail string
	Attendance   string
	Grades       []ReportGrade
}

type ReportGrade struct {
	CourseName string
	Value      string
}

type dailyReportData struct {
	Date string
	Rows []ReportRow
}

type gradeUpdateData struct {
	CourseName string
	OldGrade   string
	NewGrade   string
}

type weeklyPerformanceData struct {
	Grades []ReportGrade
}
