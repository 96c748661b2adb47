package notification

import (
	"bytes"
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/grade"
	"github.com/trezcool/academia/core/user"
)

// Subjects & bodies of the notification emails.
const (
	ReminderSubject     = "Attendance Reminder"
	ReminderBody        = "Please mark your attendance for today."
	WeeklySubject       = "Weekly Performance Update"
	NotificationSubject = "New Notification"

	reportDateLayout = "02.01.2006"
)

var tracer = otel.Tracer("github.com/trezcool/academia/core/notification")

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		QueryNotifications(ctx context.Context, scope access.Scope, params core.ListParams) ([]Notification, int, error)
	}

	GradeSource interface {
		ListStudentGrades(ctx context.Context, studentID int64) ([]grade.Grade, error)
	}

	AttendanceSource interface {
		ListStudentAttendancesOn(ctx context.Context, studentID int64, date core.Date) ([]attendance.Attendance, error)
	}

	Deps struct {
		Repo        Repository
		Users       user.Repository
		Grades      GradeSource
		Attendances AttendanceSource
		Mail        core.EmailService
		Queue       core.JobQueue
		Scopes      *access.Resolver
		Validate    *validator.Validate
		Logger      core.Logger
		Now         func() time.Time // defaults to time.Now
	}

	// Dispatcher sends every email of the app: reactive grade updates, scheduled batches & manual notifications.
	Dispatcher struct {
		Deps
	}

	// GradeUpdate is the payload of the grade_update job.
	GradeUpdate struct {
		StudentEmail string
		CourseName   string
		OldGrade     string
		NewGrade     string
	}
)

func NewDispatcher(deps Deps) *Dispatcher {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Dispatcher{Deps: deps}
}

func address(name, email string) mail.Address {
	return mail.Address{Name: name, Address: email}
}

// send delivers one message and reports its failure with the recipient.
func (d *Dispatcher) send(ctx context.Context, msg *core.EmailMessage) error {
	if err := d.Mail.SendMessage(ctx, msg); err != nil {
		err = core.NewUpstreamError("mail", errors.Wrapf(err, "sending %q to %v", msg.Subject, msg.Recipients()))
		d.Logger.Error(err.Error(), err)
		return err
	}
	return nil
}

func (d *Dispatcher) startJob(ctx context.Context, name string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "notification."+name)
}

func (d *Dispatcher) endJob(span trace.Span, name string, res BatchResult) {
	span.SetAttributes(attribute.Int("notification.sent", res.Sent), attribute.Int("notification.failed", res.Failed))
	span.End()
	d.Logger.Info(fmt.Sprintf("%s: %d sent, %d failed", name, res.Sent, res.Failed))
}

// HandleEvent subscribes the dispatcher to domain events. Grade events enqueue the grade-update email.
func (d *Dispatcher) HandleEvent(_ context.Context, evt core.Event) {
	if evt.EntityType != core.EntityGrade {
		return
	}
	upd := GradeUpdate{
		StudentEmail: evt.StudentEmail,
		CourseName:   evt.CourseName,
		OldGrade:     evt.OldValue,
		NewGrade:     evt.NewValue,
	}
	err := d.Queue.Enqueue("grade_update", func(ctx context.Context) error {
		return d.SendGradeUpdate(ctx, upd)
	})
	if err != nil {
		d.Logger.Error(fmt.Sprintf("enqueuing grade update for %s: %v", evt.StudentEmail, err), err)
	}
}

// SendGradeUpdate records a Notification for the student and emails them their new grade.
func (d *Dispatcher) SendGradeUpdate(ctx context.Context, upd GradeUpdate) error {
	ctx, span := d.startJob(ctx, "grade_update")
	defer span.End()

	student, err := d.Users.GetStudent(ctx, user.StudentFilter{Email: upd.StudentEmail})
	if err != nil {
		return errors.Wrap(err, "finding student")
	}

	message := fmt.Sprintf("Your grade for the course %s has been updated to %s.", upd.CourseName, upd.NewGrade)
	if _, err = d.Repo.CreateNotification(ctx, Notification{
		StudentID: student.ID,
		Message:   message,
		CreatedAt: d.Now().UTC(),
	}); err != nil {
		return errors.Wrap(err, "creating notification")
	}

	return d.send(ctx, &core.EmailMessage{
		To:           []mail.Address{address(student.Name, student.Email)},
		Subject:      "Grade Update for " + upd.CourseName,
		TemplateName: "grade_update",
		TemplateData: gradeUpdateData{CourseName: upd.CourseName, OldGrade: upd.OldGrade, NewGrade: upd.NewGrade},
	})
}

// SendDailyAttendanceReminder emails every role=student user.
func (d *Dispatcher) SendDailyAttendanceReminder(ctx context.Context) (BatchResult, error) {
	ctx, span := d.startJob(ctx, "daily_reminder")
	var res BatchResult
	defer func() { d.endJob(span, "daily attendance reminder", res) }()

	students, err := d.Users.ListUsersByRole(ctx, user.RoleStudent)
	if err != nil {
		return res, errors.Wrap(err, "listing students")
	}
	for _, usr := range students {
		res.add(d.send(ctx, &core.EmailMessage{
			To:      []mail.Address{address(usr.Name, usr.Email)},
			Subject: ReminderSubject,
			BodyStr: ReminderBody,
		}))
	}
	return res, nil
}

// SendWeeklyPerformanceEmail emails every role=student user the list of their grades.
// A user without a Student record has no grades yet.
func (d *Dispatcher) SendWeeklyPerformanceEmail(ctx context.Context) (BatchResult, error) {
	ctx, span := d.startJob(ctx, "weekly_performance")
	var res BatchResult
	defer func() { d.endJob(span, "weekly performance email", res) }()

	users, err := d.Users.ListUsersByRole(ctx, user.RoleStudent)
	if err != nil {
		return res, errors.Wrap(err, "listing students")
	}
	for _, usr := range users {
		grades, err := d.studentGrades(ctx, usr.ID)
		if err != nil {
			res.add(errors.Wrapf(err, "listing grades of %s", usr.Email))
			continue
		}
		res.add(d.send(ctx, &core.EmailMessage{
			To:           []mail.Address{address(usr.Name, usr.Email)},
			Subject:      WeeklySubject,
			TemplateName: "weekly_performance",
			TemplateData: weeklyPerformanceData{Grades: reportGrades(grades)},
		}))
	}
	return res, nil
}

func (d *Dispatcher) studentGrades(ctx context.Context, userID int64) ([]grade.Grade, error) {
	student, err := d.Users.GetStudent(ctx, user.StudentFilter{UserID: userID})
	if err != nil {
		if core.IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return d.Grades.ListStudentGrades(ctx, student.ID)
}

// BuildDailyReport gathers, per Student, today's attendance ("absent" when unmarked) and all grades.
func (d *Dispatcher) BuildDailyReport(ctx context.Context, date core.Date) ([]ReportRow, error) {
	students, err := d.Users.ListStudents(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing students")
	}

	rows := make([]ReportRow, 0, len(students))
	for _, student := range students {
		records, err := d.Attendances.ListStudentAttendancesOn(ctx, student.ID, date)
		if err != nil {
			return nil, errors.Wrapf(err, "listing attendances of %s", student.Email)
		}
		status := attendance.StatusAbsent
		if len(records) > 0 {
			status = records[0].Status
		}
		grades, err := d.Grades.ListStudentGrades(ctx, student.ID)
		if err != nil {
			return nil, errors.Wrapf(err, "listing grades of %s", student.Email)
		}
		name := student.Name
		if name == "" {
			name = student.Email
		}
		rows = append(rows, ReportRow{
			StudentName:  name,
			StudentEmail: student.Email,
			Attendance:   status,
			Grades:       reportGrades(grades),
		})
	}
	return rows, nil
}

// SendDailyReport emails the daily report, with an xlsx copy attached, to every admin.
func (d *Dispatcher) SendDailyReport(ctx context.Context) (BatchResult, error) {
	ctx, span := d.startJob(ctx, "daily_report")
	var res BatchResult
	defer func() { d.endJob(span, "daily report", res) }()

	now := d.Now()
	rows, err := d.BuildDailyReport(ctx, core.DateOf(now))
	if err != nil {
		return res, err
	}
	workbook, err := buildReportWorkbook(rows)
	if err != nil {
		return res, errors.Wrap(err, "building report workbook")
	}
	admins, err := d.Users.ListUsersByRole(ctx, user.RoleAdmin)
	if err != nil {
		return res, errors.Wrap(err, "listing admins")
	}

	day := now.Format(reportDateLayout)
	data := dailyReportData{Date: day, Rows: rows}
	for _, admin := range admins {
		msg := &core.EmailMessage{
			To:           []mail.Address{address(admin.Name, admin.Email)},
			Subject:      "Daily Report for " + day,
			TemplateName: "daily_report",
			TemplateData: data,
		}
		if err := msg.Attach(bytes.NewReader(workbook.Bytes()), "daily-report-"+core.DateOf(now).String()+".xlsx", reportContentType); err != nil {
			res.add(errors.Wrap(err, "attaching report"))
			continue
		}
		res.add(d.send(ctx, msg))
	}
	return res, nil
}

// Create records a Notification for a Student and emails it. Teachers & admins only.
func (d *Dispatcher) Create(ctx context.Context, p *user.Principal, nn NewNotification) (Notification, error) {
	if err := access.Authorize(p, access.ActionCreate, access.ResourceNotification); err != nil {
		return Notification{}, err
	}
	if err := nn.Validate(d.Validate); err != nil {
		return Notification{}, err
	}
	student, err := d.Users.GetStudent(ctx, user.StudentFilter{Email: nn.Student})
	if err != nil {
		if core.IsNotFound(err) {
			return Notification{}, user.ErrStudentNotFound
		}
		return Notification{}, errors.Wrap(err, "finding student")
	}

	n, err := d.Repo.CreateNotification(ctx, Notification{
		StudentID: student.ID,
		Message:   nn.Message,
		CreatedAt: d.Now().UTC(),
	})
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}
	d.Logger.Info(fmt.Sprintf("Notification sent to %s by %s", student.Email, p.Email))

	msg := &core.EmailMessage{
		To:      []mail.Address{address(student.Name, student.Email)},
		Subject: NotificationSubject,
		BodyStr: n.Message,
	}
	if err = d.Queue.Enqueue("notification", func(ctx context.Context) error { return d.send(ctx, msg) }); err != nil {
		d.Logger.Error(fmt.Sprintf("enqueuing notification email for %s: %v", student.Email, err), err)
	}
	return n, nil
}

// Query lists notifications; students only see their own.
func (d *Dispatcher) Query(ctx context.Context, p *user.Principal, params core.ListParams) (core.Page[Notification], error) {
	if err := access.Authorize(p, access.ActionList, access.ResourceNotification); err != nil {
		return core.Page[Notification]{}, err
	}
	scope, err := d.Scopes.Scope(ctx, p, access.ResourceNotification)
	if err != nil {
		return core.Page[Notification]{}, err
	}
	if params, err = params.Clean(Fields); err != nil {
		return core.Page[Notification]{}, err
	}
	notifications, count, err := d.Repo.QueryNotifications(ctx, scope, params)
	if err != nil {
		return core.Page[Notification]{}, errors.Wrap(err, "querying notifications")
	}
	return core.NewPage(notifications, count, params), nil
}

func reportGrades(grades []grade.Grade) []ReportGrade {
	rgs := make([]ReportGrade, 0, len(grades))
	for _, g := range grades {
		rgs = append(rgs, ReportGrade{CourseName: g.CourseName, Value: g.Value})
	}
	return rgs
}
