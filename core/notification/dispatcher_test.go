package notification_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
	emailsvc "github.com/trezcool/academia/services/email"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/services/worker"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
	"github.com/trezcool/academia/tests"
)

var now = time.Date(2024, 3, 4, 18, 0, 0, 0, time.UTC)

type fixture struct {
	repos testutil.Repos
	mail  *emailsvc.MockService
	d     *notification.Dispatcher
}

func setup(t *testing.T) fixture {
	repos := testutil.NewRepos(t)
	logger := logsvc.NewDiscardLogger()
	validate := testutil.NewValidator()
	mail := emailsvc.NewMockService()

	d := notification.NewDispatcher(notification.Deps{
		Repo:        sqlxrepos.NewNotificationRepository(repos.DB),
		Users:       repos.Users,
		Grades:      repos.Grades,
		Attendances: repos.Attendances,
		Mail:        mail,
		Queue:       worker.NewSyncQueue(logger),
		Scopes:      access.NewResolver(user.NewService(repos.Users, nil, validate, logger)),
		Validate:    validate,
		Logger:      logger,
		Now:         func() time.Time { return now },
	})
	return fixture{repos: repos, mail: mail, d: d}
}

func TestDispatcher_SendDailyAttendanceReminder(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	testutil.CreateStudent(t, f.repos.Users, "Ann", "ann@test.cd")
	testutil.CreateStudent(t, f.repos.Users, "Bob", "bob@test.cd")
	testutil.CreateUser(t, f.repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)

	res, err := f.d.SendDailyAttendanceReminder(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)
	assert.Equal(t, 0, res.Failed)

	msgs := f.mail.SentMessages()
	require.Len(t, msgs, 2)
	for _, msg := range msgs {
		assert.Equal(t, notification.ReminderSubject, msg.Subject)
		assert.Equal(t, notification.ReminderBody, msg.TextContent)
	}
	assert.Len(t, f.mail.SentTo("ann@test.cd"), 1)
	assert.Len(t, f.mail.SentTo("bob@test.cd"), 1)
	assert.Empty(t, f.mail.SentTo("teacher@test.cd"))
}

func TestDispatcher_batchesIsolateFailures(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	testutil.CreateStudent(t, f.repos.Users, "Ann", "ann@test.cd")
	testutil.CreateStudent(t, f.repos.Users, "Bob", "bob@test.cd")
	testutil.CreateStudent(t, f.repos.Users, "Cid", "cid@test.cd")
	f.mail.FailFor("bob@test.cd")

	jobs := map[string]func(context.Context) (notification.BatchResult, error){
		"daily reminder": f.d.SendDailyAttendanceReminder,
		"weekly summary": f.d.SendWeeklyPerformanceEmail,
	}
	for name, job := range jobs {
		t.Run(name, func(t *testing.T) {
			f.mail.Reset()
			res, err := job(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, res.Sent)
			assert.Equal(t, 1, res.Failed)
			require.Len(t, res.Errors, 1)
			assert.True(t, core.IsUpstream(res.Errors[0]), res.Errors[0])
			assert.Contains(t, res.Errors[0].Error(), "bob@test.cd")
			assert.Len(t, f.mail.SentTo("ann@test.cd"), 1)
			assert.Len(t, f.mail.SentTo("cid@test.cd"), 1)
		})
	}
}

func TestDispatcher_SendWeeklyPerformanceEmail(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	_, ann := testutil.CreateStudent(t, f.repos.Users, "Ann", "ann@test.cd")
	testutil.CreateStudent(t, f.repos.Users, "Bob", "bob@test.cd")
	physics := testutil.CreateCourse(t, f.repos.Courses, "Physics", teacher)
	maths := testutil.CreateCourse(t, f.repos.Courses, "Maths", teacher)
	testutil.CreateGrade(t, f.repos.Grades, ann, physics, teacher, "B")
	testutil.CreateGrade(t, f.repos.Grades, ann, maths, teacher, "A")

	res, err := f.d.SendWeeklyPerformanceEmail(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Sent)

	msgs := f.mail.SentTo("ann@test.cd")
	require.Len(t, msgs, 1)
	assert.Equal(t, notification.WeeklySubject, msgs[0].Subject)
	assert.Contains(t, msgs[0].TextContent, "Physics: B")
	assert.Contains(t, msgs[0].TextContent, "Maths: A")

	msgs = f.mail.SentTo("bob@test.cd")
	require.Len(t, msgs, 1)
	assert.NotContains(t, msgs[0].TextContent, "Physics")

	t.Run("student user without a record", func(t *testing.T) {
		f.mail.Reset()
		testutil.CreateStudentUser(t, f.repos.Users, "Cid", "cid@test.cd")

		res, err := f.d.SendWeeklyPerformanceEmail(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, res.Sent)
		msgs := f.mail.SentTo("cid@test.cd")
		require.Len(t, msgs, 1)
		assert.Contains(t, msgs[0].TextContent, "Your current grades:")
	})
}

func TestDispatcher_SendDailyReport(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	testutil.CreateUser(t, f.repos.Users, "Admin", "admin@test.cd", user.RoleAdmin)
	testutil.CreateUser(t, f.repos.Users, "Boss", "boss@test.cd", user.RoleAdmin)
	_, ann := testutil.CreateStudent(t, f.repos.Users, "Ann", "ann@test.cd")
	testutil.CreateStudent(t, f.repos.Users, "", "bob@test.cd")
	physics := testutil.CreateCourse(t, f.repos.Courses, "Physics", teacher)
	testutil.CreateGrade(t, f.repos.Grades, ann, physics, teacher, "B")
	testutil.CreateAttendance(t, f.repos.Attendances, ann, physics, core.DateOf(now), attendance.StatusLate)
	testutil.CreateAttendance(t, f.repos.Attendances, ann, physics, core.DateOf(now.AddDate(0, 0, -1)), attendance.StatusPresent)

	t.Run("rows", func(t *testing.T) {
		rows, err := f.d.BuildDailyReport(ctx, core.DateOf(now))
		require.NoError(t, err)
		require.Len(t, rows, 2)

		byEmail := map[string]notification.ReportRow{}
		for _, row := range rows {
			byEmail[row.StudentEmail] = row
		}
		assert.Equal(t, attendance.StatusLate, byEmail["ann@test.cd"].Attendance)
		assert.Equal(t, []notification.ReportGrade{{CourseName: "Physics", Value: "B"}}, byEmail["ann@test.cd"].Grades)
		assert.Equal(t, attendance.StatusAbsent, byEmail["bob@test.cd"].Attendance)
		assert.Equal(t, "bob@test.cd", byEmail["bob@test.cd"].StudentName)
		assert.Empty(t, byEmail["bob@test.cd"].Grades)
	})

	t.Run("sent to every admin", func(t *testing.T) {
		res, err := f.d.SendDailyReport(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Sent)
		assert.Empty(t, f.mail.SentTo("teacher@test.cd"))
		assert.Empty(t, f.mail.SentTo("ann@test.cd"))

		msgs := f.mail.SentTo("admin@test.cd")
		require.Len(t, msgs, 1)
		msg := msgs[0]
		assert.Equal(t, "Daily Report for 04.03.2024", msg.Subject)
		assert.Contains(t, msg.TextContent, "Attendance: late")
		assert.Contains(t, msg.TextContent, "Attendance: absent")

		require.Len(t, msg.Attachments, 1)
		at := msg.Attachments[0]
		assert.Equal(t, "daily-report-2024-03-04.xlsx", at.Filename)

		raw, err := base64.StdEncoding.DecodeString(at.Content.String())
		require.NoError(t, err)
		wb, err := excelize.OpenReader(bytes.NewReader(raw))
		require.NoError(t, err)
		defer func() { _ = wb.Close() }()
		sheetRows, err := wb.GetRows("Sheet1")
		require.NoError(t, err)
		require.Len(t, sheetRows, 3)
		assert.Equal(t, []string{"Student", "Email", "Attendance", "Grades"}, sheetRows[0])

		var cells []string
		for _, r := range sheetRows[1:] {
			cells = append(cells, strings.Join(r, "|"))
		}
		assert.Contains(t, cells, "Ann|ann@test.cd|late|Physics: B")
		assert.Contains(t, cells, "bob@test.cd|bob@test.cd|absent")
	})
}

func TestDispatcher_HandleEvent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, ann := testutil.CreateStudent(t, f.repos.Users, "Ann", "ann@test.cd")

	t.Run("ignores other entities", func(t *testing.T) {
		f.d.HandleEvent(ctx, core.Event{EntityType: core.EntityAttendance, StudentEmail: "ann@test.cd"})
		assert.Empty(t, f.mail.SentMessages())
	})

	t.Run("grade events email the student", func(t *testing.T) {
		evt := core.NewEvent(core.EntityGrade, core.ActionUpdated, 1)
		evt.StudentEmail = "ann@test.cd"
		evt.CourseName = "Physics"
		evt.OldValue = "B"
		evt.NewValue = "A"
		f.d.HandleEvent(ctx, evt)

		msgs := f.mail.SentTo("ann@test.cd")
		require.Len(t, msgs, 1)
		assert.Equal(t, "Grade Update for Physics", msgs[0].Subject)
		assert.Contains(t, msgs[0].TextContent, "A")

		page, err := f.d.Query(ctx, &user.Principal{ID: ann.UserID, Role: user.RoleStudent, Email: "ann@test.cd"}, core.ListParams{})
		require.NoError(t, err)
		require.Equal(t, 1, page.Count)
		assert.Equal(t, "Your grade for the course Physics has been updated to A.", page.Results[0].Message)
	})

	t.Run("delivery failures do not panic", func(t *testing.T) {
		f.mail.FailFor("ann@test.cd")
		evt := core.NewEvent(core.EntityGrade, core.ActionCreated, 2)
		evt.StudentEmail = "ann@test.cd"
		evt.CourseName = "Maths"
		evt.NewValue = "C"
		assert.NotPanics(t, func() { f.d.HandleEvent(ctx, evt) })
	})
}

func TestDispatcher_CreateQuery(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	teacher := testutil.CreateUser(t, f.repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	annUsr, _ := testutil.CreateStudent(t, f.repos.Users, "Ann", "ann@test.cd")
	bobUsr, _ := testutil.CreateStudent(t, f.repos.Users, "Bob", "bob@test.cd")
	tp := testutil.PrincipalOf(teacher)

	tests := []struct {
		name  string
		p     *user.Principal
		nn    notification.NewNotification
		check func(t *testing.T, err error)
	}{
		{"student", testutil.PrincipalOf(annUsr), notification.NewNotification{Student: bobUsr.Email, Message: "hi"},
			func(t *testing.T, err error) { assert.True(t, core.IsAuthorization(err), err) }},
		{"blank message", tp, notification.NewNotification{Student: annUsr.Email, Message: "  "},
			func(t *testing.T, err error) { assert.True(t, core.IsValidation(err), err) }},
		{"unknown student", tp, notification.NewNotification{Student: "ghost@test.cd", Message: "hi"},
			func(t *testing.T, err error) { assert.True(t, core.IsNotFound(err), err) }},
		{"ok", tp, notification.NewNotification{Student: "ANN@test.cd", Message: "See me after class"},
			func(t *testing.T, err error) { assert.NoError(t, err) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.d.Create(ctx, tc.p, tc.nn)
			tc.check(t, err)
		})
	}

	msgs := f.mail.SentTo("ann@test.cd")
	require.Len(t, msgs, 1)
	assert.Equal(t, notification.NotificationSubject, msgs[0].Subject)
	assert.Equal(t, "See me after class", msgs[0].TextContent)

	t.Run("students see their own", func(t *testing.T) {
		page, err := f.d.Query(ctx, testutil.PrincipalOf(annUsr), core.ListParams{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Count)

		page, err = f.d.Query(ctx, testutil.PrincipalOf(bobUsr), core.ListParams{})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Count)
	})
	t.Run("staff see every notification", func(t *testing.T) {
		page, err := f.d.Query(ctx, tp, core.ListParams{})
		require.NoError(t, err)
		assert.Equal(t, 1, page.Count)
		assert.Equal(t, "ann@test.cd", page.Results[0].StudentEmail)
	})
	t.Run("anonymous", func(t *testing.T) {
		_, err := f.d.Query(ctx, nil, core.ListParams{})
		assert.Equal(t, core.ErrUnauthenticated, err)
	})
}
