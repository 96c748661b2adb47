package attendance_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/user"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/tests"
)

type eventRecorder struct {
	mu     sync.Mutex
	events []core.Event
}

func (r *eventRecorder) handle(_ context.Context, evt core.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func setup(t *testing.T) (testutil.Repos, *attendance.Service, *eventRecorder) {
	repos := testutil.NewRepos(t)
	logger := logsvc.NewDiscardLogger()
	validate := testutil.NewValidator()
	usrSvc := user.NewService(repos.Users, nil, validate, logger)

	rec := new(eventRecorder)
	bus := core.NewEventBus(rec.handle)
	svc := attendance.NewService(repos.Attendances, repos.Users, repos.Courses, access.NewResolver(usrSvc), bus, validate, logger)
	return repos, svc, rec
}

func TestService_Create(t *testing.T) {
	ctx := context.Background()
	repos, svc, rec := setup(t)

	teacher := testutil.CreateUser(t, repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	otherTeacher := testutil.CreateUser(t, repos.Users, "Other", "other.teacher@test.cd", user.RoleTeacher)
	admin := testutil.CreateUser(t, repos.Users, "Admin", "admin@test.cd", user.RoleAdmin)
	stdUsr, _ := testutil.CreateStudent(t, repos.Users, "Student", "student@test.cd")
	testutil.CreateCourse(t, repos.Courses, "Physics", teacher)
	day := core.NewDate(2024, 3, 4)

	tests := []struct {
		name  string
		p     *user.Principal
		na    attendance.NewAttendance
		check func(t *testing.T, err error)
	}{
		{"anonymous", nil, attendance.NewAttendance{Student: stdUsr.Email, Course: "Physics", Status: "present"},
			func(t *testing.T, err error) { assert.Equal(t, core.ErrUnauthenticated, err) }},
		{"student", testutil.PrincipalOf(stdUsr), attendance.NewAttendance{Student: stdUsr.Email, Course: "Physics", Status: "present"},
			func(t *testing.T, err error) { assert.True(t, core.IsAuthorization(err), err) }},
		{"teacher of another course", testutil.PrincipalOf(otherTeacher), attendance.NewAttendance{Student: stdUsr.Email, Course: "Physics", Status: "present"},
			func(t *testing.T, err error) { assert.True(t, core.IsAuthorization(err), err) }},
		{"invalid status", testutil.PrincipalOf(teacher), attendance.NewAttendance{Student: stdUsr.Email, Course: "Physics", Status: "sleeping"},
			func(t *testing.T, err error) { assert.True(t, core.IsValidation(err), err) }},
		{"unknown course", testutil.PrincipalOf(teacher), attendance.NewAttendance{Student: stdUsr.Email, Course: "Chemistry", Status: "present"},
			func(t *testing.T, err error) { assert.True(t, core.IsValidation(err), err) }},
		{"instructor", testutil.PrincipalOf(teacher), attendance.NewAttendance{Student: stdUsr.Email, Course: "Physics", Date: day, Status: " Present "},
			func(t *testing.T, err error) { assert.NoError(t, err) }},
		{"same student, course & date", testutil.PrincipalOf(admin), attendance.NewAttendance{Student: stdUsr.Email, Course: "Physics", Date: day, Status: "late"},
			func(t *testing.T, err error) { assert.True(t, core.IsValidation(err), err) }},
		{"admin defaults to today", testutil.PrincipalOf(admin), attendance.NewAttendance{Student: stdUsr.Email, Course: "Physics", Status: "late"},
			func(t *testing.T, err error) { assert.NoError(t, err) }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tc.p, tc.na)
			tc.check(t, err)
		})
	}

	require.Len(t, rec.events, 2)
	assert.Equal(t, core.EntityAttendance, rec.events[0].EntityType)
	assert.Equal(t, core.ActionCreated, rec.events[0].Action)
	assert.Equal(t, "present", rec.events[0].NewValue)
	assert.Equal(t, teacher.Email, rec.events[0].ActorEmail)
	assert.Equal(t, "late", rec.events[1].NewValue)
}

func TestService_scoping(t *testing.T) {
	ctx := context.Background()
	repos, svc, rec := setup(t)

	teacher := testutil.CreateUser(t, repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	otherTeacher := testutil.CreateUser(t, repos.Users, "Other", "other.teacher@test.cd", user.RoleTeacher)
	admin := testutil.CreateUser(t, repos.Users, "Admin", "admin@test.cd", user.RoleAdmin)
	stdUsr, student := testutil.CreateStudent(t, repos.Users, "Student", "student@test.cd")
	otherUsr, other := testutil.CreateStudent(t, repos.Users, "Other Student", "other.student@test.cd")
	physics := testutil.CreateCourse(t, repos.Courses, "Physics", teacher)
	maths := testutil.CreateCourse(t, repos.Courses, "Maths", otherTeacher)

	day := core.NewDate(2024, 3, 4)
	mine := testutil.CreateAttendance(t, repos.Attendances, student, physics, day, attendance.StatusPresent)
	testutil.CreateAttendance(t, repos.Attendances, other, physics, day, attendance.StatusAbsent)
	theirs := testutil.CreateAttendance(t, repos.Attendances, student, maths, day, attendance.StatusLate)

	t.Run("instructor lists own courses only", func(t *testing.T) {
		page, err := svc.Query(ctx, testutil.PrincipalOf(teacher), core.ListParams{})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Count)
		for _, a := range page.Results {
			assert.Equal(t, "Physics", a.CourseName)
		}
	})
	t.Run("admin lists everything", func(t *testing.T) {
		page, err := svc.Query(ctx, testutil.PrincipalOf(admin), core.ListParams{})
		require.NoError(t, err)
		assert.Equal(t, 3, page.Count)
	})
	t.Run("students cannot list", func(t *testing.T) {
		_, err := svc.Query(ctx, testutil.PrincipalOf(stdUsr), core.ListParams{})
		assert.True(t, core.IsAuthorization(err), err)
	})
	t.Run("students retrieve their own", func(t *testing.T) {
		a, err := svc.Get(ctx, testutil.PrincipalOf(stdUsr), mine.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusPresent, a.Status)

		_, err = svc.Get(ctx, testutil.PrincipalOf(otherUsr), mine.ID)
		assert.True(t, core.IsNotFound(err), err)
	})
	t.Run("out of scope writes are not found", func(t *testing.T) {
		_, err := svc.Update(ctx, testutil.PrincipalOf(teacher), theirs.ID, attendance.UpdateAttendance{Status: "excused"})
		assert.True(t, core.IsNotFound(err), err)
		assert.True(t, core.IsNotFound(svc.Delete(ctx, testutil.PrincipalOf(teacher), theirs.ID)))
	})
	t.Run("update keeps the date and records the old status", func(t *testing.T) {
		a, err := svc.Update(ctx, testutil.PrincipalOf(teacher), mine.ID, attendance.UpdateAttendance{Status: "excused"})
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusExcused, a.Status)
		assert.True(t, a.Date.Equal(day))

		require.NotEmpty(t, rec.events)
		last := rec.events[len(rec.events)-1]
		assert.Equal(t, core.ActionUpdated, last.Action)
		assert.Equal(t, attendance.StatusPresent, last.OldValue)
		assert.Equal(t, attendance.StatusExcused, last.NewValue)
	})
	t.Run("moving onto a marked date", func(t *testing.T) {
		next := core.NewDate(2024, 3, 5)
		testutil.CreateAttendance(t, repos.Attendances, student, physics, next, attendance.StatusPresent)
		_, err := svc.Update(ctx, testutil.PrincipalOf(admin), mine.ID, attendance.UpdateAttendance{Date: next})
		assert.True(t, core.IsValidation(err), err)
	})
	t.Run("admin delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, testutil.PrincipalOf(admin), theirs.ID))
		_, err := svc.Get(ctx, testutil.PrincipalOf(admin), theirs.ID)
		assert.True(t, core.IsNotFound(err), err)
	})
}
