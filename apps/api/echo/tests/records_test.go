package tests

import (
	"net/http"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
	"github.com/trezcool/academia/core/notification"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/tests"
)

type page[T any] struct {
	Count   int `json:"count"`
	Results []T `json:"results"`
}

func Test_gradeApi(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	other := testutil.CreateUser(t, app.repos.Users, "Other", "other@test.cd", user.RoleTeacher)
	admin := testutil.CreateUser(t, app.repos.Users, "Admin", "admin@test.cd", user.RoleAdmin)
	annUsr, ann := testutil.CreateStudent(t, app.repos.Users, "Ann", "ann@test.cd")
	bobUsr, bob := testutil.CreateStudent(t, app.repos.Users, "Bob", "bob@test.cd")
	physics := testutil.CreateCourse(t, app.repos.Courses, "Physics", teacher)
	maths := testutil.CreateCourse(t, app.repos.Courses, "Maths", other)
	bobsGrade := testutil.CreateGrade(t, app.repos.Grades, bob, maths, other, "C")

	teacherToken := getToken(t, app.conf, teacher)
	annToken := getToken(t, app.conf, annUsr)

	newGrade := func(student, c, value string) []byte {
		return marshalObj(t, grade.NewGrade{Student: student, Course: c, Value: value})
	}

	runHTTPTests(t, app, []httpTest{
		{
			name: "students cannot grade", method: http.MethodPost, path: "/v1/grades", token: annToken,
			body: newGrade(annUsr.Email, "Physics", "A"), wantCode: http.StatusForbidden,
			wantData: marshalObj(t, httpErr{Error: "permission denied: create grade"}),
		},
		{
			name: "invalid grade", method: http.MethodPost, path: "/v1/grades", token: teacherToken,
			body: newGrade(annUsr.Email, "Physics", "Z"), wantCode: http.StatusBadRequest,
		},
		{
			name: "only the instructor grades a course", method: http.MethodPost, path: "/v1/grades", token: teacherToken,
			body: newGrade(annUsr.Email, "Maths", "A"), wantCode: http.StatusForbidden,
		},
		{name: "students cannot list", path: "/v1/grades", token: annToken, wantCode: http.StatusForbidden},
		{name: "unknown id", path: "/v1/grades/42", token: teacherToken, wantCode: http.StatusNotFound, wantData: marshalObj(t, httpErr{Error: "grade not found"})},
		{name: "out of scope", path: "/v1/grades/" + strconv.FormatInt(bobsGrade.ID, 10), token: teacherToken, wantCode: http.StatusNotFound},
		{
			name: "malformed date filter", path: "/v1/grades?date=04.03.2024", token: teacherToken,
			wantCode: http.StatusBadRequest,
			wantData: marshalObj(t, map[string]string{"date": "enter a valid date (YYYY-MM-DD)"}),
		},
	})

	t.Run("create emails the student", func(t *testing.T) {
		rec := app.do(http.MethodPost, "/v1/grades", teacherToken, newGrade(" ANN@test.cd", "Physics", "B"))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var g grade.Grade
		unmarshal(t, rec, &g)
		assert.Equal(t, "B", g.Value)
		assert.Equal(t, ann.ID, g.StudentID)
		assert.Equal(t, physics.ID, g.CourseID)
		assert.Equal(t, teacher.Email, g.TeacherEmail)

		msgs := app.mail.SentTo(annUsr.Email)
		require.Len(t, msgs, 1)
		assert.Equal(t, "Grade Update for Physics", msgs[0].Subject)

		rec = app.do(http.MethodPatch, "/v1/grades/"+strconv.FormatInt(g.ID, 10), teacherToken, []byte(`{"grade": "A"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		unmarshal(t, rec, &g)
		assert.Equal(t, "A", g.Value)
		assert.Len(t, app.mail.SentTo(annUsr.Email), 2)

		rec = app.do(http.MethodGet, "/v1/grades/"+strconv.FormatInt(g.ID, 10), annToken)
		assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rec = app.do(http.MethodGet, "/v1/grades/"+strconv.FormatInt(g.ID, 10), getToken(t, app.conf, bobUsr))
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})

	t.Run("lists are scoped", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/grades", teacherToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var p page[grade.Grade]
		unmarshal(t, rec, &p)
		require.Equal(t, 1, p.Count)
		assert.Equal(t, "Physics", p.Results[0].CourseName)

		rec = app.do(http.MethodGet, "/v1/grades?ordering=-grade&page_size=1", getToken(t, app.conf, admin))
		require.Equal(t, http.StatusOK, rec.Code)
		unmarshal(t, rec, &p)
		assert.Equal(t, 2, p.Count)
		require.Len(t, p.Results, 1)
		assert.Equal(t, "C", p.Results[0].Value)
	})
}

func Test_courseApi(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	admin := testutil.CreateUser(t, app.repos.Users, "Admin", "admin@test.cd", user.RoleAdmin)
	annUsr, _ := testutil.CreateStudent(t, app.repos.Users, "Ann", "ann@test.cd")
	testutil.CreateCourse(t, app.repos.Courses, "Physics", teacher)

	adminToken := getToken(t, app.conf, admin)
	annToken := getToken(t, app.conf, annUsr)

	t.Run("cached lists are byte-identical", func(t *testing.T) {
		first := app.do(http.MethodGet, "/v1/courses?search=phys", annToken)
		second := app.do(http.MethodGet, "/v1/courses?search=phys", annToken)
		require.Equal(t, http.StatusOK, first.Code)
		assert.Equal(t, first.Body.String(), second.Body.String())
	})

	runHTTPTests(t, app, []httpTest{
		{
			name: "students cannot create", method: http.MethodPost, path: "/v1/courses", token: annToken,
			body: marshalObj(t, course.NewCourse{Name: "Maths", Instructor: teacher.Email}), wantCode: http.StatusForbidden,
		},
		{
			name: "instructor must be a teacher", method: http.MethodPost, path: "/v1/courses", token: adminToken,
			body: marshalObj(t, course.NewCourse{Name: "Maths", Instructor: admin.Email}), wantCode: http.StatusBadRequest,
		},
		{
			name: "created", method: http.MethodPost, path: "/v1/courses", token: adminToken,
			body: marshalObj(t, course.NewCourse{Name: "Physics II", Instructor: teacher.Email}), wantCode: http.StatusCreated,
		},
		{
			name: "enrolled", method: http.MethodPost, path: "/v1/enrollments", token: adminToken,
			body: marshalObj(t, course.NewEnrollment{Student: annUsr.Email, Course: "Physics"}), wantCode: http.StatusCreated,
		},
		{
			name: "enrolled twice", method: http.MethodPost, path: "/v1/enrollments", token: adminToken,
			body: marshalObj(t, course.NewEnrollment{Student: annUsr.Email, Course: "Physics"}), wantCode: http.StatusBadRequest,
		},
	})

	t.Run("writes invalidate cached lists", func(t *testing.T) {
		rec := app.do(http.MethodGet, "/v1/courses?search=phys", annToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var p page[course.Course]
		unmarshal(t, rec, &p)
		assert.Equal(t, 2, p.Count)

		rec = app.do(http.MethodGet, "/v1/enrollments", annToken)
		require.Equal(t, http.StatusOK, rec.Code)
		var ep page[course.Enrollment]
		unmarshal(t, rec, &ep)
		require.Equal(t, 1, ep.Count)
		assert.Equal(t, "Physics", ep.Results[0].CourseName)
	})
}

func Test_attendanceApi(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	annUsr, _ := testutil.CreateStudent(t, app.repos.Users, "Ann", "ann@test.cd")
	testutil.CreateCourse(t, app.repos.Courses, "Physics", teacher)
	teacherToken := getToken(t, app.conf, teacher)

	mark := marshalObj(t, map[string]string{"student": annUsr.Email, "course": "Physics", "date": "2024-03-04", "status": "late"})

	rec := app.do(http.MethodPost, "/v1/attendance", teacherToken, mark)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var a attendance.Attendance
	unmarshal(t, rec, &a)
	assert.Equal(t, attendance.StatusLate, a.Status)
	assert.True(t, a.Date.Equal(core.NewDate(2024, 3, 4)))

	runHTTPTests(t, app, []httpTest{
		{name: "marked twice", method: http.MethodPost, path: "/v1/attendance", token: teacherToken, body: mark, wantCode: http.StatusBadRequest},
		{
			name: "students cannot mark", method: http.MethodPost, path: "/v1/attendance", token: getToken(t, app.conf, annUsr),
			body: mark, wantCode: http.StatusForbidden,
		},
		{
			name: "update", method: http.MethodPut, path: "/v1/attendance/" + strconv.FormatInt(a.ID, 10), token: teacherToken,
			body: []byte(`{"status": "excused"}`),
		},
		{name: "delete", method: http.MethodDelete, path: "/v1/attendance/" + strconv.FormatInt(a.ID, 10), token: teacherToken, wantCode: http.StatusNoContent},
	})
}

func Test_notificationApi(t *testing.T) {
	app := setup(t)

	teacher := testutil.CreateUser(t, app.repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	annUsr, _ := testutil.CreateStudent(t, app.repos.Users, "Ann", "ann@test.cd")
	bobUsr, _ := testutil.CreateStudent(t, app.repos.Users, "Bob", "bob@test.cd")
	annToken := getToken(t, app.conf, annUsr)

	body := marshalObj(t, notification.NewNotification{Student: annUsr.Email, Message: "See me after class"})
	runHTTPTests(t, app, []httpTest{
		{name: "students cannot notify", method: http.MethodPost, path: "/v1/notifications", token: annToken, body: body, wantCode: http.StatusForbidden},
		{name: "notified", method: http.MethodPost, path: "/v1/notifications", token: getToken(t, app.conf, teacher), body: body, wantCode: http.StatusCreated},
	})
	assert.Len(t, app.mail.SentTo(annUsr.Email), 1)

	var p page[notification.Notification]
	rec := app.do(http.MethodGet, "/v1/notifications", annToken)
	require.Equal(t, http.StatusOK, rec.Code)
	unmarshal(t, rec, &p)
	require.Equal(t, 1, p.Count)
	assert.Equal(t, "See me after class", p.Results[0].Message)

	rec = app.do(http.MethodGet, "/v1/notifications", getToken(t, app.conf, bobUsr))
	require.Equal(t, http.StatusOK, rec.Code)
	unmarshal(t, rec, &p)
	assert.Equal(t, 0, p.Count)
}
