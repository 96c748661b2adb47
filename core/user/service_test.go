package user_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
	cachesvc "github.com/trezcool/academia/services/cache"
	logsvc "github.com/trezcool/academia/services/logger"
	"github.com/trezcool/academia/tests"
)

func setup(t *testing.T) (testutil.Repos, user.Service, core.Cache) {
	repos := testutil.NewRepos(t)
	cache := cachesvc.NewMemoryCache()
	return repos, user.NewService(repos.Users, cache, testutil.NewValidator(), logsvc.NewDiscardLogger()), cache
}

func TestService_Register(t *testing.T) {
	ctx := context.Background()
	repos, svc, _ := setup(t)
	testutil.CreateUser(t, repos.Users, "Taken", "taken@test.cd", user.RoleTeacher)

	newUser := func(username, email, pwd string) user.NewUser {
		return user.NewUser{Name: "John Doe", Username: username, Email: email, Password: pwd, PasswordConfirm: pwd}
	}

	tests := []struct {
		name    string
		nu      user.NewUser
		wantErr bool
	}{
		{"too short", newUser("john", "john@test.cd", "Ab1!"), true},
		{"whitespace", newUser("john", "john@test.cd", "Sup3r S3cret!"), true},
		{"all numeric", newUser("john", "john@test.cd", "1234567890"), true},
		{"not complex", newUser("john", "john@test.cd", "supersecret"), true},
		{"similar to username", newUser("johnsmith1", "john@test.cd", "Johnsmith1!"), true},
		{"common", newUser("john", "john@test.cd", "Password1!"), true},
		{"confirmation mismatch", user.NewUser{Username: "john", Email: "john@test.cd", Password: testutil.Password, PasswordConfirm: "nope"}, true},
		{"bad username", newUser("jo hn", "john@test.cd", testutil.Password), true},
		{"username with dash", newUser("jo-hn", "john@test.cd", testutil.Password), true},
		{"bad role", user.NewUser{Username: "john", Email: "john@test.cd", Role: "janitor", Password: testutil.Password, PasswordConfirm: testutil.Password}, true},
		{"email taken", newUser("john", "TAKEN@test.cd", testutil.Password), true},
		{"username taken", newUser("taken", "john@test.cd", testutil.Password), true},
		{"ok", newUser(" John ", " John@Test.cd ", testutil.Password), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			usr, err := svc.Register(ctx, tc.nu)
			if tc.wantErr {
				assert.True(t, core.IsValidation(err), err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "john", usr.Username)
			assert.Equal(t, "john@test.cd", usr.Email)
			assert.Equal(t, user.RoleStudent, usr.Role)
			assert.NoError(t, usr.CheckPassword(testutil.Password))

			student, err := svc.GetStudentByUserID(ctx, usr.ID)
			require.NoError(t, err)
			assert.Equal(t, "john@test.cd", student.Email)
		})
	}
}

func TestService_Authenticate(t *testing.T) {
	ctx := context.Background()
	repos, svc, _ := setup(t)
	usr := testutil.CreateUser(t, repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)

	p, err := svc.Authenticate(ctx, " Teacher@test.cd", testutil.Password)
	require.NoError(t, err)
	assert.Equal(t, usr.Principal(), p)

	_, err = svc.Authenticate(ctx, "teacher@test.cd", "wrong")
	assert.True(t, core.IsValidation(err), err)
	_, err = svc.Authenticate(ctx, "ghost@test.cd", testutil.Password)
	assert.True(t, core.IsValidation(err), err)
}

func TestService_Update(t *testing.T) {
	ctx := context.Background()
	repos, svc, _ := setup(t)

	admin := testutil.CreateUser(t, repos.Users, "Admin", "admin@test.cd", user.RoleAdmin)
	teacher := testutil.CreateUser(t, repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	idle := testutil.CreateUser(t, repos.Users, "Idle", "idle@test.cd", user.RoleTeacher)
	stdUsr, _ := testutil.CreateStudent(t, repos.Users, "Student", "student@test.cd")
	testutil.CreateCourse(t, repos.Courses, "Physics", teacher)
	ap := testutil.PrincipalOf(admin)

	t.Run("non-admins only see themselves", func(t *testing.T) {
		_, err := svc.Update(ctx, testutil.PrincipalOf(stdUsr), teacher.ID, user.UpdateUser{Name: "Hacked"})
		assert.True(t, core.IsNotFound(err), err)
	})
	t.Run("non-admins cannot change their role", func(t *testing.T) {
		_, err := svc.Update(ctx, testutil.PrincipalOf(stdUsr), stdUsr.ID, user.UpdateUser{Role: user.RoleAdmin})
		assert.True(t, core.IsAuthorization(err), err)
	})
	t.Run("merge update", func(t *testing.T) {
		usr, err := svc.Update(ctx, testutil.PrincipalOf(stdUsr), stdUsr.ID, user.UpdateUser{Name: "Renamed"})
		require.NoError(t, err)
		assert.Equal(t, "Renamed", usr.Name)
		assert.Equal(t, stdUsr.Email, usr.Email)
		assert.Equal(t, stdUsr.Username, usr.Username)
		assert.NoError(t, usr.CheckPassword(testutil.Password))
	})
	t.Run("email taken", func(t *testing.T) {
		_, err := svc.Update(ctx, ap, stdUsr.ID, user.UpdateUser{Email: teacher.Email})
		assert.True(t, core.IsValidation(err), err)
	})
	t.Run("instructors keep their role", func(t *testing.T) {
		_, err := svc.Update(ctx, ap, teacher.ID, user.UpdateUser{Role: user.RoleStudent})
		assert.True(t, core.IsValidation(err), err)
	})
	t.Run("failed role change writes nothing", func(t *testing.T) {
		_, err := svc.Update(ctx, ap, idle.ID, user.UpdateUser{Role: user.RoleStudent, Email: stdUsr.Email})
		assert.True(t, core.IsValidation(err), err)

		usr, err := repos.Users.GetUser(ctx, user.GetFilter{ID: idle.ID})
		require.NoError(t, err)
		assert.Equal(t, user.RoleTeacher, usr.Role)
		_, err = svc.GetStudentByUserID(ctx, idle.ID)
		assert.True(t, core.IsNotFound(err), err)
	})
	t.Run("becoming a student creates the record", func(t *testing.T) {
		usr, err := svc.Update(ctx, ap, idle.ID, user.UpdateUser{Role: user.RoleStudent})
		require.NoError(t, err)
		assert.Equal(t, user.RoleStudent, usr.Role)
		_, err = svc.GetStudentByUserID(ctx, idle.ID)
		assert.NoError(t, err)
	})
}

func TestService_Delete(t *testing.T) {
	ctx := context.Background()
	repos, svc, _ := setup(t)

	admin := testutil.CreateUser(t, repos.Users, "Admin", "admin@test.cd", user.RoleAdmin)
	teacher := testutil.CreateUser(t, repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	stdUsr, _ := testutil.CreateStudent(t, repos.Users, "Student", "student@test.cd")
	ap := testutil.PrincipalOf(admin)

	assert.Equal(t, core.ErrUnauthenticated, svc.Delete(ctx, nil, stdUsr.ID))
	assert.True(t, core.IsAuthorization(svc.Delete(ctx, testutil.PrincipalOf(teacher), stdUsr.ID)))
	assert.True(t, core.IsAuthorization(svc.Delete(ctx, ap, admin.ID)))
	assert.True(t, core.IsNotFound(svc.Delete(ctx, ap, 9999)))

	require.NoError(t, svc.Delete(ctx, ap, stdUsr.ID))
	_, err := svc.GetStudentByUserID(ctx, stdUsr.ID)
	assert.True(t, core.IsNotFound(err), err)
}

func TestService_CreateStudent(t *testing.T) {
	ctx := context.Background()
	repos, svc, _ := setup(t)

	admin := testutil.CreateUser(t, repos.Users, "Admin", "admin@test.cd", user.RoleAdmin)
	teacher := testutil.CreateUser(t, repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	stdUsr, _ := testutil.CreateStudent(t, repos.Users, "Student", "student@test.cd")
	ap := testutil.PrincipalOf(admin)

	_, err := svc.CreateStudent(ctx, testutil.PrincipalOf(teacher), user.NewStudent{Email: stdUsr.Email})
	assert.True(t, core.IsAuthorization(err), err)
	_, err = svc.CreateStudent(ctx, ap, user.NewStudent{Email: teacher.Email})
	assert.True(t, core.IsValidation(err), err)
	_, err = svc.CreateStudent(ctx, ap, user.NewStudent{Email: stdUsr.Email})
	assert.True(t, core.IsValidation(err), err)

	t.Run("listing", func(t *testing.T) {
		_, err := svc.QueryStudents(ctx, testutil.PrincipalOf(stdUsr), core.ListParams{})
		assert.True(t, core.IsAuthorization(err), err)

		page, err := svc.QueryStudents(ctx, testutil.PrincipalOf(teacher), core.ListParams{})
		require.NoError(t, err)
		require.Equal(t, 1, page.Count)
		assert.Equal(t, stdUsr.Email, page.Results[0].Email)
	})
}

func TestService_dropsCachedRecords(t *testing.T) {
	ctx := context.Background()
	repos, svc, cache := setup(t)
	courseSvc := course.NewService(repos.Courses, repos.Users, cache, course.CacheTTLs{
		CourseList:     time.Minute,
		EnrollmentList: time.Minute,
	}, testutil.NewValidator(), logsvc.NewDiscardLogger())

	admin := testutil.CreateUser(t, repos.Users, "Admin", "admin@test.cd", user.RoleAdmin)
	teacher := testutil.CreateUser(t, repos.Users, "Teacher", "teacher@test.cd", user.RoleTeacher)
	stdUsr, _ := testutil.CreateStudent(t, repos.Users, "Student", "student@test.cd")
	testutil.CreateCourse(t, repos.Courses, "Physics", teacher)
	ap := testutil.PrincipalOf(admin)

	_, err := courseSvc.Enroll(ctx, ap, course.NewEnrollment{Student: stdUsr.Email, Course: "Physics"})
	require.NoError(t, err)

	t.Run("email change", func(t *testing.T) {
		page, err := courseSvc.QueryEnrollments(ctx, ap, core.ListParams{})
		require.NoError(t, err)
		require.Equal(t, 1, page.Count)
		assert.Equal(t, "student@test.cd", page.Results[0].StudentEmail)

		_, err = svc.Update(ctx, ap, stdUsr.ID, user.UpdateUser{Email: "pupil@test.cd"})
		require.NoError(t, err)

		page, err = courseSvc.QueryEnrollments(ctx, ap, core.ListParams{})
		require.NoError(t, err)
		require.Equal(t, 1, page.Count)
		assert.Equal(t, "pupil@test.cd", page.Results[0].StudentEmail)
	})
	t.Run("instructor deleted", func(t *testing.T) {
		page, err := courseSvc.Query(ctx, ap, core.ListParams{})
		require.NoError(t, err)
		require.Equal(t, 1, page.Count)

		require.NoError(t, svc.Delete(ctx, ap, teacher.ID))

		page, err = courseSvc.Query(ctx, ap, core.ListParams{})
		require.NoError(t, err)
		assert.Equal(t, 0, page.Count)
		enrollments, err := courseSvc.QueryEnrollments(ctx, ap, core.ListParams{})
		require.NoError(t, err)
		assert.Equal(t, 0, enrollments.Count)
	})
}
