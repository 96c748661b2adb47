package testutil

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/attendance"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/grade"
	"github.com/trezcool/academia/core/user"
	"github.com/trezcool/academia/storage/database"
	sqlxrepos "github.com/trezcool/academia/storage/database/sqlx"
)

// Password is the password of every user created by CreateUser.
const Password = "Sup3r-S3cret!"

// PrepareDB returns a migrated SQLite database, removed when the test ends.
func PrepareDB(t *testing.T) *sqlx.DB {
	t.Helper()
	conf := core.NewTestConfig()
	conf.Database.Path = filepath.Join(t.TempDir(), "test.db")

	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("database.Open(): %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err = database.Migrate(db, conf.Database.Engine); err != nil {
		t.Fatalf("database.Migrate(): %v", err)
	}
	return db
}

// NewValidator returns a validator with every app validator registered.
func NewValidator() *validator.Validate {
	validate, translator := core.NewValidator()
	user.InitValidators(validate, translator)
	grade.InitValidators(validate, translator)
	return validate
}

// Repos bundles the repositories of one test database.
type Repos struct {
	DB          *sqlx.DB
	Users       user.Repository
	Courses     course.Repository
	Grades      grade.Repository
	Attendances attendance.Repository
}

func NewRepos(t *testing.T) Repos {
	t.Helper()
	db := PrepareDB(t)
	return Repos{
		DB:          db,
		Users:       sqlxrepos.NewUserRepository(db),
		Courses:     sqlxrepos.NewCourseRepository(db),
		Grades:      sqlxrepos.NewGradeRepository(db),
		Attendances: sqlxrepos.NewAttendanceRepository(db),
	}
}

// CreateUser stores a User, with its Student record when role is student.
// The username is the local part of email.
func CreateUser(t *testing.T, repo user.Repository, name, email string, role user.Role) user.User {
	t.Helper()
	return createUser(t, repo, name, email, role, role == user.RoleStudent)
}

// CreateStudentUser stores a role=student User without a Student record.
func CreateStudentUser(t *testing.T, repo user.Repository, name, email string) user.User {
	t.Helper()
	return createUser(t, repo, name, email, user.RoleStudent, false)
}

func createUser(t *testing.T, repo user.Repository, name, email string, role user.Role, withStudent bool) user.User {
	t.Helper()
	now := time.Now().UTC()
	usr := user.User{
		Name:      name,
		Username:  strings.ReplaceAll(strings.SplitN(email, "@", 2)[0], ".", "_"),
		Email:     email,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(Password); err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	var student *user.Student
	if withStudent {
		student = &user.Student{}
	}
	usr, err := repo.CreateUser(context.Background(), usr, student)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// CreateStudent stores a role=student User and returns its Student record.
func CreateStudent(t *testing.T, repo user.Repository, name, email string) (user.User, user.Student) {
	t.Helper()
	usr := CreateUser(t, repo, name, email, user.RoleStudent)
	student, err := repo.GetStudent(context.Background(), user.StudentFilter{UserID: usr.ID})
	if err != nil {
		t.Fatalf("CreateStudent(): %v", err)
	}
	return usr, student
}

func CreateCourse(t *testing.T, repo course.Repository, name string, instructor user.User) course.Course {
	t.Helper()
	c, err := repo.CreateCourse(context.Background(), course.Course{
		Name:         name,
		Description:  null.StringFrom(name + " course"),
		InstructorID: instructor.ID,
	})
	if err != nil {
		t.Fatalf("CreateCourse(): %v", err)
	}
	return c
}

func Enroll(t *testing.T, repo course.Repository, student user.Student, c course.Course) course.Enrollment {
	t.Helper()
	e, err := repo.CreateEnrollment(context.Background(), course.Enrollment{StudentID: student.ID, CourseID: c.ID})
	if err != nil {
		t.Fatalf("Enroll(): %v", err)
	}
	return e
}

func CreateGrade(t *testing.T, repo grade.Repository, student user.Student, c course.Course, teacher user.User, value string, date ...core.Date) grade.Grade {
	t.Helper()
	d := core.Today()
	if len(date) > 0 {
		d = date[0]
	}
	g, err := repo.CreateGrade(context.Background(), grade.Grade{
		StudentID: student.ID,
		CourseID:  c.ID,
		TeacherID: teacher.ID,
		Value:     value,
		Date:      d,
	})
	if err != nil {
		t.Fatalf("CreateGrade(): %v", err)
	}
	return g
}

func CreateAttendance(t *testing.T, repo attendance.Repository, student user.Student, c course.Course, date core.Date, status string) attendance.Attendance {
	t.Helper()
	a, err := repo.CreateAttendance(context.Background(), attendance.Attendance{
		StudentID: student.ID,
		CourseID:  c.ID,
		Date:      date,
		Status:    status,
	})
	if err != nil {
		t.Fatalf("CreateAttendance(): %v", err)
	}
	return a
}

// PrincipalOf returns a pointer to the principal of usr.
func PrincipalOf(usr user.User) *user.Principal {
	p := usr.Principal()
	return &p
}
