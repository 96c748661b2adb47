package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/course"
)

const (
	courseColumns = "c.id, c.name, c.description, c.instructor_id, i.email AS instructor_email"
	courseFrom    = "courses c JOIN users i ON i.id = c.instructor_id"

	enrollmentColumns = "e.id, e.student_id, su.email AS student_email, e.course_id, c.name AS course_name"
	enrollmentFrom    = "enrollments e" +
		" JOIN students s ON s.id = e.student_id" +
		" JOIN users su ON su.id = s.user_id" +
		" JOIN courses c ON c.id = e.course_id"
)

type courseRepository struct {
	db *sqlx.DB
}

var _ course.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *sqlx.DB) *courseRepository {
	return &courseRepository{db: db}
}

func (repo courseRepository) CreateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO courses (name, description, instructor_id) VALUES (?, ?, ?)",
		c.Name, c.Description, c.InstructorID)
	if err != nil {
		if isUniqueViolation(err) {
			return course.Course{}, course.ErrNameExists
		}
		return course.Course{}, dbError(err, "inserting course")
	}
	return repo.GetCourse(ctx, course.GetFilter{ID: id})
}

func (repo courseRepository) GetCourse(ctx context.Context, filter course.GetFilter) (course.Course, error) {
	q := newSelect(courseColumns, courseFrom)
	switch {
	case filter.ID != 0:
		q.Where("c.id = ?", filter.ID)
	case filter.Name != "":
		q.Where("c.name = ?", filter.Name)
	default:
		return course.Course{}, course.ErrNotFound
	}
	return getOne[course.Course](ctx, repo.db, q, course.ErrNotFound, "course")
}

func (repo courseRepository) QueryCourses(ctx context.Context, params core.ListParams) ([]course.Course, int, error) {
	q := newSelect(courseColumns, courseFrom).List(params, course.Fields)
	return queryPage[course.Course](ctx, repo.db, q, "courses")
}

func (repo courseRepository) UpdateCourse(ctx context.Context, c course.Course) (course.Course, error) {
	err := execAffecting(ctx, repo.db, course.ErrNotFound,
		"UPDATE courses SET name = ?, description = ?, instructor_id = ? WHERE id = ?",
		c.Name, c.Description, c.InstructorID, c.ID)
	if err != nil {
		if errors.Is(err, course.ErrNotFound) {
			return course.Course{}, err
		}
		if isUniqueViolation(err) {
			return course.Course{}, course.ErrNameExists
		}
		return course.Course{}, dbError(err, "updating course")
	}
	return repo.GetCourse(ctx, course.GetFilter{ID: c.ID})
}

func (repo courseRepository) DeleteCourse(ctx context.Context, id int64) error {
	err := execAffecting(ctx, repo.db, course.ErrNotFound, "DELETE FROM courses WHERE id = ?", id)
	if err != nil && !errors.Is(err, course.ErrNotFound) {
		return dbError(err, "deleting course")
	}
	return err
}

func (repo courseRepository) CreateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	id, err := insert(ctx, repo.db, "INSERT INTO enrollments (student_id, course_id) VALUES (?, ?)", e.StudentID, e.CourseID)
	if err != nil {
		if isUniqueViolation(err) {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
		return course.Enrollment{}, dbError(err, "inserting enrollment")
	}
	return repo.GetEnrollment(ctx, id)
}

func (repo courseRepository) GetEnrollment(ctx context.Context, id int64) (course.Enrollment, error) {
	q := newSelect(enrollmentColumns, enrollmentFrom).Where("e.id = ?", id)
	return getOne[course.Enrollment](ctx, repo.db, q, course.ErrEnrollmentNotFound, "enrollment")
}

func (repo courseRepository) FindEnrollment(ctx context.Context, studentID, courseID int64) (course.Enrollment, error) {
	q := newSelect(enrollmentColumns, enrollmentFrom).
		Where("e.student_id = ?", studentID).
		Where("e.course_id = ?", courseID)
	return getOne[course.Enrollment](ctx, repo.db, q, course.ErrEnrollmentNotFound, "enrollment")
}

func (repo courseRepository) QueryEnrollments(ctx context.Context, params core.ListParams) ([]course.Enrollment, int, error) {
	q := newSelect(enrollmentColumns, enrollmentFrom).List(params, course.EnrollmentFields)
	return queryPage[course.Enrollment](ctx, repo.db, q, "enrollments")
}

func (repo courseRepository) UpdateEnrollment(ctx context.Context, e course.Enrollment) (course.Enrollment, error) {
	err := execAffecting(ctx, repo.db, course.ErrEnrollmentNotFound,
		"UPDATE enrollments SET student_id = ?, course_id = ? WHERE id = ?", e.StudentID, e.CourseID, e.ID)
	if err != nil {
		if errors.Is(err, course.ErrEnrollmentNotFound) {
			return course.Enrollment{}, err
		}
		if isUniqueViolation(err) {
			return course.Enrollment{}, course.ErrAlreadyEnrolled
		}
		return course.Enrollment{}, dbError(err, "updating enrollment")
	}
	return repo.GetEnrollment(ctx, e.ID)
}

func (repo courseRepository) DeleteEnrollment(ctx context.Context, id int64) error {
	err := execAffecting(ctx, repo.db, course.ErrEnrollmentNotFound, "DELETE FROM enrollments WHERE id = ?", id)
	if err != nil && !errors.Is(err, course.ErrEnrollmentNotFound) {
		return dbError(err, "deleting enrollment")
	}
	return err
}
