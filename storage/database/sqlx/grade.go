package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/grade"
)

const (
	gradeColumns = "g.id, g.student_id, su.email AS student_email, g.course_id, c.name AS course_name," +
		" c.instructor_id AS course_instructor_id, g.teacher_id, t.email AS teacher_email, g.grade, g.date"
	gradeFrom = "grades g" +
		" JOIN students s ON s.id = g.student_id" +
		" JOIN users su ON su.id = s.user_id" +
		" JOIN courses c ON c.id = g.course_id" +
		" JOIN users t ON t.id = g.teacher_id"
)

var gradeScope = scopeColumns{student: "g.student_id", teacher: "g.teacher_id", instructor: "c.instructor_id"}

type gradeRepository struct {
	db *sqlx.DB
}

var _ grade.Repository = (*gradeRepository)(nil) // interface compliance check

func NewGradeRepository(db *sqlx.DB) *gradeRepository {
	return &gradeRepository{db: db}
}

func (repo gradeRepository) CreateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO grades (student_id, course_id, teacher_id, grade, date) VALUES (?, ?, ?, ?, ?)",
		g.StudentID, g.CourseID, g.TeacherID, g.Value, g.Date)
	if err != nil {
		return grade.Grade{}, dbError(err, "inserting grade")
	}
	return repo.GetGrade(ctx, id, access.Unrestricted)
}

func (repo gradeRepository) GetGrade(ctx context.Context, id int64, scope access.Scope) (grade.Grade, error) {
	q := newSelect(gradeColumns, gradeFrom).Where("g.id = ?", id).Scope(scope, gradeScope)
	return getOne[grade.Grade](ctx, repo.db, q, grade.ErrNotFound, "grade")
}

func (repo gradeRepository) QueryGrades(ctx context.Context, scope access.Scope, params core.ListParams) ([]grade.Grade, int, error) {
	q := newSelect(gradeColumns, gradeFrom).Scope(scope, gradeScope).List(params, grade.Fields)
	return queryPage[grade.Grade](ctx, repo.db, q, "grades")
}

func (repo gradeRepository) ListStudentGrades(ctx context.Context, studentID int64) ([]grade.Grade, error) {
	q := newSelect(gradeColumns, gradeFrom).Where("g.student_id = ?", studentID).OrderBy("c.name ASC", "g.date ASC", "g.id ASC")
	return selectAll[grade.Grade](ctx, repo.db, q, "grades")
}

func (repo gradeRepository) UpdateGrade(ctx context.Context, g grade.Grade) (grade.Grade, error) {
	err := execAffecting(ctx, repo.db, grade.ErrNotFound,
		"UPDATE grades SET grade = ?, date = ?, teacher_id = ? WHERE id = ?", g.Value, g.Date, g.TeacherID, g.ID)
	if err != nil {
		if errors.Is(err, grade.ErrNotFound) {
			return grade.Grade{}, err
		}
		return grade.Grade{}, dbError(err, "updating grade")
	}
	return repo.GetGrade(ctx, g.ID, access.Unrestricted)
}

func (repo gradeRepository) DeleteGrade(ctx context.Context, id int64) error {
	err := execAffecting(ctx, repo.db, grade.ErrNotFound, "DELETE FROM grades WHERE id = ?", id)
	if err != nil && !errors.Is(err, grade.ErrNotFound) {
		return dbError(err, "deleting grade")
	}
	return err
}
