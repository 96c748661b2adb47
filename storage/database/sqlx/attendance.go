package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/attendance"
)

const (
	attendanceColumns = "a.id, a.student_id, su.email AS student_email, a.course_id, c.name AS course_name," +
		" c.instructor_id AS course_instructor_id, a.date, a.status"
	attendanceFrom = "attendance a" +
		" JOIN students s ON s.id = a.student_id" +
		" JOIN users su ON su.id = s.user_id" +
		" JOIN courses c ON c.id = a.course_id"
)

var attendanceScope = scopeColumns{student: "a.student_id", teacher: "c.instructor_id", instructor: "c.instructor_id"}

type attendanceRepository struct {
	db *sqlx.DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (repo attendanceRepository) CreateAttendance(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO attendance (student_id, course_id, date, status) VALUES (?, ?, ?, ?)",
		a.StudentID, a.CourseID, a.Date, a.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return attendance.Attendance{}, attendance.ErrAlreadyMarked
		}
		return attendance.Attendance{}, dbError(err, "inserting attendance")
	}
	return repo.GetAttendance(ctx, id, access.Unrestricted)
}

func (repo attendanceRepository) GetAttendance(ctx context.Context, id int64, scope access.Scope) (attendance.Attendance, error) {
	q := newSelect(attendanceColumns, attendanceFrom).Where("a.id = ?", id).Scope(scope, attendanceScope)
	return getOne[attendance.Attendance](ctx, repo.db, q, attendance.ErrNotFound, "attendance")
}

func (repo attendanceRepository) FindAttendance(ctx context.Context, studentID, courseID int64, date core.Date) (attendance.Attendance, error) {
	q := newSelect(attendanceColumns, attendanceFrom).
		Where("a.student_id = ?", studentID).
		Where("a.course_id = ?", courseID).
		Where("a.date = ?", date)
	return getOne[attendance.Attendance](ctx, repo.db, q, attendance.ErrNotFound, "attendance")
}

func (repo attendanceRepository) QueryAttendances(ctx context.Context, scope access.Scope, params core.ListParams) ([]attendance.Attendance, int, error) {
	q := newSelect(attendanceColumns, attendanceFrom).Scope(scope, attendanceScope).List(params, attendance.Fields)
	return queryPage[attendance.Attendance](ctx, repo.db, q, "attendance records")
}

func (repo attendanceRepository) ListStudentAttendancesOn(ctx context.Context, studentID int64, date core.Date) ([]attendance.Attendance, error) {
	q := newSelect(attendanceColumns, attendanceFrom).
		Where("a.student_id = ?", studentID).
		Where("a.date = ?", date).
		OrderBy("a.id ASC")
	return selectAll[attendance.Attendance](ctx, repo.db, q, "attendance records")
}

func (repo attendanceRepository) UpdateAttendance(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	err := execAffecting(ctx, repo.db, attendance.ErrNotFound,
		"UPDATE attendance SET date = ?, status = ? WHERE id = ?", a.Date, a.Status, a.ID)
	if err != nil {
		if errors.Is(err, attendance.ErrNotFound) {
			return attendance.Attendance{}, err
		}
		if isUniqueViolation(err) {
			return attendance.Attendance{}, attendance.ErrAlreadyMarked
		}
		return attendance.Attendance{}, dbError(err, "updating attendance")
	}
	return repo.GetAttendance(ctx, a.ID, access.Unrestricted)
}

func (repo attendanceRepository) DeleteAttendance(ctx context.Context, id int64) error {
	err := execAffecting(ctx, repo.db, attendance.ErrNotFound, "DELETE FROM attendance WHERE id = ?", id)
	if err != nil && !errors.Is(err, attendance.ErrNotFound) {
		return dbError(err, "deleting attendance")
	}
	return err
}
