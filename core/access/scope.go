package access

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

// Scope restricts a record set to what one principal may see. The zero Scope sees nothing.
type Scope struct {
	All          bool
	StudentID    int64 // rows owned by this Student
	TeacherID    int64 // rows whose teacher is this User
	InstructorID int64 // rows whose course is instructed by this User
}

// Unrestricted is the Scope of unscoped resources.
var Unrestricted = Scope{All: true}

// Row is what a scoped record exposes to Match.
type Row interface {
	OwnerStudentID() int64
	OwnerTeacherID() int64
	InstructorOf() int64
}

// Match is the in-memory form of the Scope predicate.
func (s Scope) Match(r Row) bool {
	switch {
	case s.All:
		return true
	case s.StudentID != 0:
		return r.OwnerStudentID() == s.StudentID
	case s.TeacherID != 0:
		return r.OwnerTeacherID() == s.TeacherID
	case s.InstructorID != 0:
		return r.InstructorOf() == s.InstructorID
	}
	return false
}

// StudentFinder resolves the Student record of a role=student user.
type StudentFinder interface {
	GetStudentByUserID(ctx context.Context, userID int64) (user.Student, error)
}

type Resolver struct {
	students StudentFinder
}

func NewResolver(students StudentFinder) *Resolver {
	return &Resolver{students: students}
}

// Scope returns the rows of resource visible to p.
// A student principal without a Student record gets a NotFoundError.
func (r *Resolver) Scope(ctx context.Context, p *user.Principal, resource Resource) (Scope, error) {
	if p == nil {
		return Scope{}, core.ErrUnauthenticated
	}

	switch resource {
	case ResourceGrade, ResourceAttendance, ResourceNotification:
	default:
		return Unrestricted, nil
	}

	switch p.Role {
	case user.RoleAdmin:
		return Unrestricted, nil
	case user.RoleStudent:
		student, err := r.students.GetStudentByUserID(ctx, p.ID)
		if err != nil {
			if core.IsNotFound(err) {
				return Scope{}, user.ErrStudentNotFound
			}
			return Scope{}, errors.Wrap(err, "finding student record")
		}
		return Scope{StudentID: student.ID}, nil
	case user.RoleTeacher:
		switch resource {
		case ResourceGrade:
			return Scope{TeacherID: p.ID}, nil
		case ResourceAttendance:
			return Scope{InstructorID: p.ID}, nil
		}
		return Unrestricted, nil
	}
	return Scope{}, nil
}
