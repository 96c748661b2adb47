package access

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type studentsStub map[int64]user.Student // by user ID

func (s studentsStub) GetStudentByUserID(_ context.Context, userID int64) (user.Student, error) {
	if st, ok := s[userID]; ok {
		return st, nil
	}
	return user.Student{}, user.ErrStudentNotFound
}

type row struct{ student, teacher, instructor int64 }

func (r row) OwnerStudentID() int64 { return r.student }
func (r row) OwnerTeacherID() int64 { return r.teacher }
func (r row) InstructorOf() int64   { return r.instructor }

func TestResolver_Scope(t *testing.T) {
	ctx := context.Background()
	resolver := NewResolver(studentsStub{10: {ID: 100, UserID: 10}})

	student := &user.Principal{ID: 10, Role: user.RoleStudent}
	orphan := &user.Principal{ID: 11, Role: user.RoleStudent}
	teacher := &user.Principal{ID: 20, Role: user.RoleTeacher}
	admin := &user.Principal{ID: 30, Role: user.RoleAdmin}

	tests := []struct {
		name     string
		p        *user.Principal
		resource Resource
		want     Scope
		wantErr  error
	}{
		{name: "student grades", p: student, resource: ResourceGrade, want: Scope{StudentID: 100}},
		{name: "student attendance", p: student, resource: ResourceAttendance, want: Scope{StudentID: 100}},
		{name: "student notifications", p: student, resource: ResourceNotification, want: Scope{StudentID: 100}},
		{name: "student courses", p: student, resource: ResourceCourse, want: Unrestricted},
		{name: "student without record", p: orphan, resource: ResourceGrade, wantErr: user.ErrStudentNotFound},
		{name: "student without record, courses", p: orphan, resource: ResourceCourse, want: Unrestricted},
		{name: "teacher grades", p: teacher, resource: ResourceGrade, want: Scope{TeacherID: 20}},
		{name: "teacher attendance", p: teacher, resource: ResourceAttendance, want: Scope{InstructorID: 20}},
		{name: "teacher enrollments", p: teacher, resource: ResourceEnrollment, want: Unrestricted},
		{name: "admin grades", p: admin, resource: ResourceGrade, want: Unrestricted},
		{name: "anonymous", p: nil, resource: ResourceGrade, wantErr: core.ErrUnauthenticated},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := resolver.Scope(ctx, tc.p, tc.resource)
			if tc.wantErr != nil {
				require.Error(t, err)
				assert.Equal(t, tc.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestScope_Match(t *testing.T) {
	r := row{student: 1, teacher: 2, instructor: 3}
	tests := []struct {
		name  string
		scope Scope
		want  bool
	}{
		{"unrestricted", Unrestricted, true},
		{"own student", Scope{StudentID: 1}, true},
		{"other student", Scope{StudentID: 9}, false},
		{"own teacher", Scope{TeacherID: 2}, true},
		{"other teacher", Scope{TeacherID: 3}, false},
		{"instructor", Scope{InstructorID: 3}, true},
		{"other instructor", Scope{InstructorID: 2}, false},
		{"zero", Scope{}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.scope.Match(r))
		})
	}
}
