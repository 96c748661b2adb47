package access

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

func TestAuthorize(t *testing.T) {
	student := &user.Principal{ID: 1, Role: user.RoleStudent}
	teacher := &user.Principal{ID: 2, Role: user.RoleTeacher}
	admin := &user.Principal{ID: 3, Role: user.RoleAdmin}

	type want struct{ anon, student, teacher, admin bool }
	staffOnly := want{teacher: true, admin: true}
	everyRole := want{student: true, teacher: true, admin: true}
	open := want{anon: true, student: true, teacher: true, admin: true}

	tests := []struct {
		resource Resource
		action   Action
		want     want
	}{
		{ResourceGrade, ActionCreate, staffOnly},
		{ResourceGrade, ActionUpdate, staffOnly},
		{ResourceGrade, ActionPartialUpdate, staffOnly},
		{ResourceGrade, ActionDelete, staffOnly},
		{ResourceGrade, ActionList, staffOnly},
		{ResourceGrade, ActionRetrieve, everyRole},

		{ResourceAttendance, ActionCreate, staffOnly},
		{ResourceAttendance, ActionUpdate, staffOnly},
		{ResourceAttendance, ActionDelete, staffOnly},
		{ResourceAttendance, ActionList, staffOnly},
		{ResourceAttendance, ActionRetrieve, everyRole},

		{ResourceCourse, ActionCreate, staffOnly},
		{ResourceCourse, ActionUpdate, staffOnly},
		{ResourceCourse, ActionDelete, staffOnly},
		{ResourceCourse, ActionList, everyRole},
		{ResourceCourse, ActionRetrieve, everyRole},

		{ResourceEnrollment, ActionCreate, staffOnly},
		{ResourceEnrollment, ActionPartialUpdate, staffOnly},
		{ResourceEnrollment, ActionDelete, staffOnly},
		{ResourceEnrollment, ActionList, everyRole},
		{ResourceEnrollment, ActionRetrieve, everyRole},

		{ResourceUser, ActionCreate, open},
		{ResourceUser, ActionList, everyRole},
		{ResourceUser, ActionRetrieve, everyRole},
		{ResourceUser, ActionUpdate, everyRole},
		{ResourceUser, ActionDelete, everyRole},

		{ResourceNotification, ActionCreate, staffOnly},
		{ResourceNotification, ActionList, everyRole},

		// unmapped actions fail open to any authenticated principal
		{ResourceGrade, Action("export"), everyRole},
		{Resource("timetable"), ActionList, everyRole},
	}
	for _, tc := range tests {
		t.Run(string(tc.resource)+"/"+string(tc.action), func(t *testing.T) {
			check := func(p *user.Principal, allowed bool) {
				err := Authorize(p, tc.action, tc.resource)
				if allowed {
					assert.NoError(t, err)
					return
				}
				if p == nil {
					assert.Equal(t, core.ErrUnauthenticated, err)
				} else {
					assert.True(t, core.IsAuthorization(err), "want AuthorizationError, got %v", err)
				}
			}
			check(nil, tc.want.anon)
			check(student, tc.want.student)
			check(teacher, tc.want.teacher)
			check(admin, tc.want.admin)
		})
	}
}

func TestIsWrite(t *testing.T) {
	for _, a := range []Action{ActionCreate, ActionUpdate, ActionPartialUpdate, ActionDelete} {
		assert.True(t, IsWrite(a), a)
	}
	for _, a := range []Action{ActionList, ActionRetrieve} {
		assert.False(t, IsWrite(a), a)
	}
}
