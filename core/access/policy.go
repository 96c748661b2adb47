// Package access decides who may do what on which resource, and which rows a principal may see.
package access

import (
	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

type Action string

const (
	ActionCreate        Action = "create"
	ActionList          Action = "list"
	ActionRetrieve      Action = "retrieve"
	ActionUpdate        Action = "update"
	ActionPartialUpdate Action = "partial_update"
	ActionDelete        Action = "delete"
)

type Resource string

const (
	ResourceGrade        Resource = "grade"
	ResourceAttendance   Resource = "attendance"
	ResourceCourse       Resource = "course"
	ResourceEnrollment   Resource = "enrollment"
	ResourceUser         Resource = "user"
	ResourceNotification Resource = "notification"
)

// rule lists the roles allowed; open allows anonymous callers, and an empty rule allows any authenticated principal.
type rule struct {
	roles []user.Role
	open  bool
}

var (
	anyAuthenticated = rule{}
	anyone           = rule{open: true}
	staff            = rule{roles: []user.Role{user.RoleTeacher, user.RoleAdmin}}
	everyRole        = rule{roles: []user.Role{user.RoleStudent, user.RoleTeacher, user.RoleAdmin}}

	writes = []Action{ActionCreate, ActionUpdate, ActionPartialUpdate, ActionDelete}

	policy = map[Resource]map[Action]rule{
		ResourceGrade:        withWrites(staff, map[Action]rule{ActionList: staff, ActionRetrieve: everyRole}),
		ResourceAttendance:   withWrites(staff, map[Action]rule{ActionList: staff, ActionRetrieve: everyRole}),
		ResourceCourse:       withWrites(staff, map[Action]rule{ActionList: anyAuthenticated, ActionRetrieve: anyAuthenticated}),
		ResourceEnrollment:   withWrites(staff, map[Action]rule{ActionList: anyAuthenticated, ActionRetrieve: anyAuthenticated}),
		ResourceUser:         {ActionCreate: anyone},
		ResourceNotification: {ActionCreate: staff},
	}
)

func withWrites(r rule, reads map[Action]rule) map[Action]rule {
	for _, a := range writes {
		reads[a] = r
	}
	return reads
}

// Authorize returns nil when p may perform action on resource.
// A nil p is an anonymous caller. Actions missing from the policy default to any authenticated principal.
func Authorize(p *user.Principal, action Action, resource Resource) error {
	r, ok := policy[resource][action]
	if !ok {
		r = anyAuthenticated
	}
	if r.open {
		return nil
	}
	if p == nil {
		return core.ErrUnauthenticated
	}
	if len(r.roles) == 0 {
		return nil
	}
	for _, role := range r.roles {
		if p.Role == role {
			return nil
		}
	}
	return core.NewAuthorizationError(string(action), string(resource))
}

// IsWrite reports whether action modifies records.
func IsWrite(action Action) bool {
	for _, a := range writes {
		if a == action {
			return true
		}
	}
	return false
}
