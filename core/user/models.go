package user

import (
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/academia/core"
)

type Role string

// Roles
const (
	RoleAdmin   Role = "admin"
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

var (
	AllRoles = []Role{RoleAdmin, RoleTeacher, RoleStudent}

	Roles = []RoleInfo{
		{Name: "Student", Value: RoleStudent},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

type User struct {
	ID           int64     `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	Username     string    `json:"username" db:"username"`
	Email        string    `json:"email" db:"email"`
	Role         Role      `json:"role" db:"role"`
	PasswordHash []byte    `json:"-" db:"password_hash"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u User) IsStudent() bool { return u.Role == RoleStudent }

// Principal returns the identity of u as seen by access checks.
func (u User) Principal() Principal {
	return Principal{ID: u.ID, Email: u.Email, Username: u.Username, Role: u.Role}
}

// Principal is an authenticated identity: who is calling, and with which role.
type Principal struct {
	ID       int64
	Email    string
	Username string
	Role     Role
}

func (p Principal) IsAdmin() bool   { return p.Role == RoleAdmin }
func (p Principal) IsTeacher() bool { return p.Role == RoleTeacher }
func (p Principal) IsStudent() bool { return p.Role == RoleStudent }

// Student is the academic profile of a role=student User.
type Student struct {
	ID          int64      `json:"id" db:"id"`
	UserID      int64      `json:"user_id" db:"user_id"`
	Email       string     `json:"email" db:"email"`
	Name        string     `json:"name" db:"name"`
	DateOfBirth *core.Date `json:"date_of_birth" db:"date_of_birth"`
}

// NewUser contains information needed to register a new User.
type NewUser struct {
	Name            string     `json:"name"`
	Username        string     `json:"username" validate:"required,min=3,max=150,alphanum_"`
	Email           string     `json:"email" validate:"required,email"`
	Role            Role       `json:"role" validate:"omitempty,role"`
	Password        string     `json:"password" validate:"required"`
	PasswordConfirm string     `json:"password_confirm" validate:"required,eqfield=Password"`
	DateOfBirth     *core.Date `json:"date_of_birth"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = Role(core.CleanString(string(nu.Role), true /* lower */))
	if nu.Role == "" {
		nu.Role = RoleStudent
	}
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty fields keep their current value.
type UpdateUser struct {
	Name            string `json:"name"`
	Username        string `json:"username" validate:"omitempty,min=3,max=150,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Role            Role   `json:"role" validate:"omitempty,role"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateUser) Validate(origUsr User, validate *validator.Validate) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if uname := core.CleanString(uu.Username, true /* lower */); uname != "" {
		uu.Username = uname
	} else {
		uu.Username = origUsr.Username
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if role := Role(core.CleanString(string(uu.Role), true /* lower */)); role != "" {
		uu.Role = role
	} else {
		uu.Role = origUsr.Role
	}

	return validate.Struct(uu)
}

// NewStudent creates the Student record of an existing role=student User.
type NewStudent struct {
	Email       string     `json:"email" validate:"required,email"`
	DateOfBirth *core.Date `json:"date_of_birth"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	return validate.Struct(ns)
}

type GetFilter struct {
	ID       int64
	Email    string
	Username string
}

type StudentFilter struct {
	ID     int64
	UserID int64
	Email  string
}

// Fields declares the list modifiers accepted on users.
var Fields = core.FieldSet{
	Filters:  map[string]string{"role": "u.role"},
	Search:   []string{"u.email", "u.username", "u.name"},
	Ordering: map[string]string{"email": "u.email", "username": "u.username", "name": "u.name"},
	Default:  []core.DBOrdering{{Field: "u.id", Ascending: true}},
}

// StudentFields declares the list modifiers accepted on students.
var StudentFields = core.FieldSet{
	Search:   []string{"u.email", "u.name"},
	Ordering: map[string]string{"email": "u.email", "name": "u.name"},
	Default:  []core.DBOrdering{{Field: "s.id", Ascending: true}},
}
