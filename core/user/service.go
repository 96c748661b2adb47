package user

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user")
	ErrStudentNotFound    = core.NewNotFoundError("student")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrUsernameExists     = errors.New("a user with this username already exists")
	ErrStudentExists      = errors.New("this user already has a student record")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

type (
	Repository interface {
		// CheckUniqueness returns ErrEmailExists or ErrUsernameExists when taken by a user other than excludeID.
		CheckUniqueness(ctx context.Context, username, email string, excludeID int64) error
		// CreateUser also stores student, in the same transaction, when not nil.
		CreateUser(ctx context.Context, usr User, student *Student) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		QueryUsers(ctx context.Context, params core.ListParams) ([]User, int, error)
		ListUsersByRole(ctx context.Context, role Role) ([]User, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		// DeleteUser cascades to the user's Student record and everything referencing either.
		DeleteUser(ctx context.Context, id int64) error
		CountInstructedCourses(ctx context.Context, userID int64) (int, error)

		CreateStudent(ctx context.Context, student Student) (Student, error)
		GetStudent(ctx context.Context, filter StudentFilter) (Student, error)
		QueryStudents(ctx context.Context, params core.ListParams) ([]Student, int, error)
		ListStudents(ctx context.Context) ([]Student, error)
	}

	Service interface {
		Register(ctx context.Context, nu NewUser) (User, error)
		Authenticate(ctx context.Context, email, pwd string) (Principal, error)
		Query(ctx context.Context, p *Principal, params core.ListParams) (core.Page[User], error)
		Get(ctx context.Context, p *Principal, id int64) (User, error)
		GetByEmail(ctx context.Context, email string) (User, error)
		Update(ctx context.Context, p *Principal, id int64, uu UpdateUser) (User, error)
		Delete(ctx context.Context, p *Principal, id int64) error
		SetPassword(ctx context.Context, email, pwd string) error

		CreateStudent(ctx context.Context, p *Principal, ns NewStudent) (Student, error)
		QueryStudents(ctx context.Context, p *Principal, params core.ListParams) (core.Page[Student], error)
		// GetStudentByUserID resolves the Student record of a role=student principal.
		GetStudentByUserID(ctx context.Context, userID int64) (Student, error)
	}

	service struct {
		repo     Repository
		cache    core.Cache
		validate *validator.Validate
		logger   core.Logger
	}
)

var _ Service = (*service)(nil)

// NewService returns the user service. cache holds the course & enrollment payloads embedding user emails; it may be nil.
func NewService(repo Repository, cache core.Cache, validate *validator.Validate, logger core.Logger) Service {
	return &service{repo: repo, cache: cache, validate: validate, logger: logger}
}

// dropCachedRecords drops cached course & enrollment payloads after a user write they embed or cascade from.
func (svc *service) dropCachedRecords(ctx context.Context) {
	core.InvalidateCache(ctx, svc.cache, svc.logger, core.CourseCachePrefix, core.EnrollmentCachePrefix)
}

func (svc *service) checkUniqueness(ctx context.Context, uname, email string, excludeID int64) error {
	if err := svc.repo.CheckUniqueness(ctx, uname, email, excludeID); err != nil {
		var field string
		switch errors.Cause(err) {
		case ErrUsernameExists:
			field = "username"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register creates a User; open to anyone. A role=student User gets its Student record in the same write.
func (svc *service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Username, nu.Email, 0); err != nil {
		return User{}, err
	}

	now := time.Now().UTC()
	usr := User{
		Name:      nu.Name,
		Username:  nu.Username,
		Email:     nu.Email,
		Role:      nu.Role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	var student *Student
	if usr.IsStudent() {
		student = &Student{DateOfBirth: nu.DateOfBirth}
	}
	usr, err := svc.repo.CreateUser(ctx, usr, student)
	if err != nil {
		return User{}, errors.Wrap(err, "creating user")
	}
	svc.logger.Info(fmt.Sprintf("User registered: %s (%s)", usr.Email, usr.Role))
	return usr, nil
}

func (svc *service) Authenticate(ctx context.Context, email, pwd string) (Principal, error) {
	usr, err := svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
	if err != nil {
		if core.IsNotFound(err) {
			return Principal{}, core.NewValidationError(ErrInvalidCredentials)
		}
		return Principal{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return Principal{}, core.NewValidationError(ErrInvalidCredentials)
	}
	return usr.Principal(), nil
}

func (svc *service) Query(ctx context.Context, p *Principal, params core.ListParams) (core.Page[User], error) {
	if p == nil {
		return core.Page[User]{}, core.ErrUnauthenticated
	}
	params, err := params.Clean(Fields)
	if err != nil {
		return core.Page[User]{}, err
	}
	users, count, err := svc.repo.QueryUsers(ctx, params)
	if err != nil {
		return core.Page[User]{}, errors.Wrap(err, "querying users")
	}
	return core.NewPage(users, count, params), nil
}

// Get returns a User; non-admins may only see themselves.
func (svc *service) Get(ctx context.Context, p *Principal, id int64) (User, error) {
	if p == nil {
		return User{}, core.ErrUnauthenticated
	}
	if !p.IsAdmin() && p.ID != id {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUser(ctx, GetFilter{Email: core.CleanString(email, true /* lower */)})
}

// Update modifies a User; non-admins may only update themselves and never their role.
func (svc *service) Update(ctx context.Context, p *Principal, id int64, uu UpdateUser) (User, error) {
	usr, err := svc.Get(ctx, p, id)
	if err != nil {
		return User{}, err
	}
	if err = uu.Validate(usr, svc.validate); err != nil {
		return User{}, err
	}
	if err = svc.checkUniqueness(ctx, uu.Username, uu.Email, usr.ID); err != nil {
		return User{}, err
	}

	if uu.Role != usr.Role {
		if !p.IsAdmin() {
			return User{}, core.NewAuthorizationError("update", "user", "only admins can change roles")
		}
		if usr.IsTeacher() {
			n, err := svc.repo.CountInstructedCourses(ctx, usr.ID)
			if err != nil {
				return User{}, errors.Wrap(err, "counting instructed courses")
			}
			if n > 0 {
				return User{}, core.NewFieldError("role", "this teacher still instructs courses; reassign them first")
			}
		}
	}
	// a user turning student gets its record once the role is stored
	var needsStudent bool
	if uu.Role == RoleStudent && usr.Role != RoleStudent {
		if _, err = svc.repo.GetStudent(ctx, StudentFilter{UserID: usr.ID}); core.IsNotFound(err) {
			needsStudent = true
		} else if err != nil {
			return User{}, errors.Wrap(err, "finding student record")
		}
	}

	emailChanged := uu.Email != usr.Email
	usr.Name = uu.Name
	usr.Username = uu.Username
	usr.Email = uu.Email
	usr.Role = uu.Role
	usr.UpdatedAt = time.Now().UTC()
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	if usr, err = svc.repo.UpdateUser(ctx, usr); err != nil {
		return User{}, err
	}
	if needsStudent {
		if _, err = svc.repo.CreateStudent(ctx, Student{UserID: usr.ID}); err != nil {
			return User{}, errors.Wrap(err, "creating student record")
		}
	}
	if emailChanged {
		svc.dropCachedRecords(ctx)
	}
	return usr, nil
}

// Delete removes a User and, by cascade, its Student record. Admins only; never oneself.
func (svc *service) Delete(ctx context.Context, p *Principal, id int64) error {
	if p == nil {
		return core.ErrUnauthenticated
	}
	if !p.IsAdmin() {
		return core.NewAuthorizationError("delete", "user")
	}
	if p.ID == id {
		return core.NewAuthorizationError("delete", "user", "you cannot delete yourself")
	}
	usr, err := svc.repo.GetUser(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteUser(ctx, id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	svc.dropCachedRecords(ctx)
	svc.logger.Info(fmt.Sprintf("User deleted: %s by %s", usr.Email, p.Email))
	return nil
}

// SetPassword resets a password without checking the policy; used by the admin CLI.
func (svc *service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// CreateStudent attaches a Student record to a role=student User that has none. Admins only.
func (svc *service) CreateStudent(ctx context.Context, p *Principal, ns NewStudent) (Student, error) {
	if p == nil {
		return Student{}, core.ErrUnauthenticated
	}
	if !p.IsAdmin() {
		return Student{}, core.NewAuthorizationError("create", "student")
	}
	if err := ns.Validate(svc.validate); err != nil {
		return Student{}, err
	}

	usr, err := svc.GetByEmail(ctx, ns.Email)
	if err != nil {
		if core.IsNotFound(err) {
			return Student{}, core.NewFieldError("email", "no user with this email")
		}
		return Student{}, err
	}
	if !usr.IsStudent() {
		return Student{}, core.NewFieldError("email", "user is not a student")
	}
	if _, err = svc.repo.GetStudent(ctx, StudentFilter{UserID: usr.ID}); err == nil {
		return Student{}, core.NewValidationError(ErrStudentExists, core.FieldError{Field: "email", Error: ErrStudentExists.Error()})
	} else if !core.IsNotFound(err) {
		return Student{}, errors.Wrap(err, "finding student record")
	}

	return svc.repo.CreateStudent(ctx, Student{UserID: usr.ID, DateOfBirth: ns.DateOfBirth})
}

// QueryStudents lists Student records; teachers & admins only.
func (svc *service) QueryStudents(ctx context.Context, p *Principal, params core.ListParams) (core.Page[Student], error) {
	if p == nil {
		return core.Page[Student]{}, core.ErrUnauthenticated
	}
	if p.IsStudent() {
		return core.Page[Student]{}, core.NewAuthorizationError("list", "student")
	}
	params, err := params.Clean(StudentFields)
	if err != nil {
		return core.Page[Student]{}, err
	}
	students, count, err := svc.repo.QueryStudents(ctx, params)
	if err != nil {
		return core.Page[Student]{}, errors.Wrap(err, "querying students")
	}
	return core.NewPage(students, count, params), nil
}

func (svc *service) GetStudentByUserID(ctx context.Context, userID int64) (Student, error) {
	return svc.repo.GetStudent(ctx, StudentFilter{UserID: userID})
}
