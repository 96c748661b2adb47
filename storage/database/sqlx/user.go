package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/user"
)

const (
	userColumns = "u.id, u.name, u.username, u.email, u.role, u.password_hash, u.created_at, u.updated_at"
	userFrom    = "users u"

	studentColumns = "s.id, s.user_id, u.email, u.name, s.date_of_birth"
	studentFrom    = "students s JOIN users u ON u.id = s.user_id"
)

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{db: db}
}

func (repo userRepository) CheckUniqueness(ctx context.Context, username, email string, excludeID int64) error {
	var taken []struct {
		Username string `db:"username"`
		Email    string `db:"email"`
	}
	q := repo.db.Rebind("SELECT username, email FROM users WHERE (username = ? OR email = ?) AND id <> ?")
	if err := repo.db.SelectContext(ctx, &taken, q, username, email, excludeID); err != nil {
		return dbError(err, "checking user uniqueness")
	}
	for _, u := range taken {
		if u.Email == email {
			return user.ErrEmailExists
		}
	}
	if len(taken) > 0 {
		return user.ErrUsernameExists
	}
	return nil
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, student *user.Student) (user.User, error) {
	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return user.User{}, dbError(err, "starting transaction")
	}
	defer func() { _ = tx.Rollback() }()

	usr.ID, err = insert(ctx, tx,
		"INSERT INTO users (name, username, email, role, password_hash, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		usr.Name, usr.Username, usr.Email, usr.Role, usr.PasswordHash, usr.CreatedAt.UTC(), usr.UpdatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, dbError(err, "inserting user")
	}

	if student != nil {
		if _, err = insert(ctx, tx, "INSERT INTO students (user_id, date_of_birth) VALUES (?, ?)", usr.ID, student.DateOfBirth); err != nil {
			return user.User{}, dbError(err, "inserting student")
		}
	}

	if err = tx.Commit(); err != nil {
		return user.User{}, dbError(err, "committing user")
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := newSelect(userColumns, userFrom)
	switch {
	case filter.ID != 0:
		q.Where("u.id = ?", filter.ID)
	case filter.Email != "":
		q.Where("u.email = ?", filter.Email)
	case filter.Username != "":
		q.Where("u.username = ?", filter.Username)
	default:
		return user.User{}, user.ErrNotFound
	}
	return getOne[user.User](ctx, repo.db, q, user.ErrNotFound, "user")
}

func (repo userRepository) QueryUsers(ctx context.Context, params core.ListParams) ([]user.User, int, error) {
	q := newSelect(userColumns, userFrom).List(params, user.Fields)
	return queryPage[user.User](ctx, repo.db, q, "users")
}

func (repo userRepository) ListUsersByRole(ctx context.Context, role user.Role) ([]user.User, error) {
	q := newSelect(userColumns, userFrom).Where("u.role = ?", role).OrderBy("u.id ASC")
	return selectAll[user.User](ctx, repo.db, q, "users")
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := execAffecting(ctx, repo.db, user.ErrNotFound,
		"UPDATE users SET name = ?, username = ?, email = ?, role = ?, password_hash = ?, updated_at = ? WHERE id = ?",
		usr.Name, usr.Username, usr.Email, usr.Role, usr.PasswordHash, usr.UpdatedAt.UTC(), usr.ID)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, err
		}
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, dbError(err, "updating user")
	}
	return usr, nil
}

func (repo userRepository) DeleteUser(ctx context.Context, id int64) error {
	err := execAffecting(ctx, repo.db, user.ErrNotFound, "DELETE FROM users WHERE id = ?", id)
	if err != nil && !errors.Is(err, user.ErrNotFound) {
		return dbError(err, "deleting user")
	}
	return err
}

func (repo userRepository) CountInstructedCourses(ctx context.Context, userID int64) (int, error) {
	var n int
	if err := repo.db.GetContext(ctx, &n, repo.db.Rebind("SELECT COUNT(*) FROM courses WHERE instructor_id = ?"), userID); err != nil {
		return 0, dbError(err, "counting instructed courses")
	}
	return n, nil
}

func (repo userRepository) CreateStudent(ctx context.Context, student user.Student) (user.Student, error) {
	id, err := insert(ctx, repo.db, "INSERT INTO students (user_id, date_of_birth) VALUES (?, ?)", student.UserID, student.DateOfBirth)
	if err != nil {
		if isUniqueViolation(err) {
			return user.Student{}, user.ErrStudentExists
		}
		return user.Student{}, dbError(err, "inserting student")
	}
	return repo.GetStudent(ctx, user.StudentFilter{ID: id})
}

func (repo userRepository) GetStudent(ctx context.Context, filter user.StudentFilter) (user.Student, error) {
	q := newSelect(studentColumns, studentFrom)
	switch {
	case filter.ID != 0:
		q.Where("s.id = ?", filter.ID)
	case filter.UserID != 0:
		q.Where("s.user_id = ?", filter.UserID)
	case filter.Email != "":
		q.Where("u.email = ?", filter.Email)
	default:
		return user.Student{}, user.ErrStudentNotFound
	}
	return getOne[user.Student](ctx, repo.db, q, user.ErrStudentNotFound, "student")
}

func (repo userRepository) QueryStudents(ctx context.Context, params core.ListParams) ([]user.Student, int, error) {
	q := newSelect(studentColumns, studentFrom).List(params, user.StudentFields)
	return queryPage[user.Student](ctx, repo.db, q, "students")
}

func (repo userRepository) ListStudents(ctx context.Context) ([]user.Student, error) {
	q := newSelect(studentColumns, studentFrom).OrderBy("s.id ASC")
	return selectAll[user.Student](ctx, repo.db, q, "students")
}
