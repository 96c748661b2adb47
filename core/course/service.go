package course

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/user"
)

const (
	coursePrefix     = core.CourseCachePrefix
	enrollmentPrefix = core.EnrollmentCachePrefix
)

var (
	ErrNotFound           = core.NewNotFoundError("course")
	ErrEnrollmentNotFound = core.NewNotFoundError("enrollment")
	ErrNameExists         = errors.New("a course with this name already exists")
	ErrAlreadyEnrolled    = errors.New("this student is already enrolled in this course")

	tracer = otel.Tracer("github.com/trezcool/academia/core/course")
)

type (
	Repository interface {
		CreateCourse(ctx context.Context, c Course) (Course, error)
		GetCourse(ctx context.Context, filter GetFilter) (Course, error)
		QueryCourses(ctx context.Context, params core.ListParams) ([]Course, int, error)
		UpdateCourse(ctx context.Context, c Course) (Course, error)
		DeleteCourse(ctx context.Context, id int64) error

		CreateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		GetEnrollment(ctx context.Context, id int64) (Enrollment, error)
		// FindEnrollment returns ErrEnrollmentNotFound when the student is not enrolled in the course.
		FindEnrollment(ctx context.Context, studentID, courseID int64) (Enrollment, error)
		QueryEnrollments(ctx context.Context, params core.ListParams) ([]Enrollment, int, error)
		UpdateEnrollment(ctx context.Context, e Enrollment) (Enrollment, error)
		DeleteEnrollment(ctx context.Context, id int64) error
	}

	CacheTTLs struct {
		CourseList       time.Duration
		CourseDetail     time.Duration
		EnrollmentList   time.Duration
		EnrollmentDetail time.Duration
	}

	Service struct {
		repo     Repository
		users    user.Repository
		cache    core.Cache
		ttls     CacheTTLs
		validate *validator.Validate
		logger   core.Logger
	}
)

func TTLsFromConfig(conf core.CacheConfig) CacheTTLs {
	return CacheTTLs{
		CourseList:       conf.CourseListTTL,
		CourseDetail:     conf.CourseDetailTTL,
		EnrollmentList:   conf.EnrollmentListTTL,
		EnrollmentDetail: conf.EnrollmentDetailTTL,
	}
}

// NewService returns the course & enrollment service. cache may be nil.
func NewService(
	repo Repository,
	users user.Repository,
	cache core.Cache,
	ttls CacheTTLs,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		cache:    cache,
		ttls:     ttls,
		validate: validate,
		logger:   logger,
	}
}

func (svc *Service) invalidate(ctx context.Context, prefixes ...string) {
	core.InvalidateCache(ctx, svc.cache, svc.logger, prefixes...)
}

// resolveInstructor returns the teacher with this email.
func (svc *Service) resolveInstructor(ctx context.Context, email string) (user.User, error) {
	instructor, err := svc.users.GetUser(ctx, user.GetFilter{Email: email})
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, core.NewFieldError("instructor", "no user with this email")
		}
		return user.User{}, errors.Wrap(err, "finding instructor")
	}
	if !instructor.IsTeacher() {
		return user.User{}, core.NewFieldError("instructor", "instructor must be a teacher")
	}
	return instructor, nil
}

func (svc *Service) checkNameUniqueness(ctx context.Context, name string, excludeID int64) error {
	existing, err := svc.repo.GetCourse(ctx, GetFilter{Name: name})
	if err == nil && existing.ID != excludeID {
		return core.NewValidationError(ErrNameExists, core.FieldError{Field: "name", Error: ErrNameExists.Error()})
	}
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding course by name")
	}
	return nil
}

// Courses

func (svc *Service) Create(ctx context.Context, p *user.Principal, nc NewCourse) (Course, error) {
	ctx, span := tracer.Start(ctx, "course.Create")
	defer span.End()

	if err := access.Authorize(p, access.ActionCreate, access.ResourceCourse); err != nil {
		return Course{}, err
	}
	if err := nc.Validate(svc.validate); err != nil {
		return Course{}, err
	}
	instructor, err := svc.resolveInstructor(ctx, nc.Instructor)
	if err != nil {
		return Course{}, err
	}
	if err = svc.checkNameUniqueness(ctx, nc.Name, 0); err != nil {
		return Course{}, err
	}

	c, err := svc.repo.CreateCourse(ctx, Course{
		Name:         nc.Name,
		Description:  null.NewString(nc.Description, nc.Description != ""),
		InstructorID: instructor.ID,
	})
	if err != nil {
		return Course{}, errors.Wrap(err, "creating course")
	}
	span.SetAttributes(attribute.Int64("course.id", c.ID))
	svc.invalidate(ctx, coursePrefix, enrollmentPrefix)
	svc.logger.Info(fmt.Sprintf("Course created: %s by %s", c.Name, p.Email))
	return c, nil
}

func (svc *Service) Query(ctx context.Context, p *user.Principal, params core.ListParams) (core.Page[Course], error) {
	if err := access.Authorize(p, access.ActionList, access.ResourceCourse); err != nil {
		return core.Page[Course]{}, err
	}
	params, err := params.Clean(Fields)
	if err != nil {
		return core.Page[Course]{}, err
	}
	key := coursePrefix + "list:" + params.CacheKey()
	return core.CachedJSON(ctx, svc.cache, svc.logger, key, svc.ttls.CourseList, func() (core.Page[Course], error) {
		courses, count, err := svc.repo.QueryCourses(ctx, params)
		if err != nil {
			return core.Page[Course]{}, errors.Wrap(err, "querying courses")
		}
		return core.NewPage(courses, count, params), nil
	})
}

func (svc *Service) Get(ctx context.Context, p *user.Principal, id int64) (Course, error) {
	if err := access.Authorize(p, access.ActionRetrieve, access.ResourceCourse); err != nil {
		return Course{}, err
	}
	key := coursePrefix + "detail:" + strconv.FormatInt(id, 10)
	return core.CachedJSON(ctx, svc.cache, svc.logger, key, svc.ttls.CourseDetail, func() (Course, error) {
		return svc.repo.GetCourse(ctx, GetFilter{ID: id})
	})
}

// GetByName is the uncached natural key lookup used by other services.
func (svc *Service) GetByName(ctx context.Context, name string) (Course, error) {
	return svc.repo.GetCourse(ctx, GetFilter{Name: core.CleanString(name)})
}

func (svc *Service) Update(ctx context.Context, p *user.Principal, id int64, uc UpdateCourse) (Course, error) {
	ctx, span := tracer.Start(ctx, "course.Update")
	defer span.End()

	if err := access.Authorize(p, access.ActionUpdate, access.ResourceCourse); err != nil {
		return Course{}, err
	}
	c, err := svc.repo.GetCourse(ctx, GetFilter{ID: id})
	if err != nil {
		return Course{}, err
	}
	if err = uc.Validate(c, svc.validate); err != nil {
		return Course{}, err
	}
	if uc.Instructor != c.InstructorEmail {
		instructor, err := svc.resolveInstructor(ctx, uc.Instructor)
		if err != nil {
			return Course{}, err
		}
		c.InstructorID = instructor.ID
	}
	if uc.Name != c.Name {
		if err = svc.checkNameUniqueness(ctx, uc.Name, c.ID); err != nil {
			return Course{}, err
		}
		c.Name = uc.Name
	}
	if uc.Description != nil {
		c.Description = null.NewString(*uc.Description, *uc.Description != "")
	}

	c, err = svc.repo.UpdateCourse(ctx, c)
	if err != nil {
		return Course{}, errors.Wrap(err, "updating course")
	}
	svc.invalidate(ctx, coursePrefix, enrollmentPrefix)
	svc.logger.Info(fmt.Sprintf("Course updated: %s by %s", c.Name, p.Email))
	return c, nil
}

func (svc *Service) Delete(ctx context.Context, p *user.Principal, id int64) error {
	if err := access.Authorize(p, access.ActionDelete, access.ResourceCourse); err != nil {
		return err
	}
	c, err := svc.repo.GetCourse(ctx, GetFilter{ID: id})
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteCourse(ctx, id); err != nil {
		return errors.Wrap(err, "deleting course")
	}
	svc.invalidate(ctx, coursePrefix, enrollmentPrefix)
	svc.logger.Info(fmt.Sprintf("Course deleted: %s by %s", c.Name, p.Email))
	return nil
}

// Enrollments

// resolveEnrollment looks up the Student by email and the Course by name.
func (svc *Service) resolveEnrollment(ctx context.Context, studentEmail, courseName string) (user.Student, Course, error) {
	student, err := svc.users.GetStudent(ctx, user.StudentFilter{Email: studentEmail})
	if err != nil {
		if core.IsNotFound(err) {
			return user.Student{}, Course{}, core.NewFieldError("student", "no student with this email")
		}
		return user.Student{}, Course{}, errors.Wrap(err, "finding student")
	}
	c, err := svc.repo.GetCourse(ctx, GetFilter{Name: courseName})
	if err != nil {
		if core.IsNotFound(err) {
			return user.Student{}, Course{}, core.NewFieldError("course", "no course with this name")
		}
		return user.Student{}, Course{}, errors.Wrap(err, "finding course")
	}
	return student, c, nil
}

func (svc *Service) checkNotEnrolled(ctx context.Context, studentID, courseID, excludeID int64) error {
	existing, err := svc.repo.FindEnrollment(ctx, studentID, courseID)
	if err == nil && existing.ID != excludeID {
		return core.NewValidationError(ErrAlreadyEnrolled, core.FieldError{Field: "course", Error: ErrAlreadyEnrolled.Error()})
	}
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding enrollment")
	}
	return nil
}

func (svc *Service) Enroll(ctx context.Context, p *user.Principal, ne NewEnrollment) (Enrollment, error) {
	ctx, span := tracer.Start(ctx, "course.Enroll")
	defer span.End()

	if err := access.Authorize(p, access.ActionCreate, access.ResourceEnrollment); err != nil {
		return Enrollment{}, err
	}
	if err := ne.Validate(svc.validate); err != nil {
		return Enrollment{}, err
	}
	student, c, err := svc.resolveEnrollment(ctx, ne.Student, ne.Course)
	if err != nil {
		return Enrollment{}, err
	}
	if err = svc.checkNotEnrolled(ctx, student.ID, c.ID, 0); err != nil {
		return Enrollment{}, err
	}

	e, err := svc.repo.CreateEnrollment(ctx, Enrollment{StudentID: student.ID, CourseID: c.ID})
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "creating enrollment")
	}
	svc.invalidate(ctx, enrollmentPrefix)
	svc.logger.Info(fmt.Sprintf("Student %s enrolled in %s by %s", e.StudentEmail, e.CourseName, p.Email))
	return e, nil
}

func (svc *Service) QueryEnrollments(ctx context.Context, p *user.Principal, params core.ListParams) (core.Page[Enrollment], error) {
	if err := access.Authorize(p, access.ActionList, access.ResourceEnrollment); err != nil {
		return core.Page[Enrollment]{}, err
	}
	params, err := params.Clean(EnrollmentFields)
	if err != nil {
		return core.Page[Enrollment]{}, err
	}
	key := enrollmentPrefix + "list:" + params.CacheKey()
	return core.CachedJSON(ctx, svc.cache, svc.logger, key, svc.ttls.EnrollmentList, func() (core.Page[Enrollment], error) {
		enrollments, count, err := svc.repo.QueryEnrollments(ctx, params)
		if err != nil {
			return core.Page[Enrollment]{}, errors.Wrap(err, "querying enrollments")
		}
		return core.NewPage(enrollments, count, params), nil
	})
}

func (svc *Service) GetEnrollment(ctx context.Context, p *user.Principal, id int64) (Enrollment, error) {
	if err := access.Authorize(p, access.ActionRetrieve, access.ResourceEnrollment); err != nil {
		return Enrollment{}, err
	}
	key := enrollmentPrefix + "detail:" + strconv.FormatInt(id, 10)
	return core.CachedJSON(ctx, svc.cache, svc.logger, key, svc.ttls.EnrollmentDetail, func() (Enrollment, error) {
		return svc.repo.GetEnrollment(ctx, id)
	})
}

func (svc *Service) UpdateEnrollment(ctx context.Context, p *user.Principal, id int64, ue UpdateEnrollment) (Enrollment, error) {
	if err := access.Authorize(p, access.ActionUpdate, access.ResourceEnrollment); err != nil {
		return Enrollment{}, err
	}
	e, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return Enrollment{}, err
	}
	if err = ue.Validate(e, svc.validate); err != nil {
		return Enrollment{}, err
	}
	student, c, err := svc.resolveEnrollment(ctx, ue.Student, ue.Course)
	if err != nil {
		return Enrollment{}, err
	}
	if err = svc.checkNotEnrolled(ctx, student.ID, c.ID, e.ID); err != nil {
		return Enrollment{}, err
	}

	e.StudentID = student.ID
	e.CourseID = c.ID
	e, err = svc.repo.UpdateEnrollment(ctx, e)
	if err != nil {
		return Enrollment{}, errors.Wrap(err, "updating enrollment")
	}
	svc.invalidate(ctx, enrollmentPrefix)
	svc.logger.Info(fmt.Sprintf("Enrollment updated: %s in %s by %s", e.StudentEmail, e.CourseName, p.Email))
	return e, nil
}

func (svc *Service) Unenroll(ctx context.Context, p *user.Principal, id int64) error {
	if err := access.Authorize(p, access.ActionDelete, access.ResourceEnrollment); err != nil {
		return err
	}
	e, err := svc.repo.GetEnrollment(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteEnrollment(ctx, id); err != nil {
		return errors.Wrap(err, "deleting enrollment")
	}
	svc.invalidate(ctx, enrollmentPrefix)
	svc.logger.Info(fmt.Sprintf("Student %s unsubscribed from %s by %s", e.StudentEmail, e.CourseName, p.Email))
	return nil
}
