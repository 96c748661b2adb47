package attendance

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/user"
)

var (
	ErrNotFound      = core.NewNotFoundError("attendance")
	ErrAlreadyMarked = errors.New("attendance is already marked for this student, course and date")
	errNotInstructor = "only the course instructor or an admin can mark attendance for this course"

	tracer = otel.Tracer("github.com/trezcool/academia/core/attendance")
)

type (
	Repository interface {
		CreateAttendance(ctx context.Context, a Attendance) (Attendance, error)
		// GetAttendance returns ErrNotFound when the record does not exist or is outside scope.
		GetAttendance(ctx context.Context, id int64, scope access.Scope) (Attendance, error)
		// FindAttendance returns ErrNotFound when no record exists for the student, course & date.
		FindAttendance(ctx context.Context, studentID, courseID int64, date core.Date) (Attendance, error)
		QueryAttendances(ctx context.Context, scope access.Scope, params core.ListParams) ([]Attendance, int, error)
		// ListStudentAttendancesOn returns every record of the student on date, across courses.
		ListStudentAttendancesOn(ctx context.Context, studentID int64, date core.Date) ([]Attendance, error)
		UpdateAttendance(ctx context.Context, a Attendance) (Attendance, error)
		DeleteAttendance(ctx context.Context, id int64) error
	}

	Service struct {
		repo     Repository
		users    user.Repository
		courses  course.Repository
		scopes   *access.Resolver
		bus      *core.EventBus
		validate *validator.Validate
		logger   core.Logger
	}
)

func NewService(
	repo Repository,
	users user.Repository,
	courses course.Repository,
	scopes *access.Resolver,
	bus *core.EventBus,
	validate *validator.Validate,
	logger core.Logger,
) *Service {
	return &Service{
		repo:     repo,
		users:    users,
		courses:  courses,
		scopes:   scopes,
		bus:      bus,
		validate: validate,
		logger:   logger,
	}
}

func (svc *Service) publish(ctx context.Context, action string, a Attendance, oldValue string, p *user.Principal) {
	evt := core.NewEvent(core.EntityAttendance, action, a.ID)
	evt.StudentEmail = a.StudentEmail
	evt.CourseName = a.CourseName
	evt.OldValue = oldValue
	evt.NewValue = a.Status
	evt.ActorEmail = p.Email
	svc.bus.Publish(ctx, evt)
}

func (svc *Service) checkNotMarked(ctx context.Context, studentID, courseID int64, date core.Date, excludeID int64) error {
	existing, err := svc.repo.FindAttendance(ctx, studentID, courseID, date)
	if err == nil && existing.ID != excludeID {
		return core.NewValidationError(ErrAlreadyMarked, core.FieldError{Field: "date", Error: ErrAlreadyMarked.Error()})
	}
	if err != nil && !core.IsNotFound(err) {
		return errors.Wrap(err, "finding attendance")
	}
	return nil
}

func (svc *Service) Create(ctx context.Context, p *user.Principal, na NewAttendance) (Attendance, error) {
	ctx, span := tracer.Start(ctx, "attendance.Create")
	defer span.End()

	if err := access.Authorize(p, access.ActionCreate, access.ResourceAttendance); err != nil {
		return Attendance{}, err
	}
	if err := na.Validate(svc.validate); err != nil {
		return Attendance{}, err
	}

	student, err := svc.users.GetStudent(ctx, user.StudentFilter{Email: na.Student})
	if err != nil {
		if core.IsNotFound(err) {
			return Attendance{}, core.NewFieldError("student", "no student with this email")
		}
		return Attendance{}, errors.Wrap(err, "finding student")
	}
	c, err := svc.courses.GetCourse(ctx, course.GetFilter{Name: na.Course})
	if err != nil {
		if core.IsNotFound(err) {
			return Attendance{}, core.NewFieldError("course", "no course with this name")
		}
		return Attendance{}, errors.Wrap(err, "finding course")
	}
	if p.IsTeacher() && c.InstructorID != p.ID {
		return Attendance{}, core.NewAuthorizationError(string(access.ActionCreate), string(access.ResourceAttendance), errNotInstructor)
	}
	if err = svc.checkNotMarked(ctx, student.ID, c.ID, na.Date, 0); err != nil {
		return Attendance{}, err
	}

	a, err := svc.repo.CreateAttendance(ctx, Attendance{
		StudentID: student.ID,
		CourseID:  c.ID,
		Date:      na.Date,
		Status:    na.Status,
	})
	if err != nil {
		return Attendance{}, errors.Wrap(err, "creating attendance")
	}
	span.SetAttributes(attribute.Int64("attendance.id", a.ID))
	svc.publish(ctx, core.ActionCreated, a, "", p)
	return a, nil
}

func (svc *Service) Query(ctx context.Context, p *user.Principal, params core.ListParams) (core.Page[Attendance], error) {
	if err := access.Authorize(p, access.ActionList, access.ResourceAttendance); err != nil {
		return core.Page[Attendance]{}, err
	}
	scope, err := svc.scopes.Scope(ctx, p, access.ResourceAttendance)
	if err != nil {
		return core.Page[Attendance]{}, err
	}
	if params, err = params.Clean(Fields); err != nil {
		return core.Page[Attendance]{}, err
	}
	records, count, err := svc.repo.QueryAttendances(ctx, scope, params)
	if err != nil {
		return core.Page[Attendance]{}, errors.Wrap(err, "querying attendances")
	}
	return core.NewPage(records, count, params), nil
}

func (svc *Service) Get(ctx context.Context, p *user.Principal, id int64) (Attendance, error) {
	if err := access.Authorize(p, access.ActionRetrieve, access.ResourceAttendance); err != nil {
		return Attendance{}, err
	}
	scope, err := svc.scopes.Scope(ctx, p, access.ResourceAttendance)
	if err != nil {
		return Attendance{}, err
	}
	return svc.repo.GetAttendance(ctx, id, scope)
}

func (svc *Service) getForWrite(ctx context.Context, p *user.Principal, action access.Action, id int64) (Attendance, error) {
	if err := access.Authorize(p, action, access.ResourceAttendance); err != nil {
		return Attendance{}, err
	}
	scope, err := svc.scopes.Scope(ctx, p, access.ResourceAttendance)
	if err != nil {
		return Attendance{}, err
	}
	return svc.repo.GetAttendance(ctx, id, scope)
}

func (svc *Service) Update(ctx context.Context, p *user.Principal, id int64, ua UpdateAttendance) (Attendance, error) {
	ctx, span := tracer.Start(ctx, "attendance.Update")
	defer span.End()

	a, err := svc.getForWrite(ctx, p, access.ActionUpdate, id)
	if err != nil {
		return Attendance{}, err
	}
	if err = ua.Validate(a, svc.validate); err != nil {
		return Attendance{}, err
	}
	if !ua.Date.Equal(a.Date) {
		if err = svc.checkNotMarked(ctx, a.StudentID, a.CourseID, ua.Date, a.ID); err != nil {
			return Attendance{}, err
		}
	}

	oldValue := a.Status
	a.Status = ua.Status
	a.Date = ua.Date
	a, err = svc.repo.UpdateAttendance(ctx, a)
	if err != nil {
		return Attendance{}, errors.Wrap(err, "updating attendance")
	}
	span.SetAttributes(attribute.Int64("attendance.id", a.ID))
	svc.publish(ctx, core.ActionUpdated, a, oldValue, p)
	return a, nil
}

func (svc *Service) Delete(ctx context.Context, p *user.Principal, id int64) error {
	a, err := svc.getForWrite(ctx, p, access.ActionDelete, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteAttendance(ctx, id); err != nil {
		return errors.Wrap(err, "deleting attendance")
	}
	svc.logger.Info(fmt.Sprintf("Attendance deleted: Student %s, Course %s, Date %s, by %s",
		a.StudentEmail, a.CourseName, a.Date, p.Email))
	return nil
}
