package grade

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
	ErrNotFound      = core.NewNotFoundError("grade")
	errNotInstructor = "only the course instructor or an admin can grade this course"

	tracer = otel.Tracer("github.com/trezcool/academia/core/grade")
)

type (
	Repository interface {
		CreateGrade(ctx context.Context, g Grade) (Grade, error)
		// GetGrade returns ErrNotFound when the grade does not exist or is outside scope.
		GetGrade(ctx context.Context, id int64, scope access.Scope) (Grade, error)
		QueryGrades(ctx context.Context, scope access.Scope, params core.ListParams) ([]Grade, int, error)
		ListStudentGrades(ctx context.Context, studentID int64) ([]Grade, error)
		UpdateGrade(ctx context.Context, g Grade) (Grade, error)
		DeleteGrade(ctx context.Context, id int64) error
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

func checkInstructor(p *user.Principal, action access.Action, c course.Course) error {
	if p.IsTeacher() && c.InstructorID != p.ID {
		return core.NewAuthorizationError(string(action), string(access.ResourceGrade), errNotInstructor)
	}
	return nil
}

func (svc *Service) publish(ctx context.Context, action string, g Grade, oldValue string, p *user.Principal) {
	evt := core.NewEvent(core.EntityGrade, action, g.ID)
	evt.StudentEmail = g.StudentEmail
	evt.CourseName = g.CourseName
	evt.OldValue = oldValue
	evt.NewValue = g.Value
	evt.ActorEmail = p.Email
	svc.bus.Publish(ctx, evt)
}

// resolveTeacher picks who the grade is attributed to: always the course instructor, whom teacher scopes match.
func (svc *Service) resolveTeacher(ctx context.Context, p *user.Principal, email string, c course.Course) (int64, error) {
	if p.IsTeacher() {
		return p.ID, nil
	}
	if email == "" {
		return c.InstructorID, nil
	}
	teacher, err := svc.users.GetUser(ctx, user.GetFilter{Email: email})
	if err != nil {
		if core.IsNotFound(err) {
			return 0, core.NewFieldError("teacher", "no user with this email")
		}
		return 0, errors.Wrap(err, "finding teacher")
	}
	if !teacher.IsTeacher() {
		return 0, core.NewFieldError("teacher", "user is not a teacher")
	}
	if teacher.ID != c.InstructorID {
		return 0, core.NewFieldError("teacher", "teacher must be the course instructor")
	}
	return teacher.ID, nil
}

func (svc *Service) Create(ctx context.Context, p *user.Principal, ng NewGrade) (Grade, error) {
	ctx, span := tracer.Start(ctx, "grade.Create")
	defer span.End()

	if err := access.Authorize(p, access.ActionCreate, access.ResourceGrade); err != nil {
		return Grade{}, err
	}
	if err := ng.Validate(svc.validate); err != nil {
		return Grade{}, err
	}

	student, err := svc.users.GetStudent(ctx, user.StudentFilter{Email: ng.Student})
	if err != nil {
		if core.IsNotFound(err) {
			return Grade{}, core.NewFieldError("student", "no student with this email")
		}
		return Grade{}, errors.Wrap(err, "finding student")
	}
	c, err := svc.courses.GetCourse(ctx, course.GetFilter{Name: ng.Course})
	if err != nil {
		if core.IsNotFound(err) {
			return Grade{}, core.NewFieldError("course", "no course with this name")
		}
		return Grade{}, errors.Wrap(err, "finding course")
	}
	if err = checkInstructor(p, access.ActionCreate, c); err != nil {
		return Grade{}, err
	}
	teacherID, err := svc.resolveTeacher(ctx, p, ng.Teacher, c)
	if err != nil {
		return Grade{}, err
	}

	g, err := svc.repo.CreateGrade(ctx, Grade{
		StudentID: student.ID,
		CourseID:  c.ID,
		TeacherID: teacherID,
		Value:     ng.Value,
		Date:      ng.Date,
	})
	if err != nil {
		return Grade{}, errors.Wrap(err, "creating grade")
	}
	span.SetAttributes(attribute.Int64("grade.id", g.ID))
	svc.publish(ctx, core.ActionCreated, g, "", p)
	return g, nil
}

func (svc *Service) Query(ctx context.Context, p *user.Principal, params core.ListParams) (core.Page[Grade], error) {
	if err := access.Authorize(p, access.ActionList, access.ResourceGrade); err != nil {
		return core.Page[Grade]{}, err
	}
	scope, err := svc.scopes.Scope(ctx, p, access.ResourceGrade)
	if err != nil {
		return core.Page[Grade]{}, err
	}
	if params, err = params.Clean(Fields); err != nil {
		return core.Page[Grade]{}, err
	}
	grades, count, err := svc.repo.QueryGrades(ctx, scope, params)
	if err != nil {
		return core.Page[Grade]{}, errors.Wrap(err, "querying grades")
	}
	return core.NewPage(grades, count, params), nil
}

func (svc *Service) Get(ctx context.Context, p *user.Principal, id int64) (Grade, error) {
	if err := access.Authorize(p, access.ActionRetrieve, access.ResourceGrade); err != nil {
		return Grade{}, err
	}
	scope, err := svc.scopes.Scope(ctx, p, access.ResourceGrade)
	if err != nil {
		return Grade{}, err
	}
	return svc.repo.GetGrade(ctx, id, scope)
}

// getForWrite loads a grade within the principal's scope and checks they may write it.
func (svc *Service) getForWrite(ctx context.Context, p *user.Principal, action access.Action, id int64) (Grade, error) {
	if err := access.Authorize(p, action, access.ResourceGrade); err != nil {
		return Grade{}, err
	}
	scope, err := svc.scopes.Scope(ctx, p, access.ResourceGrade)
	if err != nil {
		return Grade{}, err
	}
	g, err := svc.repo.GetGrade(ctx, id, scope)
	if err != nil {
		return Grade{}, err
	}
	if p.IsTeacher() && g.CourseInstructorID != p.ID {
		return Grade{}, core.NewAuthorizationError(string(action), string(access.ResourceGrade), errNotInstructor)
	}
	return g, nil
}

func (svc *Service) Update(ctx context.Context, p *user.Principal, id int64, ug UpdateGrade) (Grade, error) {
	ctx, span := tracer.Start(ctx, "grade.Update")
	defer span.End()

	g, err := svc.getForWrite(ctx, p, access.ActionUpdate, id)
	if err != nil {
		return Grade{}, err
	}
	if err = ug.Validate(g, svc.validate); err != nil {
		return Grade{}, err
	}

	oldValue := g.Value
	g.Value = ug.Value
	g.Date = ug.Date
	g, err = svc.repo.UpdateGrade(ctx, g)
	if err != nil {
		return Grade{}, errors.Wrap(err, "updating grade")
	}
	span.SetAttributes(attribute.Int64("grade.id", g.ID))
	svc.publish(ctx, core.ActionUpdated, g, oldValue, p)
	return g, nil
}

func (svc *Service) Delete(ctx context.Context, p *user.Principal, id int64) error {
	g, err := svc.getForWrite(ctx, p, access.ActionDelete, id)
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteGrade(ctx, id); err != nil {
		return errors.Wrap(err, "deleting grade")
	}
	svc.logger.Info(fmt.Sprintf("Grade deleted: Student %s, Course %s, by %s", g.StudentEmail, g.CourseName, p.Email))
	return nil
}
