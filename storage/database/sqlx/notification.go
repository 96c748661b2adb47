package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/access"
	"github.com/trezcool/academia/core/notification"
)

const (
	notificationColumns = "n.id, n.student_id, su.email AS student_email, n.message, n.created_at"
	notificationFrom    = "notifications n" +
		" JOIN students s ON s.id = n.student_id" +
		" JOIN users su ON su.id = s.user_id"
)

var notificationScope = scopeColumns{student: "n.student_id"}

type notificationRepository struct {
	db *sqlx.DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	id, err := insert(ctx, repo.db,
		"INSERT INTO notifications (student_id, message, created_at) VALUES (?, ?, ?)",
		n.StudentID, n.Message, n.CreatedAt.UTC())
	if err != nil {
		return notification.Notification{}, dbError(err, "inserting notification")
	}
	q := newSelect(notificationColumns, notificationFrom).Where("n.id = ?", id)
	return getOne[notification.Notification](ctx, repo.db, q, core.NewNotFoundError("notification"), "notification")
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, scope access.Scope, params core.ListParams) ([]notification.Notification, int, error) {
	q := newSelect(notificationColumns, notificationFrom).Scope(scope, notificationScope).List(params, notification.Fields)
	return queryPage[notification.Notification](ctx, repo.db, q, "notifications")
}
