package sqlxrepos

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
)

type notificationRow struct {
	ID          int         `db:"id"`
	UserID      string      `db:"user_id"`
	Title       string      `db:"title"`
	Body        string      `db:"body"`
	Type        string      `db:"type"`
	RelatedID   null.Int    `db:"related_id"`
	RelatedType null.String `db:"related_type"`
	CreatedAt   time.Time   `db:"created_at"`
	IsRead      bool        `db:"is_read"`
	ReadAt      null.Time   `db:"read_at"`
}

func (row notificationRow) notification() notification.Notification {
	n := notification.Notification{
		ID:          row.ID,
		UserID:      row.UserID,
		Title:       row.Title,
		Body:        row.Body,
		Type:        row.Type,
		RelatedID:   intPtr(row.RelatedID),
		RelatedType: row.RelatedType.Ptr(),
		CreatedAt:   row.CreatedAt.UTC(),
		IsRead:      row.IsRead,
	}
	if row.ReadAt.Valid {
		t := row.ReadAt.Time.UTC()
		n.ReadAt = &t
	}
	return n
}

type notificationRepository struct {
	repo
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *sqlx.DB) notification.Repository {
	return &notificationRepository{repo{db: db}}
}

const notificationColumns = "id, user_id, title, body, type, related_id, related_type, created_at, is_read, read_at"

// CreateNotifications inserts all notes with one statement.
func (r *notificationRepository) CreateNotifications(ctx context.Context, notes []notification.Notification) ([]notification.Notification, error) {
	if len(notes) == 0 {
		return notes, nil
	}
	values := make([]string, 0, len(notes))
	args := make([]interface{}, 0, len(notes)*7)
	for _, n := range notes {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, FALSE)")
		args = append(args, n.UserID, n.Title, n.Body, n.Type,
			null.IntFromPtr(n.RelatedID), null.StringFromPtr(n.RelatedType), n.CreatedAt.UTC())
	}
	q := "INSERT INTO notifications (user_id, title, body, type, related_id, related_type, created_at, is_read) VALUES " +
		strings.Join(values, ", ") + " RETURNING id"

	var ids []int
	if err := r.selectAll(ctx, &ids, q, args...); err != nil {
		return nil, errors.Wrap(err, "inserting notifications")
	}
	created := make([]notification.Notification, len(notes))
	for i, n := range notes {
		n.ID = ids[i]
		created[i] = n
	}
	return created, nil
}

func (r *notificationRepository) QueryNotifications(ctx context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	var w where
	w.add("user_id = ?", filter.UserID)
	if filter.UnreadOnly {
		w.add("is_read = FALSE")
	}
	q := "SELECT " + notificationColumns + " FROM notifications" + w.String() + " ORDER BY created_at DESC, id DESC"
	args := w.args
	if filter.Page.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, filter.Page.Limit)
	}
	if filter.Page.Offset > 0 {
		q += " OFFSET ?"
		args = append(args, filter.Page.Offset)
	}

	var rows []notificationRow
	if err := r.selectAll(ctx, &rows, q, args...); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	notes := make([]notification.Notification, 0, len(rows))
	for _, row := range rows {
		notes = append(notes, row.notification())
	}
	return notes, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.get(ctx, &n, "SELECT COUNT(*) FROM notifications WHERE user_id = ? AND is_read = FALSE", userID)
	return n, errors.Wrap(err, "counting unread notifications")
}

func (r *notificationRepository) MarkRead(ctx context.Context, userID string, readAt time.Time, ids ...int) (int, error) {
	var w where
	w.add("user_id = ?", userID)
	w.add("is_read = FALSE")
	if len(ids) > 0 {
		w.add("id IN (?)", ids)
	}
	args := append([]interface{}{readAt.UTC()}, w.args...)
	n, err := r.run(ctx, "UPDATE notifications SET is_read = TRUE, read_at = ?"+w.String(), args...)
	return n, errors.Wrap(err, "marking notifications read")
}

func (r *notificationRepository) DeleteNotifications(ctx context.Context, userID string, ids ...int) (int, error) {
	var w where
	w.add("user_id = ?", userID)
	if len(ids) > 0 {
		w.add("id IN (?)", ids)
	}
	n, err := r.run(ctx, "DELETE FROM notifications"+w.String(), w.args...)
	return n, errors.Wrap(err, "deleting notifications")
}

func (r *notificationRepository) PurgeRead(ctx context.Context, before time.Time) (int, error) {
	n, err := r.run(ctx, "DELETE FROM notifications WHERE is_read = TRUE AND created_at < ?", before.UTC())
	return n, errors.Wrap(err, "purging read notifications")
}
