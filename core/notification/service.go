package notification

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
)

var nowFunc = func() time.Time { return time.Now().UTC() }

type (
	Repository interface {
		CreateNotifications(ctx context.Context, notes []Notification) ([]Notification, error)
		// QueryNotifications returns the newest notifications first.
		QueryNotifications(ctx context.Context, filter QueryFilter) ([]Notification, error)
		CountUnread(ctx context.Context, userID string) (int, error)
		// MarkRead marks the unread notifications of userID read. No ids means all of them.
		MarkRead(ctx context.Context, userID string, readAt time.Time, ids ...int) (int, error)
		// DeleteNotifications deletes notifications of userID. No ids means all of them.
		DeleteNotifications(ctx context.Context, userID string, ids ...int) (int, error)
		PurgeRead(ctx context.Context, before time.Time) (int, error)
	}

	// Dispatcher persists notifications inside the caller's transaction.
	Dispatcher interface {
		Notify(ctx context.Context, userID string, msg Message) (Notification, error)
		// NotifyMany creates one notification per user. An empty list is a no-op.
		NotifyMany(ctx context.Context, userIDs []string, msg Message) ([]Notification, error)
		// Deliver mirrors committed notifications to email. It never fails.
		Deliver(ctx context.Context, notes ...Notification)
	}

	Service interface {
		Query(ctx context.Context, filter QueryFilter) ([]Notification, error)
		CountUnread(ctx context.Context, userID string) (int, error)
		MarkRead(ctx context.Context, userID string, ids ...int) (int, error)
		Delete(ctx context.Context, userID string, ids ...int) (int, error)
		// PurgeRead deletes read notifications older than the configured retention.
		PurgeRead(ctx context.Context) (int, error)
	}

	dispatcher struct {
		conf    *core.Config
		repo    Repository
		users   user.Repository
		mailSvc core.EmailService
		logger  core.Logger
		metrics core.Metrics
	}

	service struct {
		conf *core.Config
		repo Repository
	}
)

var (
	_ Dispatcher = (*dispatcher)(nil)
	_ Service    = (*service)(nil)
)

func NewDispatcher(conf *core.Config, repo Repository, users user.Repository, mailSvc core.EmailService, logger core.Logger, metrics core.Metrics) Dispatcher {
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &dispatcher{conf: conf, repo: repo, users: users, mailSvc: mailSvc, logger: logger, metrics: metrics}
}

func NewService(conf *core.Config, repo Repository) Service {
	return &service{conf: conf, repo: repo}
}

func (d *dispatcher) Notify(ctx context.Context, userID string, msg Message) (Notification, error) {
	notes, err := d.NotifyMany(ctx, []string{userID}, msg)
	if err != nil {
		return Notification{}, err
	}
	return notes[0], nil
}

func (d *dispatcher) NotifyMany(ctx context.Context, userIDs []string, msg Message) ([]Notification, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	now := nowFunc()
	notes := make([]Notification, 0, len(userIDs))
	for _, id := range userIDs {
		notes = append(notes, msg.toNotification(id, now))
	}
	notes, err := d.repo.CreateNotifications(ctx, notes)
	return notes, errors.Wrapf(err, "creating %s notifications", msg.Type)
}

func (d *dispatcher) Deliver(ctx context.Context, notes ...Notification) {
	if len(notes) == 0 {
		return
	}
	counts := make(map[string]int)
	for _, n := range notes {
		counts[n.Type]++
	}
	for typ, n := range counts {
		d.metrics.NotificationsCreated(typ, n)
	}

	if !d.conf.Notification.EmailEnabled {
		return
	}
	ids := make([]string, 0, len(notes))
	seen := make(map[string]bool, len(notes))
	for _, n := range notes {
		if !seen[n.UserID] {
			seen[n.UserID] = true
			ids = append(ids, n.UserID)
		}
	}
	users, err := d.users.GetUsersByID(ctx, ids...)
	if err != nil {
		d.logger.Error("loading notification recipients", err)
		return
	}
	byID := make(map[string]user.User, len(users))
	for _, usr := range users {
		byID[usr.ID] = usr
	}

	msgs := make([]*core.EmailMessage, 0, len(notes))
	for _, n := range notes {
		usr, ok := byID[n.UserID]
		if !ok || usr.Email == "" {
			continue
		}
		msgs = append(msgs, emailMessage(usr, n))
	}
	if len(msgs) > 0 {
		d.mailSvc.SendMessages(msgs...)
	}
}

func emailMessage(usr user.User, n Notification) *core.EmailMessage {
	return &core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      n.Title,
		TemplateName: "notification",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"Title": n.Title,
			"Body":  n.Body,
		},
	}
}

func (svc *service) Query(ctx context.Context, filter QueryFilter) ([]Notification, error) {
	return svc.repo.QueryNotifications(ctx, filter)
}

func (svc *service) CountUnread(ctx context.Context, userID string) (int, error) {
	return svc.repo.CountUnread(ctx, userID)
}

func (svc *service) MarkRead(ctx context.Context, userID string, ids ...int) (int, error) {
	return svc.repo.MarkRead(ctx, userID, nowFunc(), ids...)
}

func (svc *service) Delete(ctx context.Context, userID string, ids ...int) (int, error) {
	return svc.repo.DeleteNotifications(ctx, userID, ids...)
}

func (svc *service) PurgeRead(ctx context.Context) (int, error) {
	return svc.repo.PurgeRead(ctx, nowFunc().Add(-svc.conf.Notification.Retention))
}
