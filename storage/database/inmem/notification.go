package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/MarMar-mg/school-managment-system-sub000/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil)

func NewNotificationRepository(db *DB) notification.Repository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotifications(_ context.Context, notes []notification.Notification) ([]notification.Notification, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	if err := repo.db.fail("CreateNotifications"); err != nil {
		return nil, err
	}
	created := make([]notification.Notification, len(notes))
	for i, n := range notes {
		n.ID = repo.db.nextID("notifications")
		repo.db.t.notifications[n.ID] = n
		created[i] = n
	}
	return created, nil
}

func selected(id int, ids []int) bool {
	return len(ids) == 0 || containsInt(ids, id)
}

func (repo *notificationRepository) QueryNotifications(_ context.Context, filter notification.QueryFilter) ([]notification.Notification, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	notes := make([]notification.Notification, 0)
	for _, n := range repo.db.t.notifications {
		if n.UserID != filter.UserID || (filter.UnreadOnly && n.IsRead) {
			continue
		}
		notes = append(notes, n)
	}
	sort.Slice(notes, func(i, j int) bool {
		if c := cmpTime(notes[i].CreatedAt, notes[j].CreatedAt); c != 0 {
			return c > 0
		}
		return notes[i].ID > notes[j].ID
	})
	start, end := filter.Page.Apply(len(notes))
	return notes[start:end], nil
}

func (repo *notificationRepository) CountUnread(_ context.Context, userID string) (int, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	var cnt int
	for _, n := range repo.db.t.notifications {
		if n.UserID == userID && !n.IsRead {
			cnt++
		}
	}
	return cnt, nil
}

func (repo *notificationRepository) MarkRead(_ context.Context, userID string, readAt time.Time, ids ...int) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for id, n := range repo.db.t.notifications {
		if n.UserID != userID || n.IsRead || !selected(id, ids) {
			continue
		}
		at := readAt
		n.IsRead = true
		n.ReadAt = &at
		repo.db.t.notifications[id] = n
		cnt++
	}
	return cnt, nil
}

func (repo *notificationRepository) DeleteNotifications(_ context.Context, userID string, ids ...int) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for id, n := range repo.db.t.notifications {
		if n.UserID == userID && selected(id, ids) {
			delete(repo.db.t.notifications, id)
			cnt++
		}
	}
	return cnt, nil
}

func (repo *notificationRepository) PurgeRead(_ context.Context, before time.Time) (int, error) {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()

	var cnt int
	for id, n := range repo.db.t.notifications {
		if n.IsRead && n.CreatedAt.Before(before) {
			delete(repo.db.t.notifications, id)
			cnt++
		}
	}
	return cnt, nil
}
