package notification_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	. "github.com/MarMar-mg/school-managment-system-sub000/core/notification"
	"github.com/MarMar-mg/school-managment-system-sub000/core/user"
	emailsvc "github.com/MarMar-mg/school-managment-system-sub000/services/email"
	inmemdb "github.com/MarMar-mg/school-managment-system-sub000/storage/database/inmem"
	testutil "github.com/MarMar-mg/school-managment-system-sub000/tests"
)

type countingMetrics struct {
	created map[string]int
}

func (m *countingMetrics) NotificationsCreated(typ string, n int) { m.created[typ] += n }
func (m *countingMetrics) ScoresSubmitted(string, int)            {}

type fixture struct {
	db      *inmemdb.DB
	conf    *core.Config
	disp    Dispatcher
	svc     Service
	metrics *countingMetrics
	ali     user.User
	sara    user.User
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	db := inmemdb.Open()
	users := inmemdb.NewUserRepository(db)
	repo := inmemdb.NewNotificationRepository(db)
	mail := emailsvc.NewConsoleServiceMock(conf, testutil.NopLogger{})

	f := fixture{db: db, conf: conf, metrics: &countingMetrics{created: make(map[string]int)}}
	f.disp = NewDispatcher(conf, repo, users, mail, testutil.NopLogger{}, f.metrics)
	f.svc = NewService(conf, repo)
	f.ali = testutil.CreateUser(t, users, "Ali Rahimi", "arahimi", "ali@school.test", "", user.RoleStudent, true)
	f.sara = testutil.CreateUser(t, users, "Sara Ahmadi", "sahmadi", "", "", user.RoleStudent, true)
	return f
}

var gradeMsg = Message{Title: "New grade", Body: "You received 18", Type: TypeGrade, RelatedID: core.IntPtr(3), RelatedType: RelatedExam}

func TestDispatcher_NotifyMany(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	t.Run("empty list", func(t *testing.T) {
		notes, err := f.disp.NotifyMany(ctx, nil, gradeMsg)
		require.NoError(t, err)
		assert.Empty(t, notes)
		notes, err = f.disp.NotifyMany(ctx, []string{}, gradeMsg)
		require.NoError(t, err)
		assert.Empty(t, notes)
		assert.Equal(t, 0, f.db.Count("notifications"))
	})

	t.Run("one per user", func(t *testing.T) {
		notes, err := f.disp.NotifyMany(ctx, []string{f.ali.ID, f.sara.ID}, gradeMsg)
		require.NoError(t, err)
		require.Len(t, notes, 2)
		for i, id := range []string{f.ali.ID, f.sara.ID} {
			assert.NotZero(t, notes[i].ID)
			assert.Equal(t, id, notes[i].UserID)
			assert.Equal(t, "New grade", notes[i].Title)
			assert.Equal(t, TypeGrade, notes[i].Type)
			assert.Equal(t, 3, *notes[i].RelatedID)
			assert.Equal(t, RelatedExam, *notes[i].RelatedType)
			assert.False(t, notes[i].IsRead)
			assert.Nil(t, notes[i].ReadAt)
		}
		assert.Equal(t, 2, f.db.Count("notifications"))
	})

	t.Run("storage failure", func(t *testing.T) {
		f.db.FailOn["CreateNotifications"] = errors.New("disk full")
		defer delete(f.db.FailOn, "CreateNotifications")

		_, err := f.disp.Notify(ctx, f.ali.ID, gradeMsg)
		assert.Error(t, err)
	})

	t.Run("no related type", func(t *testing.T) {
		note, err := f.disp.Notify(ctx, f.ali.ID, Message{Title: "Hello", Type: TypeGrade})
		require.NoError(t, err)
		assert.Nil(t, note.RelatedType)
		assert.Nil(t, note.RelatedID)
	})
}

func TestDispatcher_Deliver(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	core.ParseEmailTemplates(f.conf, testutil.NopLogger{})
	emailsvc.ResetSentMessages()
	defer emailsvc.ResetSentMessages()

	notes, err := f.disp.NotifyMany(ctx, []string{f.ali.ID, f.sara.ID}, gradeMsg)
	require.NoError(t, err)

	f.disp.Deliver(ctx, notes...)
	assert.Equal(t, 2, f.metrics.created[TypeGrade])
	assert.Empty(t, emailsvc.SentMessages())

	f.conf.Notification.EmailEnabled = true
	f.disp.Deliver(ctx, notes...)
	sent := emailsvc.SentMessages()
	// sara has no email address
	require.Len(t, sent, 1)
	assert.Equal(t, f.ali.Email, sent[0].To[0].Address)
	assert.Equal(t, "New grade", sent[0].Subject)
	assert.Contains(t, sent[0].TextContent, "You received 18")

	f.disp.Deliver(ctx)
	assert.Len(t, emailsvc.SentMessages(), 1)
}

func TestService_readState(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	base := time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)
	defer SetNow(time.Now)
	var ids []int
	for i := 0; i < 4; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		SetNow(func() time.Time { return at })
		note, err := f.disp.Notify(ctx, f.ali.ID, gradeMsg)
		require.NoError(t, err)
		ids = append(ids, note.ID)
	}
	_, err := f.disp.Notify(ctx, f.sara.ID, gradeMsg)
	require.NoError(t, err)

	notes, err := f.svc.Query(ctx, QueryFilter{UserID: f.ali.ID})
	require.NoError(t, err)
	require.Len(t, notes, 4)
	assert.Equal(t, ids[3], notes[0].ID)

	page, err := f.svc.Query(ctx, QueryFilter{UserID: f.ali.ID, Page: core.Page{Limit: 2, Offset: 1}})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, ids[2], page[0].ID)

	cnt, err := f.svc.MarkRead(ctx, f.ali.ID, ids[0], ids[1])
	require.NoError(t, err)
	assert.Equal(t, 2, cnt)
	// already read
	cnt, err = f.svc.MarkRead(ctx, f.ali.ID, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 0, cnt)

	unread, err := f.svc.CountUnread(ctx, f.ali.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	notes, err = f.svc.Query(ctx, QueryFilter{UserID: f.ali.ID, UnreadOnly: true})
	require.NoError(t, err)
	assert.Len(t, notes, 2)

	// other users' notifications are untouched
	cnt, err = f.svc.MarkRead(ctx, f.sara.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	unread, err = f.svc.CountUnread(ctx, f.ali.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	cnt, err = f.svc.Delete(ctx, f.ali.ID, ids[3])
	require.NoError(t, err)
	assert.Equal(t, 1, cnt)
	cnt, err = f.svc.Delete(ctx, f.sara.ID, ids[2])
	require.NoError(t, err)
	assert.Equal(t, 0, cnt)
	cnt, err = f.svc.Delete(ctx, f.ali.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, cnt)
}

func TestService_PurgeRead(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	base := time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC)
	defer SetNow(time.Now)

	SetNow(func() time.Time { return base })
	old, err := f.disp.Notify(ctx, f.ali.ID, gradeMsg)
	require.NoError(t, err)
	_, err = f.disp.Notify(ctx, f.sara.ID, gradeMsg) // old but unread
	require.NoError(t, err)
	_, err = f.svc.MarkRead(ctx, f.ali.ID, old.ID)
	require.NoError(t, err)

	SetNow(func() time.Time { return base.Add(f.conf.Notification.Retention / 2) })
	recent, err := f.disp.Notify(ctx, f.ali.ID, gradeMsg)
	require.NoError(t, err)
	_, err = f.svc.MarkRead(ctx, f.ali.ID, recent.ID)
	require.NoError(t, err)

	SetNow(func() time.Time { return base.Add(f.conf.Notification.Retention + time.Minute) })
	n, err := f.svc.PurgeRead(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, f.db.Count("notifications"))
}
