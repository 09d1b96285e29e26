package scheduler

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

type purgerFunc func(ctx context.Context) (int, error)

func (f purgerFunc) PurgeRead(ctx context.Context) (int, error) { return f(ctx) }

type recordingLogger struct {
	infos, errs []string
}

func (l *recordingLogger) Debug(string, ...interface{})       {}
func (l *recordingLogger) Info(msg string, _ ...interface{})  { l.infos = append(l.infos, msg) }
func (l *recordingLogger) Warn(string, ...interface{})        {}
func (l *recordingLogger) Error(msg string, _ ...interface{}) { l.errs = append(l.errs, msg) }
func (l *recordingLogger) Fatal(string, ...interface{})       {}

func TestPurgeJob(t *testing.T) {
	conf := core.NewTestConfig()
	logger := new(recordingLogger)

	var calls int
	s, err := New(conf, purgerFunc(func(context.Context) (int, error) {
		calls++
		return 7, nil
	}), logger)
	require.NoError(t, err)
	assert.Len(t, s.cron.Entries(), 1)

	s.cron.Entries()[0].Job.Run()
	assert.Equal(t, 1, calls)
	assert.Equal(t, []string{"purged 7 read notifications"}, logger.infos)

	failing := s.purgeJob(purgerFunc(func(context.Context) (int, error) { return 0, errors.New("boom") }))
	failing()
	assert.Equal(t, []string{"purging notifications: boom"}, logger.errs)
}

func TestInvalidSchedule(t *testing.T) {
	conf := core.NewTestConfig()
	conf.Notification.PurgeSchedule = "every now and then"
	_, err := New(conf, purgerFunc(func(context.Context) (int, error) { return 0, nil }), new(recordingLogger))
	assert.Error(t, err)
}
