package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

const jobTimeout = 4 * time.Minute

// Purger deletes read notifications past their retention period.
type Purger interface {
	PurgeRead(ctx context.Context) (int, error)
}

type Scheduler struct {
	cron   *cron.Cron
	logger core.Logger
}

// New registers the periodic jobs. Nothing runs until Start.
func New(conf *core.Config, purger Purger, logger core.Logger) (*Scheduler, error) {
	c := cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)))
	s := &Scheduler{cron: c, logger: logger}

	if _, err := c.AddFunc(conf.Notification.PurgeSchedule, s.purgeJob(purger)); err != nil {
		return nil, errors.Wrap(err, "scheduling notification purge")
	}
	return s, nil
}

func (s *Scheduler) purgeJob(purger Purger) func() {
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()

		n, err := purger.PurgeRead(ctx)
		if err != nil {
			s.logger.Error(fmt.Sprintf("purging notifications: %v", err), err)
			return
		}
		s.logger.Info(fmt.Sprintf("purged %d read notifications", n))
	}
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
