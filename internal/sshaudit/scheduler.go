package sshaudit

import (
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
)

// PurgeScheduler runs PurgeOlderThan on a cron schedule.
type PurgeScheduler struct {
	cron    *cron.Cron
	entryID cron.EntryID
}

// StartPurgeScheduler registers a retention purge for a on schedule (a
// standard five-field cron expression or a descriptor such as "@daily") and
// starts the scheduler.
func StartPurgeScheduler(a *Auditor, schedule string) (*PurgeScheduler, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	id, err := c.AddFunc(schedule, func() {
		if _, err := a.PurgeOlderThan(0); err != nil {
			log.Printf("[audit] scheduled purge failed: %v", err)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("audit purge schedule %q: %w", schedule, err)
	}
	c.Start()
	log.Printf("[audit] retention purge scheduled (%s, keep %d days)", schedule, a.RetentionDays())
	return &PurgeScheduler{cron: c, entryID: id}, nil
}

// Stop stops the scheduler and waits for a running purge to finish.
func (s *PurgeScheduler) Stop() {
	if s == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Next returns the time of the next scheduled purge.
func (s *PurgeScheduler) Next() time.Time {
	return s.cron.Entry(s.entryID).Next
}
