package cron

import (
	"context"
	"sort"
	"time"
)

// Job is a unit of scheduled maintenance.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type entry struct {
	job     Job
	every   time.Duration
	lastRun time.Time
}

// Schedule decides which jobs are due on each tick. Jobs with a zero cadence
// run on every tick. Last-run times are process local, so a cadence is a
// floor per worker rather than a cluster-wide guarantee.
type Schedule struct {
	entries []*entry
}

func NewSchedule() *Schedule {
	return &Schedule{}
}

// Every adds job at the given cadence and returns the schedule for chaining.
func (s *Schedule) Every(every time.Duration, job Job) *Schedule {
	if job == nil {
		return s
	}
	s.entries = append(s.entries, &entry{job: job, every: every})
	return s
}

// Due lists the jobs whose cadence has elapsed at now, in registration order.
func (s *Schedule) Due(now time.Time) []Job {
	var due []Job
	for _, e := range s.entries {
		if e.lastRun.IsZero() || e.every <= 0 || !now.Before(e.lastRun.Add(e.every)) {
			due = append(due, e.job)
		}
	}
	return due
}

// MarkRan records a completed attempt so the job waits a full cadence again.
func (s *Schedule) MarkRan(name string, at time.Time) {
	for _, e := range s.entries {
		if e.job.Name() == name {
			e.lastRun = at
		}
	}
}

// Names returns the registered job names sorted for logging.
func (s *Schedule) Names() []string {
	names := make([]string, 0, len(s.entries))
	for _, e := range s.entries {
		names = append(names, e.job.Name())
	}
	sort.Strings(names)
	return names
}
