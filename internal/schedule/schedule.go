package schedule

import (
	"context"
	"fmt"
	"log"
	"time"
)

// Job is a named task that runs at fixed wall-clock times each day.
type Job struct {
	Name  string
	Times []string // "HH:MM", local time
	Run   func(ctx context.Context)
}

// Scheduler runs jobs at their configured times, one at a time, until
// the context is cancelled. A single process owns the store, so jobs
// never overlap and no locking is needed.
type Scheduler struct {
	jobs []Job
	now  func() time.Time
}

// New creates a scheduler over the given jobs.
func New(jobs ...Job) *Scheduler {
	return &Scheduler{jobs: jobs, now: time.Now}
}

// Run blocks, firing each job at its times, until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	// Fail fast on malformed times instead of at 4am.
	for _, j := range s.jobs {
		for _, at := range j.Times {
			if _, err := NextRun(s.now(), at); err != nil {
				return fmt.Errorf("job %s: %w", j.Name, err)
			}
		}
	}

	for {
		job, at, err := s.next(s.now())
		if err != nil {
			return err
		}
		log.Printf("Next run: %s at %s", job.Name, at.Format("2006-01-02 15:04"))

		timer := time.NewTimer(time.Until(at))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		log.Printf("Running scheduled job: %s", job.Name)
		job.Run(ctx)
	}
}

// next returns the job with the soonest upcoming run time.
func (s *Scheduler) next(now time.Time) (Job, time.Time, error) {
	var (
		best   Job
		bestAt time.Time
	)
	for _, j := range s.jobs {
		for _, clock := range j.Times {
			at, err := NextRun(now, clock)
			if err != nil {
				return Job{}, time.Time{}, fmt.Errorf("job %s: %w", j.Name, err)
			}
			if bestAt.IsZero() || at.Before(bestAt) {
				best, bestAt = j, at
			}
		}
	}
	if bestAt.IsZero() {
		return Job{}, time.Time{}, fmt.Errorf("no jobs scheduled")
	}
	return best, bestAt, nil
}

// NextRun returns the next occurrence of the "HH:MM" wall-clock time at
// or after now. A time earlier in the day rolls over to tomorrow.
func NextRun(now time.Time, clock string) (time.Time, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q (want HH:MM): %w", clock, err)
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
	if next.Before(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next, nil
}
