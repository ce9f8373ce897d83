package workers

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClock reads "HH:MM" in 24h form.
func ParseClock(s string) (ClockTime, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return ClockTime{}, fmt.Errorf("invalid clock time %q, want HH:MM", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return ClockTime{}, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 || len(mm) != 2 {
		return ClockTime{}, fmt.Errorf("invalid minute in %q", s)
	}
	return ClockTime{Hour: h, Minute: m}, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// Next returns the first occurrence of c strictly after t, in t's location.
func (c ClockTime) Next(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), c.Hour, c.Minute, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Job is a daily task. Run reports how many records it touched.
type Job struct {
	Name string
	At   ClockTime
	Run  func(ctx context.Context, now time.Time) (int, error)
}

// Scheduler fires daily jobs at their wall-clock time. Jobs run one after another
// on the scheduler goroutine, so a slow run delays the next one instead of overlapping it.
type Scheduler struct {
	jobs  []Job
	loc   *time.Location
	now   func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewScheduler(loc *time.Location, jobs ...Job) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	return &Scheduler{
		jobs:  jobs,
		loc:   loc,
		now:   time.Now,
		after: time.After,
	}
}

// Run blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.jobs) == 0 {
		<-ctx.Done()
		return nil
	}
	next := make([]time.Time, len(s.jobs))
	start := s.now().In(s.loc)
	for i, j := range s.jobs {
		next[i] = j.At.Next(start)
		slog.Info("scheduled job", "job", j.Name, "at", j.At.String(), "next", next[i])
	}
	for {
		earliest := next[0]
		for _, t := range next[1:] {
			if t.Before(earliest) {
				earliest = t
			}
		}
		select {
		case <-ctx.Done():
			return nil
		case <-s.after(time.Until(earliest)):
		}
		now := s.now().In(s.loc)
		for i, j := range s.jobs {
			if next[i].After(now) {
				continue
			}
			s.runJob(ctx, j, now)
			next[i] = j.At.Next(now)
		}
	}
}

func (s *Scheduler) runJob(ctx context.Context, j Job, now time.Time) {
	started := time.Now()
	n, err := j.Run(ctx, now.UTC())
	if err != nil {
		slog.Error("job failed", "job", j.Name, "err", err)
		return
	}
	slog.Info("job finished", "job", j.Name, "records", n, "took", time.Since(started).String())
}
