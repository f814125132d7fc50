// Package scheduler drives jobs at wall-clock times without an external
// cron dependency. Interval jobs are expanded into fixed time-of-day
// entries at construction; the schedule is never persisted and is rebuilt
// on process start.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"
)

// offsetInterval staggers the first instance of each interval job so
// different interval jobs never share a cycle.
const offsetInterval = 2 * time.Minute

// Kind distinguishes the two job flavours.
type Kind int

const (
	KindFixed Kind = iota
	KindInterval
)

// TimeOfDay is a daily wall-clock instant.
type TimeOfDay struct {
	Hour   int
	Minute int
	Second int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d:%02d", t.Hour, t.Minute, t.Second)
}

// ParseTimeOfDay reads a "15:04:05" config value.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	var t TimeOfDay
	if _, err := fmt.Sscanf(s, "%d:%d:%d", &t.Hour, &t.Minute, &t.Second); err != nil {
		return TimeOfDay{}, fmt.Errorf("parse time of day %q: %w", s, err)
	}
	if t.Hour < 0 || t.Hour > 23 || t.Minute < 0 || t.Minute > 59 || t.Second < 0 || t.Second > 59 {
		return TimeOfDay{}, fmt.Errorf("time of day %q out of range", s)
	}
	return t, nil
}

// daySeconds positions the instant within a day for sorting.
func (t TimeOfDay) daySeconds() int {
	return t.Hour*3600 + t.Minute*60 + t.Second
}

// Job is one schedulable unit: run once daily at At, or every Every.
type Job struct {
	Name  string
	Kind  Kind
	At    TimeOfDay
	Every time.Duration
	Run   func(ctx context.Context)
}

type entry struct {
	name string
	at   TimeOfDay
	run  func(ctx context.Context)
}

// Scheduler holds one armed wakeup timer for the head of its queue. Jobs
// fire asynchronously and are not awaited; a running job never delays the
// next wakeup, so job implementations must be idempotent and must not
// assume mutual exclusion with their next occurrence.
type Scheduler struct {
	entries []entry
	queue   []entry
	nowFunc func() time.Time
	logger  *slog.Logger
}

func New(jobs []Job, logger *slog.Logger) *Scheduler {
	return newScheduler(jobs, logger, time.Now)
}

func newScheduler(jobs []Job, logger *slog.Logger, nowFunc func() time.Time) *Scheduler {
	return &Scheduler{
		entries: expand(jobs, nowFunc()),
		nowFunc: nowFunc,
		logger:  logger,
	}
}

// expand turns every interval job into fixed time-of-day instances
// spanning 24h and merges them with the fixed jobs into one list sorted
// ascending by time-of-day. The i-th interval job starts at
// now + 2min + i*1min so no two interval jobs land on the same cycle.
func expand(jobs []Job, now time.Time) []entry {
	var entries []entry
	intervalOrdinal := 0
	for _, job := range jobs {
		if job.Kind != KindInterval {
			entries = append(entries, entry{name: job.Name, at: job.At, run: job.Run})
			continue
		}
		stagger := offsetInterval + time.Duration(intervalOrdinal)*time.Minute
		intervalOrdinal++
		// The schedule has one-second granularity; anything below a
		// minute would not keep the day table bounded.
		step := job.Every
		if step < time.Minute {
			step = time.Minute
		}
		start := now.Add(stagger)
		limit := start.Add(24 * time.Hour)
		for t := start; t.Before(limit); t = t.Add(step) {
			entries = append(entries, entry{
				name: job.Name,
				at:   TimeOfDay{Hour: t.Hour(), Minute: t.Minute(), Second: t.Second()},
				run:  job.Run,
			})
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].at.daySeconds() < entries[j].at.daySeconds()
	})
	return entries
}

// Start blocks driving the schedule until ctx is cancelled. On process
// start, entries whose time-of-day already passed today are skipped so a
// restart never fires a burst of stale jobs.
func (s *Scheduler) Start(ctx context.Context) error {
	if len(s.entries) == 0 {
		<-ctx.Done()
		return ctx.Err()
	}
	s.logger.Info("scheduler started", "entries", len(s.entries))

	onStart := true
	for {
		e, wait := s.next(onStart)
		onStart = false
		s.logger.Info("next job armed", "job", e.name, "at", e.at.String(), "wait", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-timer.C:
		}

		s.logger.Info("job fired", "job", e.name)
		go e.run(ctx)
	}
}

// next pops the queue head and computes the wait until its time-of-day.
// An empty queue is refilled from the static sorted list; a refilled head
// already in the past is moved to its occurrence tomorrow. On process
// start every entry that already passed today is skipped first.
func (s *Scheduler) next(onStart bool) (entry, time.Duration) {
	if onStart {
		s.queue = append([]entry(nil), s.entries...)
		for len(s.queue) > 0 {
			e := s.pop()
			wait := s.until(e.at, s.nowFunc())
			if wait < 0 {
				s.logger.Info("skipping stale job on start", "job", e.name, "at", e.at.String())
				continue
			}
			return e, wait
		}
		// The whole day already passed; fall through to a refill that
		// lands the head on tomorrow.
	}
	if len(s.queue) == 0 {
		s.queue = append([]entry(nil), s.entries...)
		e := s.pop()
		wait := s.until(e.at, s.nowFunc())
		if wait < 0 {
			wait = s.until(e.at, s.nowFunc().AddDate(0, 0, 1))
		}
		return e, wait
	}
	e := s.pop()
	return e, s.until(e.at, s.nowFunc())
}

func (s *Scheduler) pop() entry {
	e := s.queue[0]
	s.queue = s.queue[1:]
	return e
}

// until is the duration from now to the entry's time-of-day on the
// reference date.
func (s *Scheduler) until(at TimeOfDay, ref time.Time) time.Duration {
	target := time.Date(ref.Year(), ref.Month(), ref.Day(), at.Hour, at.Minute, at.Second, 0, ref.Location())
	return target.Sub(s.nowFunc())
}
