package scheduler

import (
	"context"
	"time"

	"poa/internal/logger"
)

// AlignedScheduler runs a task on wall-clock boundaries of Interval in
// Location (00:00, 06:00, 12:00, 18:00 for 6h), shifted by Offset.
type AlignedScheduler struct {
	Name           string
	Interval       time.Duration
	Offset         time.Duration
	Location       *time.Location
	RunImmediately bool

	nowFn func() time.Time
	after func(time.Duration) <-chan time.Time
}

func NewAlignedScheduler(interval, offset time.Duration) *AlignedScheduler {
	return &AlignedScheduler{
		Interval: interval,
		Offset:   offset,
		Location: time.UTC,
		nowFn:    time.Now,
		after:    time.After,
	}
}

// Start blocks until ctx is done. Runs never overlap: a slow task delays the
// next boundary check instead of stacking.
func (s *AlignedScheduler) Start(ctx context.Context, task func(context.Context)) {
	if s == nil {
		return
	}
	prefix := "AlignedScheduler"
	if s.Name != "" {
		prefix += "[" + s.Name + "]"
	}
	if task == nil {
		logger.Warnf("%s: task is nil, exit", prefix)
		return
	}
	if s.Interval <= 0 {
		logger.Warnf("%s: invalid interval=%s, exit", prefix, s.Interval)
		return
	}
	if s.Offset < 0 {
		logger.Warnf("%s: negative offset=%s, clamp to 0", prefix, s.Offset)
		s.Offset = 0
	}
	if s.Location == nil {
		s.Location = time.UTC
	}
	if s.nowFn == nil {
		s.nowFn = time.Now
	}
	if s.after == nil {
		s.after = time.After
	}

	startAt := s.nowFn()
	logger.Infof("%s: started interval=%s offset=%s tz=%s run_immediately=%v",
		prefix, s.Interval, s.Offset, s.Location, s.RunImmediately)

	if s.RunImmediately {
		task(ctx)
	}

	for {
		now := s.nowFn()
		wakeAt := s.Next(now)
		wait := wakeAt.Sub(now)
		logger.Infof("%s: 下次执行=%s (in %s) | uptime=%s", prefix,
			wakeAt.In(s.Location).Format(time.RFC3339), wait.Truncate(time.Second), now.Sub(startAt).Truncate(time.Second))

		select {
		case <-ctx.Done():
			logger.Infof("%s: ctx done, exit", prefix)
			return
		case <-s.after(wait):
		}
		task(ctx)
	}
}

// Next returns the first boundary plus offset strictly after now.
func (s *AlignedScheduler) Next(now time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	// boundaries count from local midnight
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	elapsed := local.Sub(day)
	next := day.Add((elapsed/s.Interval + 1) * s.Interval).Add(s.Offset)
	for !next.After(now) {
		next = next.Add(s.Interval)
	}
	if prev := next.Add(-s.Interval); prev.After(now) {
		next = prev
	}
	return next
}
