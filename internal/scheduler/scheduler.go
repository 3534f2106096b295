// Package scheduler runs the periodic inbox sync and announces threads that
// started waiting for a response.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/user/agentinbox/internal/types"
	"github.com/user/agentinbox/internal/view"
)

// Syncer returns the interrupted threads that are new since the previous
// call.
type Syncer interface {
	SyncNew(ctx context.Context) ([]types.ThreadData, error)
}

// Broadcaster delivers a message to every subscribed channel.
type Broadcaster interface {
	Broadcast(ctx context.Context, message string) error
}

// Scheduler evaluates a cron expression and runs one sync per tick.
type Scheduler struct {
	syncer   Syncer
	out      Broadcaster
	schedule string
	baseURL  string
	preview  *view.Previewer
	cron     *cron.Cron

	// running guards against overlapping ticks.
	running sync.Mutex
}

// cronParser accepts both standard 5-field cron expressions and 6-field
// expressions with an optional seconds field.
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// New creates a Scheduler. baseURL prefixes the thread links in
// notifications.
func New(syncer Syncer, out Broadcaster, schedule, baseURL string, preview *view.Previewer) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		out:      out,
		schedule: schedule,
		baseURL:  baseURL,
		preview:  preview,
		cron:     cron.New(cron.WithParser(cronParser)),
	}
}

// ValidateSchedule reports whether expr parses.
func ValidateSchedule(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", expr, err)
	}
	return nil
}

// Start registers the sync job and starts the cron ticker. Each tick runs
// with a context derived from ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		slog.Debug("cron firing sync", "schedule", s.schedule)
		if err := s.RunOnce(ctx); err != nil {
			slog.Warn("scheduled sync failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}
	slog.Info("scheduled inbox sync", "schedule", s.schedule)
	s.cron.Start()
	return nil
}

// RunOnce syncs and broadcasts one notification listing the new threads.
// A tick that starts while another is still running is skipped.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.running.TryLock() {
		slog.Debug("previous sync still running, skipping tick")
		return nil
	}
	defer s.running.Unlock()

	fresh, err := s.syncer.SyncNew(ctx)
	if err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if len(fresh) == 0 {
		return nil
	}
	slog.Info("new interrupted threads", "count", len(fresh))
	return s.out.Broadcast(ctx, view.NotificationText(fresh, s.baseURL, s.preview))
}

// Stop stops the cron ticker and waits for a running sync to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
