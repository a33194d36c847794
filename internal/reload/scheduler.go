package reload

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// Scheduler forces a reload on a cron schedule. It covers filesystems
// where change notifications are unreliable, such as network mounts.
type Scheduler struct {
	spec     string
	schedule cron.Schedule
	logger   *slog.Logger
}

// NewScheduler parses spec (standard 5-field cron or a descriptor such as
// "@every 5m").
func NewScheduler(spec string, logger *slog.Logger) (*Scheduler, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse reload schedule %q: %w", spec, err)
	}
	return &Scheduler{spec: spec, schedule: schedule, logger: logger}, nil
}

// Start runs the schedule in the background until ctx is cancelled,
// calling onTick with TriggerSchedule on every activation.
func (s *Scheduler) Start(ctx context.Context, onTick func(Trigger)) {
	c := cron.New()
	c.Schedule(s.schedule, cron.FuncJob(func() {
		onTick(TriggerSchedule)
	}))
	c.Start()

	s.logger.Info("scheduled config reload enabled", "schedule", s.spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
	}()
}
