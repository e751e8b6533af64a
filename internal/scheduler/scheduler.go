// Package scheduler fires configured payloads into notification
// endpoints on cron schedules, as if they had arrived over HTTP.
package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"hookbot/internal/config"
	"hookbot/pkg/logx"
)

// FireFunc delivers one synthetic payload to a named endpoint path. It
// runs the same normalize/assemble/dispatch pipeline as an HTTP
// request.
type FireFunc func(ctx context.Context, endpoint string, payload map[string]any) error

type Scheduler struct {
	parser cron.Parser
	c      *cron.Cron
	fire   FireFunc
	log    logx.Logger
}

func New(fire FireFunc, log logx.Logger) *Scheduler {
	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	return &Scheduler{
		parser: parser,
		c:      cron.New(cron.WithParser(parser)),
		fire:   fire,
		log:    log,
	}
}

// Add registers one schedule. A bad cron expression rejects this entry
// only.
func (s *Scheduler) Add(spec config.ScheduleConfig) error {
	if spec.Cron == "" {
		return config.Errorf("schedules", "cron expression is required")
	}
	if spec.Endpoint == "" {
		return config.Errorf("schedules", "endpoint is required")
	}
	name := spec.Name
	if name == "" {
		name = spec.Endpoint
	}
	_, err := s.c.AddFunc(spec.Cron, func() {
		payload := make(map[string]any, len(spec.Payload))
		for k, v := range spec.Payload {
			payload[k] = v
		}
		if err := s.fire(context.Background(), spec.Endpoint, payload); err != nil {
			s.log.Warn("scheduled notification failed",
				logx.String("schedule", name),
				logx.String("endpoint", spec.Endpoint),
				logx.Err(err))
			return
		}
		s.log.Info("scheduled notification sent",
			logx.String("schedule", name),
			logx.String("endpoint", spec.Endpoint))
	})
	if err != nil {
		return config.Errorf("schedules", "%s: %s", name, err)
	}
	return nil
}

func (s *Scheduler) Start() { s.c.Start() }

// Stop halts scheduling and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}
