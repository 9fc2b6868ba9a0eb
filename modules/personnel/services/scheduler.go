package services

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

type ScheduleOptions struct {
	BulkInterval  time.Duration
	DeltaInterval time.Duration
	RetryInterval time.Duration
	// InitialDelay is the wait before the first run of every loop.
	InitialDelay time.Duration
	Logger       *logrus.Entry
}

// Scheduler runs the enabled bulk, delta and retry loops of every organisation. Loops are
// independent; a failed run is logged and the loop waits for its next tick.
type Scheduler struct {
	orch *Orchestrator
	opts ScheduleOptions
}

func NewScheduler(orch *Orchestrator, opts ScheduleOptions) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = logrusNop()
	}
	return &Scheduler{orch: orch, opts: opts}
}

type job struct {
	orgID    string
	kind     RunKind
	interval time.Duration
	run      func(ctx context.Context) (RunSummary, error)
}

func (s *Scheduler) jobs() []job {
	var out []job
	for _, oc := range s.orch.Registry().All() {
		orgID, limit := oc.ID(), oc.Org.BulkLimit
		if oc.Org.Bulk && s.opts.BulkInterval > 0 {
			out = append(out, job{orgID, RunBulk, s.opts.BulkInterval, func(ctx context.Context) (RunSummary, error) {
				return s.orch.Bulk(ctx, orgID, limit)
			}})
		}
		if oc.Org.Delta && s.opts.DeltaInterval > 0 {
			out = append(out, job{orgID, RunDelta, s.opts.DeltaInterval, func(ctx context.Context) (RunSummary, error) {
				return s.orch.Delta(ctx, orgID)
			}})
		}
		if oc.Org.Retry && s.opts.RetryInterval > 0 {
			out = append(out, job{orgID, RunRetry, s.opts.RetryInterval, func(ctx context.Context) (RunSummary, error) {
				return s.orch.Retry(ctx, orgID)
			}})
		}
	}
	return out
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	jobs := s.jobs()
	s.opts.Logger.WithField("jobs", len(jobs)).Info("scheduler started")

	var wg sync.WaitGroup
	for _, j := range jobs {
		wg.Add(1)
		go func(j job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}
	wg.Wait()
	return nil
}

func (s *Scheduler) loop(ctx context.Context, j job) {
	log := s.opts.Logger.WithFields(logrus.Fields{"org_id": j.orgID, "kind": j.kind})

	timer := time.NewTimer(s.opts.InitialDelay)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		summary, err := j.run(ctx)
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Error("scheduled run failed")
		} else if err == nil {
			log.WithFields(logrus.Fields{"run_id": summary.RunID, "processed": summary.Processed}).Debug("scheduled run finished")
		}
		timer.Reset(j.interval)
	}
}
