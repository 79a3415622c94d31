package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nfdrepairs/repair-ops/internal/logger"
	"github.com/nfdrepairs/repair-ops/internal/notify"
	"github.com/nfdrepairs/repair-ops/internal/repository"
)

// SweepResult summarizes one pass over due post-collection messages.
type SweepResult struct {
	Due    int      `json:"due"`
	Sent   int      `json:"sent"`
	Failed int      `json:"failed"`
	Errors []string `json:"errors,omitempty"`
}

// Sweep sends every due, unsent post-collection review SMS. Items are
// processed sequentially; a failure on one never aborts the rest.
func Sweep(ctx context.Context, jobs repository.JobsRepository, dispatcher *notify.Dispatcher) (SweepResult, error) {
	due, err := jobs.ListDuePostCollectionSMS(ctx, time.Now())
	if err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{Due: len(due)}
	for i := range due {
		job := &due[i]
		if err := dispatcher.SendPostCollectionSMS(ctx, job); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, job.Reference+": "+err.Error())
			logger.Log.Warn("post-collection sms failed",
				zap.String("job_ref", job.Reference), zap.Error(err))
			continue
		}
		res.Sent++
	}
	return res, nil
}

// Sweeper runs Sweep on a fixed interval until its context is cancelled.
// The cron GET endpoint does the same pass on demand; deployments pick one.
type Sweeper struct {
	Jobs       repository.JobsRepository
	Dispatcher *notify.Dispatcher
	Interval   time.Duration
}

func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = time.Minute
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()

	logger.Log.Info("sweeper started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			logger.Log.Info("sweeper stopping")
			return nil
		case <-tick.C:
			res, err := Sweep(ctx, s.Jobs, s.Dispatcher)
			if err != nil {
				logger.Log.Error("sweep pass failed", zap.Error(err))
				continue
			}
			if res.Due > 0 {
				logger.Log.Info("sweep pass",
					zap.Int("due", res.Due), zap.Int("sent", res.Sent), zap.Int("failed", res.Failed))
			}
		}
	}
}
