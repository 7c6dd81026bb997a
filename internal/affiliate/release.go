package affiliate

import (
	"context"
	"log/slog"
	"time"
)

// ReleaseJob pays out approved commissions once they are older than the
// clawback window.
type ReleaseJob struct {
	ledger   *Ledger
	clawback time.Duration
	timeout  time.Duration
	logger   *slog.Logger
}

func NewReleaseJob(ledger *Ledger, clawbackDays int, logger *slog.Logger) *ReleaseJob {
	return &ReleaseJob{
		ledger:   ledger,
		clawback: time.Duration(clawbackDays) * 24 * time.Hour,
		timeout:  10 * time.Minute,
		logger:   logger,
	}
}

// Cutoff is the latest approval time eligible for release at now.
func (j *ReleaseJob) Cutoff(now time.Time) time.Time {
	return now.Add(-j.clawback)
}

func (j *ReleaseJob) Run(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	cutoff := j.Cutoff(j.ledger.now())
	j.logger.Info("releasing approved commissions", "approved_before", cutoff)

	n, err := j.ledger.ReleaseApproved(ctx, cutoff)
	if err != nil {
		j.logger.Error("commission release failed", "error", err, "released", n)
		return n, err
	}

	j.logger.Info("commission release finished", "released", n)
	return n, nil
}

// Tick runs the job from the scheduler, which has no error channel.
func (j *ReleaseJob) Tick() {
	_, _ = j.Run(context.Background())
}
