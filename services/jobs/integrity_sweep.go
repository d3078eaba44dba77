package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// IncompleteCaseFinder lists cases lacking a hearing or a defendant
type IncompleteCaseFinder interface {
	FindIncompleteCases(ctx context.Context) ([]string, error)
}

// IntegrityReporter is told about every incomplete case found
type IntegrityReporter interface {
	TrackIntegrityFailure(ctx context.Context, caseID string)
}

// IntegritySweep checks stored cases for the hearing and defendant invariant
type IntegritySweep struct {
	finder   IncompleteCaseFinder
	reporter IntegrityReporter
	logger   *zap.SugaredLogger
	timeout  time.Duration
}

// NewIntegritySweep creates an IntegritySweep. reporter may be nil.
func NewIntegritySweep(finder IncompleteCaseFinder, reporter IntegrityReporter, logger *zap.SugaredLogger) *IntegritySweep {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &IntegritySweep{finder: finder, reporter: reporter, logger: logger, timeout: 5 * time.Minute}
}

// Run performs one sweep and returns the offending case ids
func (s *IntegritySweep) Run(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	caseIDs, err := s.finder.FindIncompleteCases(ctx)
	if err != nil {
		s.logger.Errorw("integrity sweep failed", "error", err)
		return nil, err
	}

	for _, caseID := range caseIDs {
		s.logger.Warnw("court case has no hearing or no defendant", "caseId", caseID)
		if s.reporter != nil {
			s.reporter.TrackIntegrityFailure(ctx, caseID)
		}
	}
	s.logger.Infow("integrity sweep finished", "incomplete", len(caseIDs))
	return caseIDs, nil
}

// StartScheduler runs the sweep on the cron schedule. Stop the returned cron on shutdown.
func StartScheduler(schedule string, sweep *IntegritySweep) (*cron.Cron, error) {
	c := cron.New(cron.WithLocation(time.UTC))

	_, err := c.AddFunc(schedule, func() {
		sweep.logger.Info("running scheduled integrity sweep")
		sweep.Run(context.Background())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to schedule integrity sweep %q: %w", schedule, err)
	}

	c.Start()
	sweep.logger.Infow("scheduler started", "schedule", schedule)
	return c, nil
}
