package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"court_case_service/models"
	"court_case_service/services/reconcile"
	"court_case_service/services/retry"

	"go.uber.org/zap"
)

// CourtCaseServiceConfig wires a CourtCaseService. Only Store is required.
type CourtCaseServiceConfig struct {
	Store     Store
	Telemetry *TelemetryService
	Auditor   Auditor
	Metrics   *Metrics
	Logger    *zap.SugaredLogger
	// MaxAttempts bounds lock retries; zero uses retry.DefaultMaxAttempts
	MaxAttempts int
}

// CourtCaseService reads cases and writes reconciled case graphs.
//
// Writes run the lookup, reconciliation and save as one transaction, repeated from the
// start while storage reports lock contention. A write that has started is not cut short
// when the caller's context is cancelled.
type CourtCaseService struct {
	store     Store
	telemetry *TelemetryService
	auditor   Auditor
	metrics   *Metrics
	logger    *zap.SugaredLogger
	policy    retry.Policy
}

// NewCourtCaseService creates a CourtCaseService
func NewCourtCaseService(cfg CourtCaseServiceConfig) *CourtCaseService {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	telemetry := cfg.Telemetry
	if telemetry == nil {
		telemetry = NewTelemetryService(nil, logger)
	}

	s := &CourtCaseService{
		store:     cfg.Store,
		telemetry: telemetry,
		auditor:   cfg.Auditor,
		metrics:   cfg.Metrics,
		logger:    logger,
	}
	s.policy = retry.Policy{
		MaxAttempts: cfg.MaxAttempts,
		IsTransient: models.IsTransient,
		OnRetry: func(attempt int, err error) {
			s.logger.Warnw("lock acquisition failed, retrying", "attempt", attempt, "error", err)
			if s.metrics != nil {
				s.metrics.LockRetries.Inc()
			}
		},
		OnExhausted: func(attempts int, err error) {
			s.logger.Errorw("lock acquisition failed, giving up", "attempts", attempts, "error", err)
			if s.metrics != nil {
				s.metrics.RetriesExhausted.Inc()
			}
		},
	}
	return s
}

// writeResult describes what a write transaction did
type writeResult struct {
	saved    *models.CourtCase
	previous *models.CourtCase
}

func (r writeResult) created() bool {
	return r.previous == nil
}

// CreateCase stores the whole graph under caseID. An existing case keeps its record but
// all of its hearings, offences and defendants are replaced.
func (s *CourtCaseService) CreateCase(ctx context.Context, caseID string, c *models.CourtCase) (*models.CourtCase, error) {
	res, err := s.write(ctx, caseID, func(tx Store, wctx context.Context) (writeResult, error) {
		if err := s.checkCourt(wctx, tx, c); err != nil {
			return writeResult{}, err
		}
		existing, err := tx.Cases().FindByCaseID(wctx, caseID)
		switch {
		case errors.Is(err, models.ErrEntityNotFound):
			existing = nil
		case err != nil:
			return writeResult{}, err
		}

		base := existing
		if base == nil {
			base = &models.CourtCase{CaseID: caseID}
		}
		saved, err := tx.Cases().Save(wctx, reconcile.Replace(base, c))
		return writeResult{saved: saved, previous: existing}, err
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, res, "")
	return res.saved, nil
}

// CreateOrUpdateForDefendant stores the incoming view of one defendant. A new case is
// created as is; an existing one is reconciled so that its other defendants and, when no
// hearings are supplied, its hearings keep their identity.
func (s *CourtCaseService) CreateOrUpdateForDefendant(ctx context.Context, caseID, defendantID string, incoming *models.CourtCase) (*models.CourtCase, error) {
	res, err := s.write(ctx, caseID, func(tx Store, wctx context.Context) (writeResult, error) {
		if len(incoming.Hearings) > 0 {
			if err := s.checkCourt(wctx, tx, incoming); err != nil {
				return writeResult{}, err
			}
		}
		existing, err := tx.Cases().FindByCaseID(wctx, caseID)
		if errors.Is(err, models.ErrEntityNotFound) {
			if len(incoming.Hearings) == 0 {
				return writeResult{}, fmt.Errorf("%w: new case %s has no hearing", models.ErrInvalidRequest, caseID)
			}
			saved, err := tx.Cases().Save(wctx, reconcile.Replace(&models.CourtCase{CaseID: caseID}, incoming))
			return writeResult{saved: saved}, err
		}
		if err != nil {
			return writeResult{}, err
		}
		if len(incoming.Hearings) == 0 {
			// the existing hearings are kept, so is their court
			if err := s.checkCourt(wctx, tx, existing); err != nil {
				return writeResult{}, err
			}
		}

		var merged *models.CourtCase
		if _, ok := existing.FindDefendant(defendantID); ok {
			merged, err = reconcile.Merge(existing, incoming, defendantID)
		} else {
			merged, err = reconcile.AddDefendant(existing, incoming, defendantID)
		}
		if err != nil {
			return writeResult{}, err
		}
		saved, err := tx.Cases().Save(wctx, merged)
		return writeResult{saved: saved, previous: existing}, err
	})
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, res, defendantID)
	return res.saved, nil
}

// write runs fn in a retried transaction on a context detached from cancellation
func (s *CourtCaseService) write(ctx context.Context, caseID string, fn func(tx Store, wctx context.Context) (writeResult, error)) (writeResult, error) {
	start := time.Now()
	wctx := context.WithoutCancel(ctx)

	res, err := retry.DoValue(ctx, s.policy, func(attempt int) (writeResult, error) {
		var res writeResult
		err := s.store.Transaction(wctx, func(tx Store) error {
			var err error
			res, err = fn(tx, wctx)
			return err
		})
		return res, err
	})
	if s.metrics != nil {
		s.metrics.ObserveWrite(start)
		if errors.Is(err, models.ErrStaleRecord) {
			s.metrics.StaleWrites.Inc()
		}
	}
	if err != nil {
		s.logger.Warnw("court case write failed", "caseId", caseID, "error", err)
		return writeResult{}, err
	}
	return res, nil
}

// checkCourt resolves the court of the first hearing
func (s *CourtCaseService) checkCourt(ctx context.Context, tx Store, c *models.CourtCase) error {
	courtCode := c.CourtCode()
	if courtCode == "" {
		return fmt.Errorf("%w: case %s has no hearing", models.ErrInvalidRequest, c.CaseID)
	}
	_, err := tx.Courts().FindByCourtCode(ctx, courtCode)
	return err
}

// afterWrite emits telemetry, audit and metrics for a committed write
func (s *CourtCaseService) afterWrite(ctx context.Context, res writeResult, defendantID string) {
	saved := res.saved
	action := models.AuditActionUpdate
	if res.created() {
		action = models.AuditActionCreate
		s.telemetry.TrackCourtCaseEvent(ctx, CourtCaseCreatedEvent, saved)
		if s.metrics != nil {
			s.metrics.CasesCreated.Inc()
		}
	} else {
		s.telemetry.TrackCourtCaseEvent(ctx, CourtCaseUpdatedEvent, saved)
		if s.metrics != nil {
			s.metrics.CasesUpdated.Inc()
		}
	}
	s.logger.Infow("court case saved", "caseId", saved.CaseID, "defendantId", defendantID, "action", action)

	if s.auditor != nil {
		s.auditor.RecordCaseWrite(ctx, action, saved.CaseID, defendantID, string(action)+" court case",
			models.NewCaseAuditSummary(res.previous), models.NewCaseAuditSummary(saved))
	}

	if defendantID != "" {
		s.trackLinkage(ctx, res, defendantID)
	}
}

// trackLinkage reports a defendant gaining or losing its offender CRN
func (s *CourtCaseService) trackLinkage(ctx context.Context, res writeResult, defendantID string) {
	d, ok := res.saved.FindDefendant(defendantID)
	if !ok {
		return
	}
	oldCRN := ""
	if res.previous != nil {
		if before, ok := res.previous.FindDefendant(defendantID); ok {
			oldCRN = before.CRN()
		}
	}
	newCRN := d.CRN()

	switch {
	case oldCRN == "" && newCRN != "":
		s.telemetry.TrackDefendantEvent(ctx, DefendantLinkedEvent, res.saved.CaseID, d)
		s.auditLinkage(ctx, models.AuditActionLink, res.saved.CaseID, defendantID, oldCRN, newCRN)
	case oldCRN != "" && newCRN == "":
		unlinked := *d
		unlinked.OffenderCRN = &oldCRN
		unlinked.Offender = nil
		s.telemetry.TrackDefendantEvent(ctx, DefendantUnlinkedEvent, res.saved.CaseID, &unlinked)
		s.auditLinkage(ctx, models.AuditActionUnlink, res.saved.CaseID, defendantID, oldCRN, newCRN)
	}
}

func (s *CourtCaseService) auditLinkage(ctx context.Context, action models.AuditAction, caseID, defendantID, oldCRN, newCRN string) {
	if s.auditor == nil {
		return
	}
	s.auditor.RecordCaseWrite(ctx, action, caseID, defendantID, "offender linkage changed",
		map[string]string{"crn": oldCRN}, map[string]string{"crn": newCRN})
}

// read runs fn with lock retries and checks the integrity of what it returns
func (s *CourtCaseService) read(ctx context.Context, fn func() (*models.CourtCase, error)) (*models.CourtCase, error) {
	c, err := retry.DoValue(ctx, s.policy, func(int) (*models.CourtCase, error) {
		return fn()
	})
	if err != nil {
		return nil, err
	}
	if err := c.CheckDefendants(); err != nil {
		s.logger.Errorw("court case failed integrity check", "caseId", c.CaseID, "error", err)
		return nil, err
	}
	return c, nil
}

// GetCaseByCaseID returns the case with the given identifier
func (s *CourtCaseService) GetCaseByCaseID(ctx context.Context, caseID string) (*models.CourtCase, error) {
	return s.read(ctx, func() (*models.CourtCase, error) {
		return s.store.Cases().FindByCaseID(ctx, caseID)
	})
}

// GetCaseByCaseNumber returns the case listed at a court under caseNo
func (s *CourtCaseService) GetCaseByCaseNumber(ctx context.Context, courtCode, caseNo string) (*models.CourtCase, error) {
	return s.read(ctx, func() (*models.CourtCase, error) {
		if _, err := s.store.Courts().FindByCourtCode(ctx, courtCode); err != nil {
			return nil, err
		}
		return s.store.Cases().FindByCourtCodeAndCaseNo(ctx, courtCode, caseNo)
	})
}

// GetCaseByCaseIDAndDefendantID returns the case only if it holds the defendant
func (s *CourtCaseService) GetCaseByCaseIDAndDefendantID(ctx context.Context, caseID, defendantID string) (*models.CourtCase, error) {
	return s.read(ctx, func() (*models.CourtCase, error) {
		return s.store.Cases().FindByCaseIDAndDefendantID(ctx, caseID, defendantID)
	})
}

// FilterCases lists the cases sitting at a court on a day, created inside the window
func (s *CourtCaseService) FilterCases(ctx context.Context, courtCode string, day, createdAfter, createdBefore time.Time) ([]models.CourtCase, error) {
	cases, err := retry.DoValue(ctx, s.policy, func(int) ([]models.CourtCase, error) {
		if _, err := s.store.Courts().FindByCourtCode(ctx, courtCode); err != nil {
			return nil, err
		}
		return s.store.Cases().FindByCourtCodeAndHearingDay(ctx, courtCode, day, createdAfter, createdBefore)
	})
	if err != nil {
		return nil, err
	}
	for i := range cases {
		if err := cases[i].CheckDefendants(); err != nil {
			s.logger.Errorw("court case failed integrity check", "caseId", cases[i].CaseID, "courtCode", courtCode, "error", err)
			return nil, err
		}
	}
	return cases, nil
}

// FilterCasesLastModified returns the latest write to the cases of a court list
func (s *CourtCaseService) FilterCasesLastModified(ctx context.Context, courtCode string, day time.Time) (time.Time, bool, error) {
	type lastModified struct {
		at    time.Time
		found bool
	}
	lm, err := retry.DoValue(ctx, s.policy, func(int) (lastModified, error) {
		at, found, err := s.store.Cases().FindLastModified(ctx, courtCode, day)
		return lastModified{at: at, found: found}, err
	})
	return lm.at, lm.found, err
}

// FindIncompleteCases returns the identifiers of cases without a hearing or a defendant
func (s *CourtCaseService) FindIncompleteCases(ctx context.Context) ([]string, error) {
	return retry.DoValue(ctx, s.policy, func(int) ([]string, error) {
		return s.store.Cases().FindIncomplete(ctx)
	})
}

// Telemetry returns the telemetry service used for write events
func (s *CourtCaseService) Telemetry() *TelemetryService {
	return s.telemetry
}
