package services

import (
	"context"
	"strings"
	"sync"

	"court_case_service/models"

	"go.uber.org/zap"
)

// TelemetryEventType names an event sent to the telemetry sink
type TelemetryEventType string

const (
	CourtCaseCreatedEvent          TelemetryEventType = "PiCCourtCaseCreated"
	CourtCaseUpdatedEvent          TelemetryEventType = "PiCCourtCaseUpdated"
	DefendantLinkedEvent           TelemetryEventType = "PiCDefendantLinked"
	DefendantUnlinkedEvent         TelemetryEventType = "PiCDefendantUnlinked"
	CourtCaseIntegrityFailureEvent TelemetryEventType = "PiCCourtCaseIntegrityFailure"
)

// EventSink receives telemetry events
type EventSink interface {
	TrackEvent(ctx context.Context, name string, properties map[string]string) error
}

// TelemetryService builds event properties and hands them to the sink in the background.
// Sink failures are logged and never reach the caller.
type TelemetryService struct {
	sink   EventSink
	logger *zap.SugaredLogger
	wg     sync.WaitGroup
}

// NewTelemetryService creates a TelemetryService. A nil sink logs events instead.
func NewTelemetryService(sink EventSink, logger *zap.SugaredLogger) *TelemetryService {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if sink == nil {
		sink = &LogEventSink{logger: logger}
	}
	return &TelemetryService{sink: sink, logger: logger}
}

// TrackEvent sends an event with no properties
func (t *TelemetryService) TrackEvent(ctx context.Context, eventType TelemetryEventType) {
	t.emit(ctx, eventType, map[string]string{})
}

// TrackCourtCaseEvent sends caseId and the comma joined hearings of c
func (t *TelemetryService) TrackCourtCaseEvent(ctx context.Context, eventType TelemetryEventType, c *models.CourtCase) {
	props := map[string]string{}
	putIfNotEmpty(props, "caseId", c.CaseID)

	hearings := make([]string, 0, len(c.Hearings))
	for _, h := range c.Hearings {
		hearings = append(hearings, h.LoggableString())
	}
	putIfNotEmpty(props, "hearings", strings.Join(hearings, ","))

	t.emit(ctx, eventType, props)
}

// TrackDefendantEvent sends the identifiers of one defendant of a case
func (t *TelemetryService) TrackDefendantEvent(ctx context.Context, eventType TelemetryEventType, caseID string, d *models.Defendant) {
	props := map[string]string{}
	putIfNotEmpty(props, "caseId", caseID)
	putIfNotEmpty(props, "defendantId", d.DefendantID)
	if d.PNC != nil {
		putIfNotEmpty(props, "pnc", *d.PNC)
	}
	putIfNotEmpty(props, "crn", d.CRN())

	t.emit(ctx, eventType, props)
}

// TrackIntegrityFailure reports a stored case that breaks the hearing and defendant invariant
func (t *TelemetryService) TrackIntegrityFailure(ctx context.Context, caseID string) {
	props := map[string]string{}
	putIfNotEmpty(props, "caseId", caseID)
	t.emit(ctx, CourtCaseIntegrityFailureEvent, props)
}

// Wait blocks until every event handed to the sink so far has been processed
func (t *TelemetryService) Wait() {
	t.wg.Wait()
}

func (t *TelemetryService) emit(ctx context.Context, eventType TelemetryEventType, props map[string]string) {
	ctx = context.WithoutCancel(ctx)
	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		if err := t.sink.TrackEvent(ctx, string(eventType), props); err != nil {
			t.logger.Warnw("telemetry event dropped", "event", eventType, "error", err)
		}
	}()
}

func putIfNotEmpty(props map[string]string, key, value string) {
	if value != "" {
		props[key] = value
	}
}

// LogEventSink writes events to the application log
type LogEventSink struct {
	logger *zap.SugaredLogger
}

func (s *LogEventSink) TrackEvent(_ context.Context, name string, properties map[string]string) error {
	s.logger.Infow("telemetry event", "event", name, "properties", properties)
	return nil
}
