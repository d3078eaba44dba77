package services

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"court_case_service/models"

	"go.uber.org/zap"
)

// GeneratePayloadKey creates the archive key of a request body received at t
// Format: cases/{caseId}/{unixNanos}.json
func GeneratePayloadKey(caseID string, t time.Time) string {
	return fmt.Sprintf("cases/%s/%d.json", caseID, t.UnixNano())
}

// PayloadArchive keeps the raw bodies of case writes
type PayloadArchive struct {
	storage StorageProvider
	enabled bool
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewPayloadArchive creates a PayloadArchive. A nil storage or enabled=false archives nothing.
func NewPayloadArchive(storage StorageProvider, enabled bool, logger *zap.SugaredLogger) *PayloadArchive {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &PayloadArchive{
		storage: storage,
		enabled: enabled && storage != nil && storage.IsConfigured(),
		logger:  logger,
		now:     time.Now,
	}
}

// Enabled reports whether bodies are being archived
func (a *PayloadArchive) Enabled() bool {
	return a != nil && a.enabled
}

// Archive stores body under the case. Failures are logged and never returned to the caller.
func (a *PayloadArchive) Archive(ctx context.Context, caseID string, body []byte) string {
	if !a.Enabled() || len(body) == 0 {
		return ""
	}
	if !validKeySegment(caseID) {
		a.logger.Warnw("refusing to archive request payload", "caseId", caseID)
		return ""
	}
	key := GeneratePayloadKey(caseID, a.now())
	if err := a.storage.Put(context.WithoutCancel(ctx), key, body, "application/json"); err != nil {
		a.logger.Warnw("failed to archive request payload", "caseId", caseID, "key", key, "error", err)
		return ""
	}
	return key
}

// History lists the archived payload names of a case, oldest first
func (a *PayloadArchive) History(ctx context.Context, caseID string) ([]string, error) {
	if !a.Enabled() {
		return []string{}, nil
	}
	if !validKeySegment(caseID) {
		return nil, fmt.Errorf("%w: invalid case id %q", models.ErrInvalidRequest, caseID)
	}
	keys, err := a.storage.List(ctx, "cases/"+caseID+"/")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, key := range keys {
		names = append(names, path.Base(key))
	}
	return names, nil
}

// Open returns one archived payload of a case
func (a *PayloadArchive) Open(ctx context.Context, caseID, name string) (io.ReadCloser, string, error) {
	if !a.Enabled() {
		return nil, "", models.NotFound("archived payload %s for case %s", name, caseID)
	}
	if !validKeySegment(caseID) {
		return nil, "", fmt.Errorf("%w: invalid case id %q", models.ErrInvalidRequest, caseID)
	}
	if !validKeySegment(name) {
		return nil, "", fmt.Errorf("%w: invalid payload name %q", models.ErrInvalidRequest, name)
	}
	return a.storage.Get(ctx, "cases/"+caseID+"/"+name)
}

// validKeySegment reports whether s stays a single path element below cases/
func validKeySegment(s string) bool {
	return s != "" && !strings.ContainsAny(s, `/\`) && !strings.Contains(s, "..")
}
