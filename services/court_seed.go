package services

import (
	"context"
	"fmt"

	"court_case_service/config"
	"court_case_service/models"

	"go.uber.org/zap"
)

// SeedCourts registers the configured courts. Existing courts keep their row and take the configured name.
func SeedCourts(ctx context.Context, courts CourtRepository, seeds []config.CourtSeed, logger *zap.SugaredLogger) error {
	for _, seed := range seeds {
		court := models.Court{CourtCode: seed.Code, Name: seed.Name}
		if err := courts.Save(ctx, &court); err != nil {
			return fmt.Errorf("failed to seed court %s: %w", seed.Code, err)
		}
	}
	if logger != nil {
		logger.Infow("courts seeded", "count", len(seeds))
	}
	return nil
}
