package services

import "context"

// MatchCounter reports how many offender records possibly match a defendant
type MatchCounter interface {
	MatchCount(ctx context.Context, caseID, defendantID string) (int, error)
}

// NoMatches is the MatchCounter used when no matching service is configured
type NoMatches struct{}

func (NoMatches) MatchCount(context.Context, string, string) (int, error) {
	return 0, nil
}
