package logging

import "go.uber.org/zap"

// New creates a new zap logger. Production gets JSON output at info level; every other
// environment gets the human readable development encoder.
func New(environment string) *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	if environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		logger = zap.NewExample()
	}
	return logger.Sugar()
}

// Nop returns a logger that discards everything, for tests
func Nop() *zap.SugaredLogger {
	return zap.NewNop().Sugar()
}
