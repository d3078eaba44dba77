package db

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	DB  *gorm.DB
	log = zap.NewNop().Sugar()
)

// Options selects the database to open
type Options struct {
	// Path of the local sqlite file; ignored when TursoURL is set
	Path        string
	TursoURL    string
	TursoToken  string
	Environment string
	// Logger receives connection and migration messages; nil discards them
	Logger *zap.SugaredLogger
}

// Initialize sets up the database connection. Local files use WAL mode for concurrency and
// a busy timeout so that writers wait briefly for the lock before SQLITE_BUSY is reported.
func Initialize(opts Options) error {
	var err error
	if opts.Logger != nil {
		log = opts.Logger.Named("db")
	}

	// Determine log level based on environment
	logLevel := logger.Info
	if opts.Environment == "production" {
		logLevel = logger.Warn
	}

	DB, err = Open(opts, logger.Default.LogMode(logLevel))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if opts.TursoURL != "" {
		log.Infow("Database connection established", "driver", "libsql")
	} else {
		log.Infow("Database connection established", "driver", "sqlite", "path", opts.Path, "journal", "wal")
	}
	return nil
}

// Open returns a gorm handle without touching the package level DB. Timestamps are
// always written in UTC.
func Open(opts Options, gormLogger logger.Interface) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger:  gormLogger,
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	if opts.TursoURL != "" {
		dsn := opts.TursoURL
		if opts.TursoToken != "" {
			sep := "?"
			if strings.Contains(dsn, "?") {
				sep = "&"
			}
			dsn += sep + "authToken=" + opts.TursoToken
		}
		return gorm.Open(sqlite.New(sqlite.Config{DriverName: "libsql", DSN: dsn}), cfg)
	}

	dsn := opts.Path
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}

// AutoMigrate runs database migrations for the provided models
func AutoMigrate(models ...interface{}) error {
	if DB == nil {
		return fmt.Errorf("database not initialized")
	}

	err := DB.AutoMigrate(models...)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Infow("Database migrations completed", "models", len(models))
	return nil
}

// Close closes the database connection
func Close() error {
	if DB == nil {
		return nil
	}

	sqlDB, err := DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return err
	}
	log.Info("Database connection closed")
	return nil
}
