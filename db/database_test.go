package db

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type migrated struct {
	ID   uint
	Name string
}

func TestInitializeLogsThroughZap(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	t.Cleanup(func() {
		DB = nil
		log = zap.NewNop().Sugar()
	})

	err := Initialize(Options{
		Path:        filepath.Join(t.TempDir(), "cases.db"),
		Environment: "production",
		Logger:      zap.New(core).Sugar(),
	})
	require.NoError(t, err)
	require.NoError(t, AutoMigrate(&migrated{}))
	require.NoError(t, Close())

	entries := logs.FilterLoggerName("db").All()
	require.Len(t, entries, 3)
	assert.Equal(t, "Database connection established", entries[0].Message)
	assert.Equal(t, "sqlite", entries[0].ContextMap()["driver"])
	assert.Equal(t, "Database migrations completed", entries[1].Message)
	assert.Equal(t, int64(1), entries[1].ContextMap()["models"])
	assert.Equal(t, "Database connection closed", entries[2].Message)
}

func TestAutoMigrateRequiresInitialize(t *testing.T) {
	DB = nil
	assert.EqualError(t, AutoMigrate(&migrated{}), "database not initialized")
}
