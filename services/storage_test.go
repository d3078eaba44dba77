package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"court_case_service/config"
	"court_case_service/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLocalStorage(t *testing.T) {
	tempDir := t.TempDir()

	storage := NewLocalStorage(tempDir)
	ctx := context.Background()
	content := `{"caseId":"1600028913"}`
	key := "cases/1600028913/100.json"

	t.Run("Put creates file", func(t *testing.T) {
		err := storage.Put(ctx, key, []byte(content), "application/json")
		assert.NoError(t, err)

		_, err = os.Stat(filepath.Join(tempDir, key))
		assert.NoError(t, err)
	})

	t.Run("Get retrieves file content", func(t *testing.T) {
		reader, retrievedType, err := storage.Get(ctx, key)
		require.NoError(t, err)
		defer reader.Close()

		got, _ := io.ReadAll(reader)
		assert.Equal(t, content, string(got))
		assert.Equal(t, "application/json", retrievedType)
	})

	t.Run("Get of a missing key is not found", func(t *testing.T) {
		_, _, err := storage.Get(ctx, "cases/missing/1.json")
		assert.ErrorIs(t, err, models.ErrEntityNotFound)
	})

	t.Run("List returns keys in order", func(t *testing.T) {
		require.NoError(t, storage.Put(ctx, "cases/1600028913/050.json", []byte("{}"), "application/json"))
		require.NoError(t, storage.Put(ctx, "cases/other/1.json", []byte("{}"), "application/json"))

		keys, err := storage.List(ctx, "cases/1600028913/")
		assert.NoError(t, err)
		assert.Equal(t, []string{"cases/1600028913/050.json", key}, keys)
	})

	t.Run("List of an unknown prefix is empty", func(t *testing.T) {
		keys, err := storage.List(ctx, "cases/nothing/")
		assert.NoError(t, err)
		assert.Empty(t, keys)
	})

	assert.True(t, storage.IsConfigured())
}

func TestNewStorageProviderFallsBackToLocal(t *testing.T) {
	cfg := &config.Config{ArchiveDir: t.TempDir()}
	provider := NewStorageProvider(cfg, zap.NewNop().Sugar())
	_, ok := provider.(*LocalStorage)
	assert.True(t, ok)
}

func TestGeneratePayloadKey(t *testing.T) {
	at := time.Unix(1700000000, 42)
	assert.Equal(t, "cases/1600028913/1700000000000000042.json", GeneratePayloadKey("1600028913", at))
}

type failingStorage struct {
	LocalStorage
}

func (failingStorage) Put(context.Context, string, []byte, string) error {
	return errors.New("disk full")
}

func TestPayloadArchive(t *testing.T) {
	ctx := context.Background()

	t.Run("archives and reads back", func(t *testing.T) {
		archive := NewPayloadArchive(NewLocalStorage(t.TempDir()), true, nil)
		archive.now = func() time.Time { return time.Unix(0, 100) }
		key := archive.Archive(ctx, "C1", []byte(`{"a":1}`))
		assert.Equal(t, "cases/C1/100.json", key)

		archive.now = func() time.Time { return time.Unix(0, 200) }
		archive.Archive(ctx, "C1", []byte(`{"a":2}`))

		names, err := archive.History(ctx, "C1")
		require.NoError(t, err)
		assert.Equal(t, []string{"100.json", "200.json"}, names)

		reader, contentType, err := archive.Open(ctx, "C1", "200.json")
		require.NoError(t, err)
		defer reader.Close()
		body, _ := io.ReadAll(reader)
		assert.JSONEq(t, `{"a":2}`, string(body))
		assert.Equal(t, "application/json", contentType)
	})

	t.Run("rejects names leaving the case", func(t *testing.T) {
		archive := NewPayloadArchive(NewLocalStorage(t.TempDir()), true, nil)
		_, _, err := archive.Open(ctx, "C1", "../C2/1.json")
		assert.ErrorIs(t, err, models.ErrInvalidRequest)
	})

	t.Run("rejects case ids leaving cases", func(t *testing.T) {
		root := t.TempDir()
		dir := filepath.Join(root, "archive")
		archive := NewPayloadArchive(NewLocalStorage(dir), true, nil)

		for _, caseID := range []string{"../../escape", `..\escape`, "C1/../C2", ""} {
			assert.Empty(t, archive.Archive(ctx, caseID, []byte(`{}`)), caseID)

			_, err := archive.History(ctx, caseID)
			assert.ErrorIs(t, err, models.ErrInvalidRequest, caseID)

			_, _, err = archive.Open(ctx, caseID, "1.json")
			assert.ErrorIs(t, err, models.ErrInvalidRequest, caseID)
		}

		_, err := os.Stat(filepath.Join(root, "escape"))
		assert.True(t, os.IsNotExist(err))
	})

	t.Run("disabled archive keeps nothing", func(t *testing.T) {
		dir := t.TempDir()
		archive := NewPayloadArchive(NewLocalStorage(dir), false, nil)
		assert.False(t, archive.Enabled())
		assert.Empty(t, archive.Archive(ctx, "C1", []byte(`{}`)))

		names, err := archive.History(ctx, "C1")
		assert.NoError(t, err)
		assert.Empty(t, names)

		_, _, err = archive.Open(ctx, "C1", "1.json")
		assert.ErrorIs(t, err, models.ErrEntityNotFound)
	})

	t.Run("storage failure is swallowed", func(t *testing.T) {
		archive := NewPayloadArchive(&failingStorage{}, true, nil)
		assert.Empty(t, archive.Archive(ctx, "C1", []byte(`{}`)))
	})
}
