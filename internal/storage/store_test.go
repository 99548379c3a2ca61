package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	ctx := context.Background()
	dir := t.TempDir()

	file, err := NewFileStore(filepath.Join(dir, "files"))
	require.NoError(t, err)

	sqlite, err := NewSQLiteStore(ctx, filepath.Join(dir, "db", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		BackendFile:   file,
		BackendSQLite: sqlite,
		BackendMemory: NewMemoryStore(),
	}
}

func TestStores_GetMissing(t *testing.T) {
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(context.Background(), "CaptionHistory")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStores_SetGetOverwrite(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Set(ctx, "CaptionHistory", []byte(`[1]`)))
			got, err := s.Get(ctx, "CaptionHistory")
			require.NoError(t, err)
			assert.Equal(t, `[1]`, string(got))

			require.NoError(t, s.Set(ctx, "CaptionHistory", []byte(`[1,2]`)))
			got, err = s.Get(ctx, "CaptionHistory")
			require.NoError(t, err)
			assert.Equal(t, `[1,2]`, string(got))
		})
	}
}

func TestFileStore_SanitisesKeys(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, s.Set(context.Background(), "../escape/key", []byte("x")))
	assert.FileExists(t, filepath.Join(dir, ".._escape_key.json"))
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")

	s, err := NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Close())

	s, err = NewSQLiteStore(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", string(got))
}

func TestMemoryStore_FailWrites(t *testing.T) {
	s := NewMemoryStore()
	boom := errors.New("disk full")
	s.SetFailWrites(boom)

	err := s.Set(context.Background(), "k", []byte("v"))
	assert.ErrorIs(t, err, boom)

	s.SetFailWrites(nil)
	assert.NoError(t, s.Set(context.Background(), "k", []byte("v")))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Config{Backend: "s3"})
	assert.Error(t, err)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), Config{Backend: BackendMemory})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}
