package paths

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "paths.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_SaveAndList(t *testing.T) {
	s := openTestStore(t)
	s.now = func() time.Time { return time.Date(2024, 3, 9, 14, 5, 7, 0, time.Local) }
	ctx := context.Background()

	first, err := s.Save(ctx, "square", json.RawMessage(`[ {"x":0.1,"y":0.2}, {"x":0.3,"y":0.4} ]`))
	require.NoError(t, err)
	_, err = s.Save(ctx, "line", json.RawMessage(`[]`))
	require.NoError(t, err)

	entries, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, first.ID, entries[0].ID)
	assert.Equal(t, "square", entries[0].Name)
	assert.Equal(t, "2024-03-09 14:05:07", entries[0].Timestamp)
	assert.JSONEq(t, `[{"x":0.1,"y":0.2},{"x":0.3,"y":0.4}]`, string(entries[0].Points))
	assert.Equal(t, "line", entries[1].Name)
}

func TestStore_SaveDefaults(t *testing.T) {
	s := openTestStore(t)

	e, err := s.Save(context.Background(), "  ", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultName, e.Name)
	assert.Equal(t, "[]", string(e.Points))
	assert.Len(t, e.ID, 26)
}

func TestStore_RejectsNonArrayPoints(t *testing.T) {
	s := openTestStore(t)

	for _, raw := range []string{`{"x":1}`, `"square"`, `42`, `[1,`} {
		_, err := s.Save(context.Background(), "bad", json.RawMessage(raw))
		assert.ErrorIs(t, err, ErrInvalidPoints, "points %s", raw)
	}

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paths.db")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.Save(context.Background(), "kept", json.RawMessage(`[1,2,3]`))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()

	entries, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0].Name)
	assert.Equal(t, "[1,2,3]", string(entries[0].Points))
}
