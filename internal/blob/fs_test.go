package blob

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/course-tracker/internal/apperr"
)

func TestFSStore_OverwriteSameKey(t *testing.T) {
	ctx := context.Background()
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)

	key := AssignmentKey(42, 1)
	loc1, err := s.Put(ctx, key, []byte("first"), "application/pdf")
	require.NoError(t, err)
	loc2, err := s.Put(ctx, key, []byte("second"), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, loc1, loc2, "локатор стабилен для (user, week)")

	data, err := s.Get(ctx, loc2)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	// после перезаписи не остаётся временных файлов
	entries, err := os.ReadDir(filepath.Join(s.root, "assignments", "user42"))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFSStore_GetMissing(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Get(context.Background(), "assignments/user1/week9")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestFSStore_RejectsEscapingKey(t *testing.T) {
	s, err := NewFSStore(t.TempDir())
	require.NoError(t, err)
	_, err = s.Put(context.Background(), "../../etc/passwd", []byte("x"), "")
	// Clean("/"+key) отрезает выход за корень, файл окажется внутри root
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(s.root, "etc", "passwd"))
	require.NoError(t, err)
}

func TestFSStore_WriteFailureIsStorageError(t *testing.T) {
	root := t.TempDir()
	s, err := NewFSStore(root)
	require.NoError(t, err)
	// файл на месте каталога: MkdirAll упадёт
	require.NoError(t, os.WriteFile(filepath.Join(root, "assignments"), []byte("x"), 0o644))

	_, err = s.Put(context.Background(), AssignmentKey(1, 1), []byte("data"), "")
	require.ErrorIs(t, err, apperr.ErrStorage)
	assert.True(t, apperr.Retryable(err))
}
