package blob

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Spok95/course-tracker/internal/apperr"
)

// FSStore: локальный каталог. Запись атомарная: временный файл + rename,
// поэтому читатель никогда не видит наполовину записанный файл.
type FSStore struct {
	root string
}

func NewFSStore(root string) (*FSStore, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, apperr.Wrap("blob.NewFSStore", apperr.ErrStorage, "create root", err)
	}
	return &FSStore{root: abs}, nil
}

func (s *FSStore) path(key string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	p := filepath.Join(s.root, clean)
	if !strings.HasPrefix(p, s.root+string(os.PathSeparator)) {
		return "", apperr.Validation("blob.path", "key escapes storage root")
	}
	return p, nil
}

func (s *FSStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	const op = "blob.FSStore.Put"
	dst, err := s.path(key)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", apperr.Wrap(op, apperr.ErrStorage, "mkdir", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".upload-*")
	if err != nil {
		return "", apperr.Wrap(op, apperr.ErrStorage, "create temp", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }() // после rename файла уже нет: ошибка игнорируется

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return "", apperr.Wrap(op, apperr.ErrStorage, "write", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", apperr.Wrap(op, apperr.ErrStorage, "sync", err)
	}
	if err := tmp.Close(); err != nil {
		return "", apperr.Wrap(op, apperr.ErrStorage, "close", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return "", apperr.Wrap(op, apperr.ErrStorage, "rename", err)
	}
	return key, nil
}

func (s *FSStore) Get(_ context.Context, locator string) ([]byte, error) {
	const op = "blob.FSStore.Get"
	p, err := s.path(locator)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, apperr.Wrap(op, apperr.ErrNotFound, locator, err)
	}
	if err != nil {
		return nil, apperr.Wrap(op, apperr.ErrStorage, "read", err)
	}
	return data, nil
}
