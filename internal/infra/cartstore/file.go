package cartstore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/Ayflow350/Ice-empire/internal/cart"

	"github.com/pkg/errors"
)

// FileStorageはカートを1ファイルに保存する（cmd/shopの既定）
type FileStorage struct {
	path string
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

func (f *FileStorage) Load(_ context.Context) ([]byte, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, cart.ErrEmptySnapshot
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", f.path)
	}
	return raw, nil
}

// 途中で落ちても壊れたファイルを残さないよう一時ファイルからrenameする
func (f *FileStorage) Save(_ context.Context, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return errors.Wrap(err, "mkdir")
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, snapshot, 0o600); err != nil {
		return errors.Wrap(err, "write cart")
	}
	return errors.Wrap(os.Rename(tmp, f.path), "rename cart")
}
