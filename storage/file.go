package storage

import (
	"encoding/hex"
	"hash/fnv"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// File persists each key as its own file under a directory. Keys are mapped
// to file names through an FNV hash so arbitrary key characters never reach
// the filesystem.
type File struct {
	dir string
}

// NewFile creates a file-backed store rooted at dir, creating the directory
// if needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, errors.Wrap(err, "[NewFile] create storage dir")
	}
	return &File{dir: dir}, nil
}

func (f *File) Get(key string) (string, bool, error) {
	raw, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, "[File.Get] read")
	}
	return string(raw), true, nil
}

func (f *File) Set(key, value string) error {
	if err := os.WriteFile(f.path(key), []byte(value), 0o600); err != nil {
		return errors.Wrap(err, "[File.Set] write")
	}
	return nil
}

func (f *File) Remove(key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[File.Remove] remove")
	}
	return nil
}

func (f *File) path(key string) string {
	h := fnv.New64a()
	h.Write([]byte(key))
	return filepath.Join(f.dir, hex.EncodeToString(h.Sum(nil))+".slot")
}
