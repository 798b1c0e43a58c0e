// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package banner

import (
	"errors"
	"io/fs"
	"os"

	"github.com/samber/oops"
)

// Store looks banner assets up by key in a file system.
type Store struct {
	fsys fs.FS
}

// NewStore creates a Store over fsys. Keys are used as file names at the root.
func NewStore(fsys fs.FS) *Store {
	return &Store{fsys: fsys}
}

// OpenDir creates a Store over a directory on disk.
func OpenDir(dir string) (*Store, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, oops.Code("BANNER_DIR_INVALID").
			With("dir", dir).
			Wrapf(err, "open banners directory")
	}
	if !info.IsDir() {
		return nil, oops.Code("BANNER_DIR_INVALID").
			With("dir", dir).
			Errorf("banners path is not a directory")
	}
	return NewStore(os.DirFS(dir)), nil
}

// Exists reports whether an asset is stored under key. A missing file is not
// an error; any other stat failure is.
func (s *Store) Exists(key Key) (bool, error) {
	info, err := fs.Stat(s.fsys, string(key))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, oops.Code("BANNER_ASSET_READ_FAILED").
			With("key", string(key)).
			Wrap(err)
	}
	return !info.IsDir(), nil
}

// Read returns the raw bytes stored under key.
func (s *Store) Read(key Key) ([]byte, error) {
	data, err := fs.ReadFile(s.fsys, string(key))
	if err != nil {
		return nil, oops.Code("BANNER_ASSET_READ_FAILED").
			With("key", string(key)).
			Wrap(err)
	}
	return data, nil
}
