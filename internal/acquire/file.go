package acquire

import (
	"context"
	"os"

	"github.com/pkg/errors"
)

const opPick = "PickPhoto"

// FileSource reads an image chosen from local storage.
type FileSource struct {
	Path  string
	Cache *Cache
}

// Acquire returns the file contents. An empty file yields ErrNoImage. Cached
// bytes are only reused while the file's modification time and size are
// unchanged.
func (s *FileSource) Acquire(ctx context.Context) ([]byte, error) {
	if s.Path == "" {
		return nil, unsupported(opPick, errors.New("no file path given"))
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var version Version
	if s.Cache != nil {
		info, err := os.Stat(s.Path)
		if err != nil {
			return nil, readError(err)
		}
		version = VersionOf(info)
		if data, ok := s.Cache.Get(s.Path, version); ok {
			return data, nil
		}
	}

	data, err := os.ReadFile(s.Path)
	switch {
	case err != nil:
		return nil, readError(err)
	case len(data) == 0:
		return nil, ErrNoImage
	}

	if s.Cache != nil {
		s.Cache.Put(s.Path, version, data)
	}
	return data, nil
}

func readError(err error) error {
	if errors.Is(err, os.ErrPermission) {
		return permissionDenied(opPick, err)
	}
	return failed(opPick, err)
}
