package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wonny/skilltrack/pkg/logger"
)

// LocalStore lists prediction CSVs below a directory on disk
type LocalStore struct {
	root   string
	logger *logger.Logger
}

// NewLocalStore creates a store rooted at root
func NewLocalStore(root string, log *logger.Logger) *LocalStore {
	return &LocalStore{
		root:   root,
		logger: log.WithField("module", "artifact"),
	}
}

// List returns every *.csv file below the root, recursively, sorted.
// A missing root is an empty store, not an error.
func (s *LocalStore) List(ctx context.Context) ([]string, error) {
	if _, err := os.Stat(s.root); errors.Is(err, fs.ErrNotExist) {
		s.logger.WithField("root", s.root).Warn("Artifact root does not exist")
		return nil, nil
	}

	var paths []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !isCSV(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list artifacts under %s: %w", s.root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// Open opens an artifact for reading
func (s *LocalStore) Open(_ context.Context, path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

func isCSV(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".csv")
}
