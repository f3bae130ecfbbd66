package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/wonny/skilltrack/pkg/logger"
)

// GCSStore lists prediction CSVs below a prefix of a Cloud Storage bucket
type GCSStore struct {
	client *storage.Client
	bucket string
	prefix string
	logger *logger.Logger
}

// NewGCSStore creates a GCS-backed store. credentialsFile may be empty to use
// application default credentials.
func NewGCSStore(ctx context.Context, bucket, prefix, credentialsFile string, log *logger.Logger) (*GCSStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		if _, err := os.Stat(credentialsFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("service account key not found at path: %s", credentialsFile)
		}
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCS storage client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: bucket,
		prefix: prefix,
		logger: log.WithField("module", "artifact"),
	}, nil
}

// List returns every *.csv object below the prefix, sorted
func (s *GCSStore) List(ctx context.Context) ([]string, error) {
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: s.prefix})

	var paths []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list gs://%s/%s: %w", s.bucket, s.prefix, err)
		}
		if isCSV(attrs.Name) {
			paths = append(paths, attrs.Name)
		}
	}

	sort.Strings(paths)
	s.logger.WithFields(map[string]interface{}{
		"bucket": s.bucket,
		"prefix": s.prefix,
		"count":  len(paths),
	}).Debug("Listed GCS artifacts")
	return paths, nil
}

// Open streams an object
func (s *GCSStore) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(path).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open gs://%s/%s: %w", s.bucket, path, err)
	}
	return r, nil
}

// Close releases the storage client
func (s *GCSStore) Close() error {
	return s.client.Close()
}
