// Package modelstore keeps trained model snapshots in an object store.
package modelstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/chartmuseum/storage"
	"github.com/rs/zerolog/log"

	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/forecast"
)

const (
	snapshotPrefix = "snapshot-v"
	snapshotSuffix = ".json"
)

// ErrNoSnapshot is returned by Latest when nothing has been saved yet
var ErrNoSnapshot = errors.New("no model snapshot stored")

// Store reads and writes snapshot blobs through a chartmuseum storage backend
type Store struct {
	backend storage.Backend
	prefix  string
}

func New(backend storage.Backend, prefix string) *Store {
	return &Store{backend: backend, prefix: strings.Trim(prefix, "/")}
}

// NewLocal stores snapshots on the local filesystem under dir
func NewLocal(dir, prefix string) *Store {
	return New(storage.NewLocalFilesystemBackend(dir), prefix)
}

const defaultRegion = "us-east-1"

// FromConfig picks the backend named in the storage config. S3 credentials
// go to the client directly; the process environment is left alone.
func FromConfig(cfg config.StorageConfig) (*Store, error) {
	switch cfg.Backend {
	case "local", "":
		return NewLocal(cfg.Dir, cfg.Prefix), nil
	case "s3":
		endpoint, err := bucketEndpoint(cfg)
		if err != nil {
			return nil, err
		}
		region := strings.TrimSpace(cfg.Region)
		if region == "" {
			region = defaultRegion
		}
		creds := credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
		// keys already carry the store prefix
		backend := storage.NewAmazonS3BackendWithCredentials(cfg.Bucket, "", region, endpoint, "", creds)
		return New(backend, cfg.Prefix), nil
	default:
		return nil, fmt.Errorf("unknown model store backend %q", cfg.Backend)
	}
}

// bucketEndpoint validates the S3 settings and returns the endpoint as a URL
func bucketEndpoint(cfg config.StorageConfig) (string, error) {
	var missing []string
	if cfg.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if cfg.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		missing = append(missing, "credentials")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("model store s3 config missing %s", strings.Join(missing, ", "))
	}

	if strings.Contains(cfg.Endpoint, "://") {
		return cfg.Endpoint, nil
	}
	scheme := "http"
	if cfg.UseSSL {
		scheme = "https"
	}
	return scheme + "://" + strings.TrimPrefix(cfg.Endpoint, "//"), nil
}

// Key returns the object key of a snapshot version
func (s *Store) Key(version int64) string {
	return path.Join(s.prefix, fmt.Sprintf("%s%06d%s", snapshotPrefix, version, snapshotSuffix))
}

// Save writes the snapshot and returns its key
func (s *Store) Save(ctx context.Context, snap *forecast.Snapshot) (string, error) {
	if snap == nil || snap.Model == nil {
		return "", fmt.Errorf("save snapshot: empty snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	key := s.Key(snap.Version)
	if err := s.backend.PutObject(key, data); err != nil {
		return "", fmt.Errorf("put snapshot %s: %w", key, err)
	}
	log.Info().Str("key", key).Int64("version", snap.Version).Int("bytes", len(data)).Msg("model snapshot saved")
	return key, nil
}

// Versions lists stored snapshot versions in ascending order
func (s *Store) Versions(ctx context.Context) ([]int64, error) {
	objects, err := s.backend.ListObjects(s.prefix)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	var versions []int64
	for _, obj := range objects {
		if v, ok := parseVersion(path.Base(obj.Path)); ok {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// Latest loads the highest stored version
func (s *Store) Latest(ctx context.Context) (*forecast.Snapshot, error) {
	versions, err := s.Versions(ctx)
	if err != nil {
		return nil, err
	}
	if len(versions) == 0 {
		return nil, ErrNoSnapshot
	}
	return s.Load(ctx, versions[len(versions)-1])
}

// Load reads one snapshot version and checks the model shape
func (s *Store) Load(ctx context.Context, version int64) (*forecast.Snapshot, error) {
	key := s.Key(version)
	obj, err := s.backend.GetObject(key)
	if err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", key, err)
	}

	var snap forecast.Snapshot
	if err := json.Unmarshal(obj.Content, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", key, err)
	}
	if snap.Model == nil {
		return nil, fmt.Errorf("snapshot %s has no model", key)
	}
	if err := snap.Model.Check(); err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", key, err)
	}
	return &snap, nil
}

// Prune deletes all but the newest keep snapshots
func (s *Store) Prune(ctx context.Context, keep int) (int, error) {
	versions, err := s.Versions(ctx)
	if err != nil {
		return 0, err
	}
	if keep < 1 {
		keep = 1
	}
	removed := 0
	for len(versions)-removed > keep {
		key := s.Key(versions[removed])
		if err := s.backend.DeleteObject(key); err != nil {
			return removed, fmt.Errorf("delete snapshot %s: %w", key, err)
		}
		removed++
	}
	return removed, nil
}

func parseVersion(name string) (int64, bool) {
	if !strings.HasPrefix(name, snapshotPrefix) || !strings.HasSuffix(name, snapshotSuffix) {
		return 0, false
	}
	var v int64
	digits := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
	if _, err := fmt.Sscanf(digits, "%d", &v); err != nil {
		return 0, false
	}
	return v, true
}
