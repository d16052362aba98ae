package artifact

import (
	"context"
	"diabetes-backend/internal/storage"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

var (
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrArtifactCorrupt  = errors.New("artifact corrupt")
)

// Loader fetches artifacts from the local filesystem, or from S3 for
// s3://bucket/key locations. S3 artifacts are downloaded to cacheDir first.
type Loader struct {
	local    storage.Provider
	s3       storage.Provider
	cacheDir string
}

func NewLoader(s3 storage.Provider, cacheDir string) *Loader {
	return &Loader{
		local:    storage.NewLocalProvider(""),
		s3:       s3,
		cacheDir: cacheDir,
	}
}

func (l *Loader) fetch(ctx context.Context, location string) ([]byte, error) {
	loc, err := storage.ParseLocation(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrArtifactNotFound, err)
	}

	path := loc.Key
	if loc.IsS3() {
		if l.s3 == nil {
			return nil, fmt.Errorf("%w: no s3 provider configured for %s", ErrArtifactNotFound, loc)
		}
		path = filepath.Join(l.cacheDir, loc.Bucket, loc.Key)
		if err := l.s3.DownloadObject(ctx, loc.Bucket, loc.Key, path); err != nil {
			if errors.Is(err, storage.ErrObjectNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, loc)
			}
			return nil, fmt.Errorf("error downloading artifact %s: %w", loc, err)
		}
	}

	data, err := l.local.GetObject(ctx, "", path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			cwd, _ := os.Getwd()
			return nil, fmt.Errorf("%w: %s not found in %s", ErrArtifactNotFound, path, cwd)
		}
		return nil, fmt.Errorf("error reading artifact %s: %w", path, err)
	}
	return data, nil
}

func load[T any](ctx context.Context, l *Loader, location string, decode func([]byte) (T, error)) (T, error) {
	var zero T

	data, err := l.fetch(ctx, location)
	if err != nil {
		return zero, err
	}

	value, err := decode(data)
	if err != nil {
		return zero, fmt.Errorf("%w: %s: %w", ErrArtifactCorrupt, location, err)
	}

	slog.Info("loaded artifact", "location", location, "bytes", len(data))
	return value, nil
}

// LoadRequired fetches and decodes an artifact that the process cannot run
// without. Errors wrap ErrArtifactNotFound or ErrArtifactCorrupt.
func LoadRequired[T any](ctx context.Context, l *Loader, location string, decode func([]byte) (T, error)) (T, error) {
	value, err := load(ctx, l, location, decode)
	if err != nil {
		slog.Error("failed to load artifact", "location", location, "error", err)
	}
	return value, err
}

// LoadOptional is LoadRequired for artifacts the process can run without.
// Missing or corrupt artifacts are logged and reported as absent (ok is
// false). An empty location means the artifact is not configured.
func LoadOptional[T any](ctx context.Context, l *Loader, location string, decode func([]byte) (T, error)) (value T, ok bool) {
	if location == "" {
		slog.Info("optional artifact not configured, skipping")
		return value, false
	}

	value, err := load(ctx, l, location, decode)
	if err != nil {
		slog.Warn("optional artifact unavailable, continuing without it", "location", location, "error", err)
		var zero T
		return zero, false
	}
	return value, true
}
