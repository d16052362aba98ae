package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrObjectNotFound = errors.New("object not found")

// Provider is the read side of an object store, as used by the artifact
// loader. The concrete providers also implement CreateBucket and PutObject
// for publishing artifacts.
type Provider interface {
	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	DownloadObject(ctx context.Context, bucket, key, filename string) error
}

const s3Scheme = "s3://"

// Location identifies an artifact either on the local filesystem (Bucket is
// empty and Key is the path) or in an S3 bucket.
type Location struct {
	Bucket string
	Key    string
}

func (l Location) IsS3() bool {
	return l.Bucket != ""
}

func (l Location) String() string {
	if l.IsS3() {
		return s3Scheme + l.Bucket + "/" + l.Key
	}
	return l.Key
}

func ParseLocation(loc string) (Location, error) {
	if !strings.HasPrefix(loc, s3Scheme) {
		if loc == "" {
			return Location{}, errors.New("location is empty")
		}
		return Location{Key: loc}, nil
	}

	bucket, key, ok := strings.Cut(strings.TrimPrefix(loc, s3Scheme), "/")
	if !ok || bucket == "" || key == "" {
		return Location{}, fmt.Errorf("invalid s3 location '%s', expected s3://bucket/key", loc)
	}
	return Location{Bucket: bucket, Key: key}, nil
}
