package integrationtests

import (
	"bytes"
	"context"
	"diabetes-backend/internal/storage"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/minio"
)

const (
	minioUsername = "admin"
	minioPassword = "password"

	artifactBucket = "test-artifact-bucket"
)

func setupMinioContainer(t *testing.T, ctx context.Context) string {
	minioContainer, err := minio.Run(
		ctx,
		"minio/minio:RELEASE.2024-01-16T16-07-38Z",
		minio.WithUsername(minioUsername),
		minio.WithPassword(minioPassword),
	)
	require.NoError(t, err, "Failed to start MinIO container")

	t.Cleanup(func() {
		require.NoError(t, testcontainers.TerminateContainer(minioContainer), "Failed to terminate MinIO container")
	})

	connStr, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get MinIO connection string")

	return "http://" + connStr
}

func setupS3Provider(t *testing.T, ctx context.Context) *storage.S3Provider {
	t.Helper()

	endpoint := setupMinioContainer(t, ctx)

	provider, err := storage.NewS3Provider(storage.S3ClientConfig{
		Endpoint:        endpoint,
		Region:          "us-east-1",
		AccessKeyID:     minioUsername,
		SecretAccessKey: minioPassword,
	})
	require.NoError(t, err)

	require.NoError(t, provider.CreateBucket(ctx, artifactBucket))
	return provider
}

func uploadArtifact(t *testing.T, ctx context.Context, provider *storage.S3Provider, key, content string) {
	t.Helper()
	require.NoError(t, provider.PutObject(ctx, artifactBucket, key, bytes.NewReader([]byte(content))))
}
