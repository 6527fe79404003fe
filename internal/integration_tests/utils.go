package integrationtests

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/minio"
)

const (
	minioUsername = "admin"
	minioPassword = "password"
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
		err := minioContainer.Terminate(context.Background())
		require.NoError(t, err, "Failed to terminate MinIO container")
	})

	connStr, err := minioContainer.ConnectionString(ctx)
	require.NoError(t, err, "Failed to get MinIO connection string")

	return "http://" + connStr
}

// writeFrames fills a fresh directory with fake frame files and returns it
// along with the bytes written per name.
func writeFrames(t *testing.T, names ...string) (string, map[string]int64) {
	t.Helper()
	dir := t.TempDir()
	sizes := make(map[string]int64, len(names))
	for i, name := range names {
		data := make([]byte, 100+i)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
		sizes[name] = int64(len(data))
	}
	return dir, sizes
}
