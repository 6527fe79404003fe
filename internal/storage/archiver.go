package storage

import (
	"context"
	"fmt"
	"log/slog"
)

// Archiver mirrors a run's sampled frames into an object store under
// <runID>/.
type Archiver struct {
	Store  ObjectStore
	Bucket string
}

func (a *Archiver) Archive(ctx context.Context, dir, runID string) (int, error) {
	if err := a.Store.CreateBucket(ctx, a.Bucket); err != nil {
		return 0, err
	}

	prefix := runID + "/"
	if err := a.Store.UploadDir(ctx, a.Bucket, prefix, dir); err != nil {
		return 0, err
	}

	objects, err := a.Store.ListObjects(ctx, a.Bucket, prefix)
	if err != nil {
		return 0, fmt.Errorf("error verifying archive %s/%s: %w", a.Bucket, prefix, err)
	}

	slog.Info("archived frames", "bucket", a.Bucket, "prefix", prefix, "objects", len(objects))
	return len(objects), nil
}
