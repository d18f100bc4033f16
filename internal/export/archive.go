package export

import (
	"context"
	"fmt"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const uploadTimeout = 2 * time.Minute

// Archiver keeps a copy of each exported report in a Cloud Storage bucket.
type Archiver struct {
	client *storage.Client
	bucket string
}

func NewArchiver(ctx context.Context, bucket string, opts ...option.ClientOption) (*Archiver, error) {
	if bucket == "" {
		return nil, fmt.Errorf("archiver: bucket is required")
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Archiver{client: client, bucket: bucket}, nil
}

// ObjectName is where a user's report is stored.
func ObjectName(uid, filename string) string {
	return path.Join("users", uid, "exports", filename)
}

// Archive uploads the report and returns its gs:// URI.
func (a *Archiver) Archive(ctx context.Context, uid string, r Report) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()

	name := ObjectName(uid, r.Filename)
	w := a.client.Bucket(a.bucket).Object(name).NewWriter(ctx)
	w.ContentType = "text/csv; charset=utf-8"
	w.ContentDisposition = fmt.Sprintf("attachment; filename=%q", r.Filename)

	if _, err := w.Write(r.Content); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write report to gcs: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("finalize upload: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", a.bucket, name), nil
}

func (a *Archiver) Close() error {
	return a.client.Close()
}
