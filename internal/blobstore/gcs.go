package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
)

const gcsPublicHost = "https://storage.googleapis.com/"

// GCS 是 Store 的 Cloud Storage 實作（Firebase 預設 bucket）。
type GCS struct {
	bucket *storage.BucketHandle
	name   string // bucket 名稱，組公開 URL 用
}

func NewGCS(bucket *storage.BucketHandle, name string) *GCS {
	return &GCS{bucket: bucket, name: name}
}

func (g *GCS) Upload(ctx context.Context, filename string, r io.Reader, size int64, p Progress) (string, error) {
	obj := ObjectName(filename)
	w := g.bucket.Object(obj).NewWriter(ctx)
	pr := &progressReader{r: r, total: size, p: p}
	if _, err := io.Copy(w, pr); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("blobstore: upload %s: %w", obj, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("blobstore: upload %s: %w", obj, err)
	}
	return gcsPublicHost + g.name + "/" + obj, nil
}

func (g *GCS) Remove(ctx context.Context, rawURL string) error {
	obj, err := g.objectFromURL(rawURL)
	if err != nil {
		return err
	}
	if err := g.bucket.Object(obj).Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return fmt.Errorf("blobstore: remove %s: %w", obj, err)
	}
	return nil
}

// objectFromURL 把公開 URL 還原成物件路徑
func (g *GCS) objectFromURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("blobstore: bad url %q: %w", rawURL, err)
	}
	prefix := "/" + g.name + "/"
	if !strings.HasPrefix(u.Path, prefix) {
		return "", fmt.Errorf("blobstore: url %q not in bucket %s", rawURL, g.name)
	}
	return strings.TrimPrefix(u.Path, prefix), nil
}
