package blobstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local 是 Store 的本機目錄實作，NO_FIREBASE=1 的開發模式與測試用。
// 物件寫進 dir，URL 形如 {baseURL}/photos/xxx.jpg，由 /uploads 靜態路由提供。
type Local struct {
	dir     string
	baseURL string // 例如 "/uploads"
}

func NewLocal(dir, baseURL string) (*Local, error) {
	if err := os.MkdirAll(filepath.Join(dir, "photos"), 0o755); err != nil {
		return nil, fmt.Errorf("blobstore: mkdir %s: %w", dir, err)
	}
	return &Local{dir: dir, baseURL: strings.TrimSuffix(baseURL, "/")}, nil
}

func (l *Local) Upload(_ context.Context, filename string, r io.Reader, size int64, p Progress) (string, error) {
	obj := ObjectName(filename)
	dst := filepath.Join(l.dir, filepath.FromSlash(obj))
	out, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("blobstore: create %s: %w", dst, err)
	}
	defer out.Close()
	pr := &progressReader{r: r, total: size, p: p}
	if _, err := io.Copy(out, pr); err != nil {
		return "", fmt.Errorf("blobstore: write %s: %w", dst, err)
	}
	return l.baseURL + "/" + obj, nil
}

func (l *Local) Remove(_ context.Context, rawURL string) error {
	obj, ok := strings.CutPrefix(rawURL, l.baseURL+"/")
	if !ok || strings.Contains(obj, "..") {
		return fmt.Errorf("blobstore: url %q not under %s", rawURL, l.baseURL)
	}
	err := os.Remove(filepath.Join(l.dir, filepath.FromSlash(obj)))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Dir 給 httpx 掛靜態檔案路由用
func (l *Local) Dir() string { return l.dir }
