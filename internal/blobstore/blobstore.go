// Package blobstore 包住外部物件儲存：圖片上傳（含進度回報）、
// URL 解析與刪除。正式環境走 Cloud Storage，開發模式走本機目錄。
package blobstore

import (
	"context"
	"io"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Progress 回報上傳進度（已傳輸 bytes / 總 bytes；總量未知時 total 為 0）
type Progress func(transferred, total int64)

type Store interface {
	// Upload 以原始檔名推導物件名稱，回傳可公開讀取的 URL。
	Upload(ctx context.Context, filename string, r io.Reader, size int64, p Progress) (string, error)
	// Remove 以先前回傳的 URL 刪除物件。物件不存在不算錯。
	Remove(ctx context.Context, url string) error
}

// ObjectName 依固定慣例產生物件名稱：photos/{去副檔名檔名}{unixMillis}.{副檔名}
// 時間戳避免同名檔案互相覆蓋。
func ObjectName(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)
	if name == "" {
		name = "img"
	}
	name = sanitize(name)
	return "photos/" + name + strconv.FormatInt(time.Now().UnixMilli(), 10) + ext
}

// 檔名白名單過濾，其他字元一律換成 '-'
func sanitize(base string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '_' || r == '.' ||
			(r >= '0' && r <= '9') || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			return r
		}
		return '-'
	}, base)
}

// progressReader 邊讀邊回報進度
type progressReader struct {
	r           io.Reader
	total       int64
	transferred int64
	p           Progress
}

func (pr *progressReader) Read(b []byte) (int, error) {
	n, err := pr.r.Read(b)
	if n > 0 {
		pr.transferred += int64(n)
		if pr.p != nil {
			pr.p(pr.transferred, pr.total)
		}
	}
	return n, err
}
