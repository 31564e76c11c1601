// Package docstore 包住外部文件資料庫：collection/document 定址、
// 排序查詢、變更通知訂閱。正式環境走 Firestore，開發與測試走記憶體實作。
package docstore

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("docstore: document not found")

// Doc 是一份原始文件：文件 id + 欄位內容
type Doc struct {
	ID   string
	Data map[string]any
}

// Cond 是查詢條件，Op 直接沿用 Firestore 的寫法（"==", "array-contains", ...）
type Cond struct {
	Field string
	Op    string
	Value any
}

type Query struct {
	Path    string // collection 路徑，例如 "posts" 或 "rooms/{id}/messages"
	Where   []Cond
	OrderBy string
	Desc    bool
	Limit   int
}

// Stream 是單一變更訂閱。每次遠端有變化，C 會收到該查詢的完整快照；
// 串流中斷時 C 會被關閉，重連由上層（livequery）處理。
// Close 一定要在畫面/連線收尾時呼叫，重複呼叫無害。
type Stream struct {
	C    <-chan []Doc
	stop func()
}

// NewStream 給 Store 實作（與測試替身）組一條串流；stop 可為 nil。
func NewStream(c <-chan []Doc, stop func()) *Stream {
	return &Stream{C: c, stop: stop}
}

func (s *Stream) Close() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
}

type Store interface {
	Add(ctx context.Context, path string, data map[string]any) (string, error)
	Set(ctx context.Context, path, id string, data map[string]any) error
	Update(ctx context.Context, path, id string, data map[string]any) error
	Delete(ctx context.Context, path, id string) error
	Get(ctx context.Context, path, id string) (Doc, error)
	List(ctx context.Context, q Query) ([]Doc, error)
	Listen(ctx context.Context, q Query) (*Stream, error)
}
