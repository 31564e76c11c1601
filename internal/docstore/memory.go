package docstore

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory 是 Store 的記憶體實作，NO_FIREBASE=1 的開發模式與測試用。
// 語意對齊 Firestore：Add 自動配 id、查詢回完整快照、
// 每次寫入會把最新快照重新推給所有相符的訂閱者。
type Memory struct {
	mu    sync.RWMutex
	colls map[string]map[string]map[string]any // path -> id -> data
	subs  map[int]*memSub
	next  int
}

type memSub struct {
	q  Query
	ch chan []Doc
}

func NewMemory() *Memory {
	return &Memory{
		colls: map[string]map[string]map[string]any{},
		subs:  map[int]*memSub{},
	}
}

func cloneData(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Memory) coll(path string) map[string]map[string]any {
	c := s.colls[path]
	if c == nil {
		c = map[string]map[string]any{}
		s.colls[path] = c
	}
	return c
}

func (s *Memory) Add(_ context.Context, path string, data map[string]any) (string, error) {
	s.mu.Lock()
	id := uuid.NewString()
	s.coll(path)[id] = cloneData(data)
	s.mu.Unlock()
	s.notify(path)
	return id, nil
}

func (s *Memory) Set(_ context.Context, path, id string, data map[string]any) error {
	s.mu.Lock()
	s.coll(path)[id] = cloneData(data)
	s.mu.Unlock()
	s.notify(path)
	return nil
}

func (s *Memory) Update(_ context.Context, path, id string, data map[string]any) error {
	s.mu.Lock()
	cur, ok := s.coll(path)[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	for k, v := range data {
		cur[k] = v
	}
	s.mu.Unlock()
	s.notify(path)
	return nil
}

func (s *Memory) Delete(_ context.Context, path, id string) error {
	s.mu.Lock()
	delete(s.coll(path), id)
	s.mu.Unlock()
	s.notify(path)
	return nil
}

func (s *Memory) Get(_ context.Context, path, id string) (Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.colls[path][id]
	if !ok {
		return Doc{}, ErrNotFound
	}
	return Doc{ID: id, Data: cloneData(data)}, nil
}

func (s *Memory) List(_ context.Context, q Query) ([]Doc, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(q), nil
}

// snapshot：過濾 + 排序 + limit。呼叫端需持有 s.mu。
func (s *Memory) snapshot(q Query) []Doc {
	out := make([]Doc, 0)
	for id, data := range s.colls[q.Path] {
		if !matches(data, q.Where) {
			continue
		}
		out = append(out, Doc{ID: id, Data: cloneData(data)})
	}
	if q.OrderBy != "" {
		sort.Slice(out, func(i, j int) bool {
			less := lessValue(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			if q.Desc {
				return !less && !equalValue(out[i].Data[q.OrderBy], out[j].Data[q.OrderBy])
			}
			return less
		})
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

func matches(data map[string]any, conds []Cond) bool {
	for _, c := range conds {
		switch c.Op {
		case "==":
			if !equalValue(data[c.Field], c.Value) {
				return false
			}
		case "array-contains":
			arr, ok := data[c.Field].([]string)
			if !ok {
				if anyArr, ok2 := data[c.Field].([]any); ok2 {
					for _, v := range anyArr {
						arr = append(arr, toString(v))
					}
				} else {
					return false
				}
			}
			found := false
			for _, v := range arr {
				if v == toString(c.Value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func equalValue(a, b any) bool {
	if at, ok := a.(time.Time); ok {
		if bt, ok2 := b.(time.Time); ok2 {
			return at.Equal(bt)
		}
		return false
	}
	return a == b
}

func lessValue(a, b any) bool {
	switch av := a.(type) {
	case time.Time:
		if bv, ok := b.(time.Time); ok {
			return av.Before(bv)
		}
	case string:
		if bv, ok := b.(string); ok {
			return strings.Compare(av, bv) < 0
		}
	case int:
		if bv, ok := b.(int); ok {
			return av < bv
		}
	case int64:
		if bv, ok := b.(int64); ok {
			return av < bv
		}
	case float64:
		if bv, ok := b.(float64); ok {
			return av < bv
		}
	}
	return false
}

// notify：path 有異動時，把最新快照重推給相符的訂閱者。
// channel 滿了就丟掉最舊的一份（訂閱者只在乎最新狀態）。
func (s *Memory) notify(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.q.Path != path {
			continue
		}
		snap := s.snapshot(sub.q)
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snap
		}
	}
}

func (s *Memory) Listen(ctx context.Context, q Query) (*Stream, error) {
	s.mu.Lock()
	id := s.next
	s.next++
	sub := &memSub{q: q, ch: make(chan []Doc, 8)}
	s.subs[id] = sub
	// 跟 Firestore 一樣：訂閱成立時先推一次目前的快照
	sub.ch <- s.snapshot(q)
	s.mu.Unlock()

	out := make(chan []Doc, 1)
	done := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case snap := <-sub.ch:
				select {
				case out <- snap:
				case <-done:
					return
				case <-ctx.Done():
					return
				}
			case <-done:
				return
			case <-ctx.Done():
				return
			}
		}
	}()

	var once sync.Once
	return &Stream{
		C: out,
		stop: func() {
			once.Do(func() {
				s.mu.Lock()
				delete(s.subs, id)
				s.mu.Unlock()
				close(done)
			})
		},
	}, nil
}
