package docstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seed(t *testing.T, mem *Memory, path string, docs ...map[string]any) []string {
	t.Helper()
	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		id, err := mem.Add(context.Background(), path, d)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func at(h int) time.Time { return time.Date(2026, 1, 1, h, 0, 0, 0, time.UTC) }

func TestMemoryCRUD(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()

	id, err := mem.Add(ctx, "items", map[string]any{"name": "a"})
	require.NoError(t, err)

	doc, err := mem.Get(ctx, "items", id)
	require.NoError(t, err)
	assert.Equal(t, "a", doc.Data["name"])

	require.NoError(t, mem.Update(ctx, "items", id, map[string]any{"name": "b"}))
	doc, err = mem.Get(ctx, "items", id)
	require.NoError(t, err)
	assert.Equal(t, "b", doc.Data["name"])

	// Update 不存在的文件回 ErrNotFound；Set 則是 upsert
	require.ErrorIs(t, mem.Update(ctx, "items", "nope", map[string]any{}), ErrNotFound)
	require.NoError(t, mem.Set(ctx, "items", "fixed", map[string]any{"name": "c"}))

	require.NoError(t, mem.Delete(ctx, "items", id))
	_, err = mem.Get(ctx, "items", id)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryGetReturnsCopy(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	id, err := mem.Add(ctx, "items", map[string]any{"n": 1})
	require.NoError(t, err)

	doc, err := mem.Get(ctx, "items", id)
	require.NoError(t, err)
	doc.Data["n"] = 99

	// 改回傳值不會髒到儲存的資料
	again, err := mem.Get(ctx, "items", id)
	require.NoError(t, err)
	assert.Equal(t, 1, again.Data["n"])
}

func TestMemoryListOrderAndLimit(t *testing.T) {
	mem := NewMemory()
	ids := seed(t, mem, "posts",
		map[string]any{"title": "old", "createdAt": at(1)},
		map[string]any{"title": "mid", "createdAt": at(2)},
		map[string]any{"title": "new", "createdAt": at(3)},
	)
	_ = ids

	docs, err := mem.List(context.Background(), Query{Path: "posts", OrderBy: "createdAt", Desc: true})
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, "new", docs[0].Data["title"])
	assert.Equal(t, "old", docs[2].Data["title"])

	docs, err = mem.List(context.Background(), Query{Path: "posts", OrderBy: "createdAt", Desc: true, Limit: 2})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "new", docs[0].Data["title"])
	assert.Equal(t, "mid", docs[1].Data["title"])

	docs, err = mem.List(context.Background(), Query{Path: "posts", OrderBy: "createdAt"})
	require.NoError(t, err)
	assert.Equal(t, "old", docs[0].Data["title"])
}

func TestMemoryWhereFilters(t *testing.T) {
	mem := NewMemory()
	seed(t, mem, "foods",
		map[string]any{"status": "PUBLIC", "deleteFlag": false},
		map[string]any{"status": "PUBLIC", "deleteFlag": true},
		map[string]any{"status": "PRIVATE", "deleteFlag": false},
	)

	docs, err := mem.List(context.Background(), Query{
		Path: "foods",
		Where: []Cond{
			{Field: "status", Op: "==", Value: "PUBLIC"},
			{Field: "deleteFlag", Op: "==", Value: false},
		},
	})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "PUBLIC", docs[0].Data["status"])
	assert.Equal(t, false, docs[0].Data["deleteFlag"])
}

func TestMemoryArrayContains(t *testing.T) {
	mem := NewMemory()
	seed(t, mem, "rooms",
		map[string]any{"members": []string{"alice", "bob"}},
		map[string]any{"members": []string{"bob", "carol"}},
		map[string]any{"members": []any{"alice", "dave"}},
	)

	docs, err := mem.List(context.Background(), Query{
		Path:  "rooms",
		Where: []Cond{{Field: "members", Op: "array-contains", Value: "alice"}},
	})
	require.NoError(t, err)
	assert.Len(t, docs, 2)

	docs, err = mem.List(context.Background(), Query{
		Path:  "rooms",
		Where: []Cond{{Field: "members", Op: "array-contains", Value: "mallory"}},
	})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestMemoryListenSnapshots(t *testing.T) {
	mem := NewMemory()
	ctx := context.Background()
	seed(t, mem, "posts", map[string]any{"title": "first", "createdAt": at(1)})

	stream, err := mem.Listen(ctx, Query{Path: "posts", OrderBy: "createdAt", Desc: true})
	require.NoError(t, err)
	defer stream.Close()

	// 訂閱成立先推目前快照
	snap := recvDocs(t, stream.C)
	require.Len(t, snap, 1)
	assert.Equal(t, "first", snap[0].Data["title"])

	seed(t, mem, "posts", map[string]any{"title": "second", "createdAt": at(2)})
	snap = recvDocsLen(t, stream.C, 2)
	assert.Equal(t, "second", snap[0].Data["title"])

	// 別的 path 異動不會打進來（快照長度仍是 2）
	seed(t, mem, "other", map[string]any{"x": 1})
	seed(t, mem, "posts", map[string]any{"title": "third", "createdAt": at(3)})
	snap = recvDocsLen(t, stream.C, 3)
	assert.Equal(t, "third", snap[0].Data["title"])
}

func TestMemoryListenCloseIdempotent(t *testing.T) {
	mem := NewMemory()
	stream, err := mem.Listen(context.Background(), Query{Path: "posts"})
	require.NoError(t, err)

	stream.Close()
	stream.Close()

	// 關閉之後的寫入不會 panic，訂閱表也清乾淨
	seed(t, mem, "posts", map[string]any{"title": "after"})
}

func recvDocs(t *testing.T, ch <-chan []Doc) []Doc {
	t.Helper()
	select {
	case snap := <-ch:
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return nil
	}
}

func recvDocsLen(t *testing.T, ch <-chan []Doc, n int) []Doc {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case snap := <-ch:
			if len(snap) >= n {
				return snap
			}
		case <-deadline:
			t.Fatalf("no snapshot with %d docs", n)
			return nil
		}
	}
}
