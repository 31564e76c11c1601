package feed

import (
	"context"
	"sync"

	"local.dev/fitsocial-backend/internal/docstore"
	"local.dev/fitsocial-backend/internal/models"
)

// Resolver 解析 users/{uid} 的顯示資料。文件裡只存 uid，
// 每個列表都要做這個 join，所以集中在這裡並加一層快取。
type Resolver struct {
	docs docstore.Store

	mu    sync.RWMutex
	cache map[string]models.Profile
}

func NewResolver(docs docstore.Store) *Resolver {
	return &Resolver{docs: docs, cache: map[string]models.Profile{}}
}

// Profile 查不到時退回以 uid 當顯示名稱，列表不因缺 profile 而破圖。
func (r *Resolver) Profile(ctx context.Context, uid string) models.Profile {
	r.mu.RLock()
	p, ok := r.cache[uid]
	r.mu.RUnlock()
	if ok {
		return p
	}

	p = models.Profile{UID: uid, Name: uid}
	if doc, err := r.docs.Get(ctx, models.CollUsers, uid); err == nil {
		if name := str(doc.Data, "name"); name != "" {
			p.Name = name
		}
		if img := str(doc.Data, "userImg"); img != "" {
			p.UserImg = &img
		}
	}

	r.mu.Lock()
	r.cache[uid] = p
	r.mu.Unlock()
	return p
}

// Invalidate：profile 更新後清掉快取，下次解析重新讀。
func (r *Resolver) Invalidate(uid string) {
	r.mu.Lock()
	delete(r.cache, uid)
	r.mu.Unlock()
}
