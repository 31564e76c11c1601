// Package livequery 是各列表畫面共用的同步模式：訂閱一個排序查詢，
// 每次遠端變更把完整快照正規化成 view model 後送出。
// 貼文、飲食紀錄、聊天室都走同一條路，不再分推/拉兩套。
package livequery

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"local.dev/fitsocial-backend/internal/docstore"
)

const (
	initialBackoff = time.Second
	maxBackoff     = 30 * time.Second
)

// Normalize 把一份原始文件轉成畫面形狀；回錯誤的文件會被略過。
type Normalize[T any] func(ctx context.Context, d docstore.Doc) (T, error)

// Subscription 是一個有範圍的訂閱控制代碼。C 依序收到每次變更後的
// 完整快照；Close 釋放底層 listener（收尾必須呼叫，重複呼叫無害）。
type Subscription[T any] struct {
	C <-chan []T

	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func (s *Subscription[T]) Close() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}

// Subscribe 對 q 開一條長駐訂閱。底層串流斷掉時以指數退避重連，
// 直到 ctx 結束或 Close 被呼叫。
func Subscribe[T any](ctx context.Context, st docstore.Store, q docstore.Query, norm Normalize[T]) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []T, 1)
	done := make(chan struct{})

	go func() {
		defer close(out)
		defer close(done)

		backoff := initialBackoff
		for {
			stream, err := st.Listen(ctx, q)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				log.Warn().Err(err).Str("path", q.Path).Dur("backoff", backoff).Msg("subscribe failed, retrying")
				if !sleep(ctx, backoff) {
					return
				}
				backoff = nextBackoff(backoff)
				continue
			}

			for docs := range stream.C {
				backoff = initialBackoff
				views := normalizeAll(ctx, docs, norm)
				select {
				case out <- views:
				case <-ctx.Done():
					stream.Close()
					return
				}
			}
			stream.Close()

			if ctx.Err() != nil {
				return
			}
			// 串流被遠端切斷：退避後重連
			log.Info().Str("path", q.Path).Dur("backoff", backoff).Msg("stream closed, resubscribing")
			if !sleep(ctx, backoff) {
				return
			}
			backoff = nextBackoff(backoff)
		}
	}()

	return &Subscription[T]{C: out, cancel: cancel, done: done}
}

// Fetch 是同一條正規化管線的一次性版本，給非訂閱的 HTTP GET 用。
func Fetch[T any](ctx context.Context, st docstore.Store, q docstore.Query, norm Normalize[T]) ([]T, error) {
	docs, err := st.List(ctx, q)
	if err != nil {
		return nil, err
	}
	return normalizeAll(ctx, docs, norm), nil
}

func normalizeAll[T any](ctx context.Context, docs []docstore.Doc, norm Normalize[T]) []T {
	views := make([]T, 0, len(docs))
	for _, d := range docs {
		v, err := norm(ctx, d)
		if err != nil {
			log.Warn().Err(err).Str("doc", d.ID).Msg("skip malformed document")
			continue
		}
		views = append(views, v)
	}
	return views
}

func nextBackoff(cur time.Duration) time.Duration {
	cur *= 2
	if cur > maxBackoff {
		cur = maxBackoff
	}
	return cur
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
