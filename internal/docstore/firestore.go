package docstore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Fire 是 Store 的 Firestore 實作。排序、過濾、變更通知全部交給
// Firestore 自己的查詢與 snapshot listener，這裡只做形狀轉換。
type Fire struct {
	c *firestore.Client
}

func NewFire(c *firestore.Client) *Fire {
	return &Fire{c: c}
}

func (f *Fire) query(q Query) firestore.Query {
	fq := f.c.Collection(q.Path).Query
	for _, w := range q.Where {
		fq = fq.Where(w.Field, w.Op, w.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Desc {
			dir = firestore.Desc
		}
		fq = fq.OrderBy(q.OrderBy, dir)
	}
	if q.Limit > 0 {
		fq = fq.Limit(q.Limit)
	}
	return fq
}

func (f *Fire) Add(ctx context.Context, path string, data map[string]any) (string, error) {
	ref, _, err := f.c.Collection(path).Add(ctx, data)
	if err != nil {
		return "", fmt.Errorf("docstore: add %s: %w", path, err)
	}
	return ref.ID, nil
}

func (f *Fire) Set(ctx context.Context, path, id string, data map[string]any) error {
	if _, err := f.c.Collection(path).Doc(id).Set(ctx, data); err != nil {
		return fmt.Errorf("docstore: set %s/%s: %w", path, id, err)
	}
	return nil
}

func (f *Fire) Update(ctx context.Context, path, id string, data map[string]any) error {
	ups := make([]firestore.Update, 0, len(data))
	for k, v := range data {
		ups = append(ups, firestore.Update{Path: k, Value: v})
	}
	if _, err := f.c.Collection(path).Doc(id).Update(ctx, ups); err != nil {
		if status.Code(err) == codes.NotFound {
			return ErrNotFound
		}
		return fmt.Errorf("docstore: update %s/%s: %w", path, id, err)
	}
	return nil
}

func (f *Fire) Delete(ctx context.Context, path, id string) error {
	if _, err := f.c.Collection(path).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("docstore: delete %s/%s: %w", path, id, err)
	}
	return nil
}

func (f *Fire) Get(ctx context.Context, path, id string) (Doc, error) {
	snap, err := f.c.Collection(path).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return Doc{}, ErrNotFound
		}
		return Doc{}, fmt.Errorf("docstore: get %s/%s: %w", path, id, err)
	}
	return Doc{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

func (f *Fire) List(ctx context.Context, q Query) ([]Doc, error) {
	it := f.query(q).Documents(ctx)
	defer it.Stop()

	out := make([]Doc, 0)
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("docstore: list %s: %w", q.Path, err)
		}
		out = append(out, Doc{ID: snap.Ref.ID, Data: snap.Data()})
	}
	return out, nil
}

func (f *Fire) Listen(ctx context.Context, q Query) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)
	it := f.query(q).Snapshots(ctx)

	ch := make(chan []Doc, 1)
	go func() {
		defer close(ch)
		for {
			snap, err := it.Next()
			if err != nil {
				if status.Code(err) != codes.Canceled {
					log.Warn().Err(err).Str("path", q.Path).Msg("snapshot stream ended")
				}
				return
			}
			docs := make([]Doc, 0, snap.Size)
			di := snap.Documents
			for {
				d, err := di.Next()
				if err == iterator.Done {
					break
				}
				if err != nil {
					log.Warn().Err(err).Str("path", q.Path).Msg("snapshot doc read failed")
					return
				}
				docs = append(docs, Doc{ID: d.Ref.ID, Data: d.Data()})
			}
			select {
			case ch <- docs:
			case <-ctx.Done():
				return
			}
		}
	}()

	return &Stream{
		C: ch,
		stop: func() {
			cancel()
			it.Stop()
		},
	}, nil
}
