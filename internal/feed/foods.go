package feed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"local.dev/fitsocial-backend/internal/docstore"
	"local.dev/fitsocial-backend/internal/livequery"
	"local.dev/fitsocial-backend/internal/models"
	"local.dev/fitsocial-backend/internal/view"
)

type Foods struct {
	Docs  docstore.Store
	Users *Resolver
	Now   func() time.Time // 測試用；nil 走 time.Now
}

// 公開列表：只看 PUBLIC、未軟刪除的紀錄
func foodsQuery() docstore.Query {
	return docstore.Query{
		Path: models.CollFoods,
		Where: []docstore.Cond{
			{Field: "deleteFlag", Op: "==", Value: false},
			{Field: "status", Op: "==", Value: models.StatusPublic},
		},
		OrderBy: "createdAt",
		Desc:    true,
	}
}

func (s *Foods) normalize(ctx context.Context, d docstore.Doc) (models.FoodView, error) {
	uid := str(d.Data, "creator")
	if uid == "" {
		// 更新路徑舊資料用 userId 欄位，兩個都認
		uid = str(d.Data, "userId")
	}
	if uid == "" {
		return models.FoodView{}, fmt.Errorf("food %s: missing creator", d.ID)
	}
	author := s.Users.Profile(ctx, uid)
	return models.FoodView{
		PostID:    d.ID,
		UserID:    uid,
		UserName:  author.Name,
		Avatar:    author.UserImg,
		Content:   str(d.Data, "content"),
		FoodImage: strPtr(d.Data, "foodImage"),
		Status:    str(d.Data, "status"),
		CreatedAt: ts(d.Data, "createdAt"),
		UpdatedAt: ts(d.Data, "updatedAt"),
	}, nil
}

func (s *Foods) List(ctx context.Context) ([]models.FoodView, error) {
	return livequery.Fetch(ctx, s.Docs, foodsQuery(), s.normalize)
}

func (s *Foods) Subscribe(ctx context.Context) *livequery.Subscription[models.FoodView] {
	return livequery.Subscribe(ctx, s.Docs, foodsQuery(), s.normalize)
}

func (s *Foods) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// SoftDelete 設 deleteFlag，不真的刪文件；列表查詢會把它濾掉。
func (s *Foods) SoftDelete(ctx context.Context, sess models.Session, foodID string) error {
	doc, err := s.Docs.Get(ctx, models.CollFoods, foodID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	creator := str(doc.Data, "creator")
	if creator == "" {
		creator = str(doc.Data, "userId")
	}
	if !view.CanModify(sess, creator) {
		return ErrForbidden
	}
	return s.Docs.Update(ctx, models.CollFoods, foodID, map[string]any{
		"deleteFlag": true,
		"updatedAt":  s.now(),
	})
}
