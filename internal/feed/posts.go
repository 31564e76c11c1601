// Package feed 實作貼文與飲食紀錄的列表同步：訂閱排序查詢、
// 把原始文件正規化成 view model、處理 owner 限定的刪除。
package feed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"local.dev/fitsocial-backend/internal/blobstore"
	"local.dev/fitsocial-backend/internal/docstore"
	"local.dev/fitsocial-backend/internal/livequery"
	"local.dev/fitsocial-backend/internal/models"
	"local.dev/fitsocial-backend/internal/view"
)

var (
	ErrNotFound     = errors.New("feed: item not found")
	ErrForbidden    = errors.New("feed: not the item owner")
	ErrEmptyContent = errors.New("feed: content is empty")
)

type Posts struct {
	Docs  docstore.Store
	Blobs blobstore.Store
	Users *Resolver
}

func postsQuery() docstore.Query {
	return docstore.Query{Path: models.CollPosts, OrderBy: "createdAt", Desc: true}
}

func (s *Posts) normalize(ctx context.Context, d docstore.Doc) (models.PostView, error) {
	uid := str(d.Data, "userId")
	if uid == "" {
		return models.PostView{}, fmt.Errorf("post %s: missing userId", d.ID)
	}
	author := s.Users.Profile(ctx, uid)
	return models.PostView{
		PostID:    d.ID,
		UserID:    uid,
		UserName:  author.Name,
		Avatar:    author.UserImg,
		Content:   str(d.Data, "post"),
		ImageURL:  strPtr(d.Data, "postImg"),
		Likes:     num(d.Data, "likes"),
		Comments:  num(d.Data, "comments"),
		CreatedAt: ts(d.Data, "createdAt"),
	}, nil
}

// List 一次性讀取（HTTP GET 用），新到舊。
func (s *Posts) List(ctx context.Context) ([]models.PostView, error) {
	return livequery.Fetch(ctx, s.Docs, postsQuery(), s.normalize)
}

// Subscribe 開一條即時訂閱，每次變更收到完整列表。
func (s *Posts) Subscribe(ctx context.Context) *livequery.Subscription[models.PostView] {
	return livequery.Subscribe(ctx, s.Docs, postsQuery(), s.normalize)
}

// Edit 只有作者本人可改。imageURL 非 nil 時一併換圖；
// 換掉或清空的舊圖順手刪除。
func (s *Posts) Edit(ctx context.Context, sess models.Session, postID, content string, imageURL *string) error {
	if strings.TrimSpace(content) == "" {
		return ErrEmptyContent
	}
	doc, err := s.Docs.Get(ctx, models.CollPosts, postID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !view.CanModify(sess, str(doc.Data, "userId")) {
		return ErrForbidden
	}

	patch := map[string]any{"post": content}
	if imageURL != nil {
		patch["postImg"] = *imageURL
		if old := str(doc.Data, "postImg"); old != "" && old != *imageURL {
			if err := s.Blobs.Remove(ctx, old); err != nil {
				log.Warn().Err(err).Str("post", postID).Msg("replaced image delete failed")
			}
		}
	}
	return s.Docs.Update(ctx, models.CollPosts, postID, patch)
}

// Delete 只有作者本人可刪。先刪圖片再刪文件；圖片已不存在不擋流程。
func (s *Posts) Delete(ctx context.Context, sess models.Session, postID string) error {
	doc, err := s.Docs.Get(ctx, models.CollPosts, postID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	if !view.CanModify(sess, str(doc.Data, "userId")) {
		return ErrForbidden
	}
	if img := str(doc.Data, "postImg"); img != "" {
		if err := s.Blobs.Remove(ctx, img); err != nil {
			log.Warn().Err(err).Str("post", postID).Msg("post image delete failed")
		}
	}
	return s.Docs.Delete(ctx, models.CollPosts, postID)
}
