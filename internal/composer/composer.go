// Package composer 是發文/編輯流程：收文字與（可選的）一張圖片，
// 先上傳圖片、拿到 URL 後才寫文件。兩步不是交易，但順序固定，
// 而且上傳失敗就整筆中止，不會寫出指向不存在圖片的文件。
package composer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"local.dev/fitsocial-backend/internal/blobstore"
	"local.dev/fitsocial-backend/internal/docstore"
	"local.dev/fitsocial-backend/internal/models"
	"local.dev/fitsocial-backend/internal/view"
)

var (
	// 內容空白：本地擋下，不碰網路
	ErrEmptyContent = errors.New("composer: content is empty")
	ErrUploadFailed = errors.New("composer: image upload failed")
	ErrPersistFail  = errors.New("composer: persist failed")
	ErrNotFound     = errors.New("composer: item not found")
	ErrForbidden    = errors.New("composer: not the item owner")
)

// Draft 是一次提交的輸入。ImagePath 指本機檔案（會走上傳）；
// ImageURL 則是前端已上傳好的 URL，兩者擇一。
type Draft struct {
	Content    string
	ImagePath  string
	ImageURL   *string
	OnProgress blobstore.Progress
}

type Composer struct {
	Docs  docstore.Store
	Blobs blobstore.Store
	Now   func() time.Time // 測試可注入；nil 用 time.Now
}

func (c *Composer) now() time.Time {
	if c.Now != nil {
		return c.Now().UTC()
	}
	return time.Now().UTC()
}

// resolveImage：有本機圖片就先上傳，完成（或失敗）之後才會有文件寫入。
func (c *Composer) resolveImage(ctx context.Context, d Draft) (*string, error) {
	if d.ImagePath == "" {
		return d.ImageURL, nil
	}
	f, err := os.Open(d.ImagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	defer f.Close()
	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}
	url, err := c.Blobs.Upload(ctx, filepath.Base(d.ImagePath), f, size, d.OnProgress)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUploadFailed, err)
	}
	return &url, nil
}

// 文件欄位存字串；沒有圖片就是空字串，讀取端把空字串當沒有。
func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// 寫文件失敗時，補償刪掉剛上傳的圖片（best effort），避免孤兒 blob。
func (c *Composer) compensate(ctx context.Context, d Draft, url *string) {
	if d.ImagePath == "" || url == nil {
		return
	}
	if err := c.Blobs.Remove(ctx, *url); err != nil {
		log.Warn().Err(err).Str("url", *url).Msg("orphan blob cleanup failed")
	}
}

// SubmitPost 建立一篇貼文，回傳文件 id。
func (c *Composer) SubmitPost(ctx context.Context, sess models.Session, d Draft) (string, error) {
	if strings.TrimSpace(d.Content) == "" {
		return "", ErrEmptyContent
	}
	imageURL, err := c.resolveImage(ctx, d)
	if err != nil {
		return "", err
	}
	doc := map[string]any{
		"userId":    sess.UID,
		"post":      d.Content,
		"postImg":   deref(imageURL),
		"likes":     0,
		"comments":  0,
		"createdAt": c.now(),
	}
	id, err := c.Docs.Add(ctx, models.CollPosts, doc)
	if err != nil {
		c.compensate(ctx, d, imageURL)
		return "", fmt.Errorf("%w: %v", ErrPersistFail, err)
	}
	return id, nil
}

// SubmitFood 建立或更新一筆飲食紀錄。existingID 非空字串時走更新路徑
// （對應編輯畫面帶 item 進來的情況），只有建立者本人可以更新。
func (c *Composer) SubmitFood(ctx context.Context, sess models.Session, d Draft, existingID string) (string, error) {
	if strings.TrimSpace(d.Content) == "" {
		return "", ErrEmptyContent
	}
	imageURL, err := c.resolveImage(ctx, d)
	if err != nil {
		return "", err
	}
	now := c.now()

	if existingID != "" {
		cur, err := c.Docs.Get(ctx, models.CollFoods, existingID)
		if err != nil {
			c.compensate(ctx, d, imageURL)
			// 找不到是呼叫端的問題，不能混進 persist 失敗裡變 500
			if errors.Is(err, docstore.ErrNotFound) {
				return "", ErrNotFound
			}
			return "", fmt.Errorf("%w: %v", ErrPersistFail, err)
		}
		creator, _ := cur.Data["creator"].(string)
		if !view.CanModify(sess, creator) {
			c.compensate(ctx, d, imageURL)
			return "", ErrForbidden
		}
		patch := map[string]any{
			"content":   d.Content,
			"foodImage": deref(imageURL),
			"updatedAt": now,
		}
		if err := c.Docs.Update(ctx, models.CollFoods, existingID, patch); err != nil {
			c.compensate(ctx, d, imageURL)
			return "", fmt.Errorf("%w: %v", ErrPersistFail, err)
		}
		return existingID, nil
	}

	doc := map[string]any{
		"creator":    sess.UID,
		"content":    d.Content,
		"foodImage":  deref(imageURL),
		"deleteFlag": false,
		"status":     models.StatusPublic,
		"createdAt":  now,
		"updatedAt":  now,
	}
	id, err := c.Docs.Add(ctx, models.CollFoods, doc)
	if err != nil {
		c.compensate(ctx, d, imageURL)
		return "", fmt.Errorf("%w: %v", ErrPersistFail, err)
	}
	return id, nil
}
