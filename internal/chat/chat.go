// Package chat 實作一對一聊天：rooms/{roomId} 與其 messages 子集合。
// 訊息 append-only、以 createdAt 由新到舊取回、顯示前反轉成時間序；
// 每次送出訊息同時 upsert room 文件上的 lastMsg 快照。
package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"local.dev/fitsocial-backend/internal/docstore"
	"local.dev/fitsocial-backend/internal/feed"
	"local.dev/fitsocial-backend/internal/livequery"
	"local.dev/fitsocial-backend/internal/models"
)

var (
	ErrEmptyMessage = errors.New("chat: message text is empty")
	ErrNotMember    = errors.New("chat: not a room member")
	ErrRoomNotFound = errors.New("chat: room not found")
)

type Service struct {
	Docs  docstore.Store
	Users *feed.Resolver
	Now   func() time.Time // 測試用；nil 走 time.Now
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// RoomID 由成員組出固定的房間 id：排序後用 "_" 接起來，
// 同一對成員永遠落在同一個房間。
func RoomID(members ...string) string {
	ms := append([]string(nil), members...)
	sort.Strings(ms)
	return strings.Join(ms, "_")
}

// EnsureRoom 取出房間；不存在就建（首次傳訊的 create-or-merge 語意）。
func (s *Service) EnsureRoom(ctx context.Context, sess models.Session, partnerID string) (models.RoomInfo, error) {
	id := RoomID(sess.UID, partnerID)
	doc, err := s.Docs.Get(ctx, models.CollRooms, id)
	if err == nil {
		return roomFromDoc(doc), nil
	}
	if !errors.Is(err, docstore.ErrNotFound) {
		return models.RoomInfo{}, err
	}

	room := models.RoomInfo{
		RoomID:    id,
		Members:   []string{sess.UID, partnerID},
		CreatedAt: s.now(),
	}
	if err := s.Docs.Set(ctx, models.CollRooms, id, roomDoc(room)); err != nil {
		return models.RoomInfo{}, err
	}
	return room, nil
}

// Room 取出單一房間，呼叫者必須是成員。
func (s *Service) Room(ctx context.Context, sess models.Session, roomID string) (models.RoomInfo, error) {
	doc, err := s.Docs.Get(ctx, models.CollRooms, roomID)
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			return models.RoomInfo{}, ErrRoomNotFound
		}
		return models.RoomInfo{}, err
	}
	room := roomFromDoc(doc)
	if !contains(room.Members, sess.UID) {
		return models.RoomInfo{}, ErrNotMember
	}
	return room, nil
}

// Rooms 列出自己參與的房間，依最後訊息時間新到舊。
func (s *Service) Rooms(ctx context.Context, sess models.Session) ([]models.RoomInfo, error) {
	docs, err := s.Docs.List(ctx, docstore.Query{
		Path:  models.CollRooms,
		Where: []docstore.Cond{{Field: "members", Op: "array-contains", Value: sess.UID}},
	})
	if err != nil {
		return nil, err
	}
	out := make([]models.RoomInfo, 0, len(docs))
	for _, d := range docs {
		out = append(out, roomFromDoc(d))
	}
	sort.Slice(out, func(i, j int) bool {
		return lastActivity(out[i]).After(lastActivity(out[j]))
	})
	return out, nil
}

// Send 送出一則訊息：先 append 到 messages 子集合，成功後再
// upsert room 的 lastMsg 快照。兩步不是交易；第二步失敗會回錯誤，
// 訊息本身已寫入（快照落後一筆，下一次送訊會補正）。
func (s *Service) Send(ctx context.Context, sess models.Session, roomID, text string) (models.MessageView, error) {
	if strings.TrimSpace(text) == "" {
		return models.MessageView{}, ErrEmptyMessage
	}
	room, err := s.Room(ctx, sess, roomID)
	if err != nil {
		return models.MessageView{}, err
	}

	now := s.now()
	id, err := s.Docs.Add(ctx, models.RoomMessages(roomID), map[string]any{
		"text":      text,
		"ownerId":   sess.UID,
		"createdAt": now,
	})
	if err != nil {
		return models.MessageView{}, fmt.Errorf("chat: send: %w", err)
	}

	room.LastMsg = &models.LastMsg{Message: text, Creator: sess.UID, CreatedAt: now}
	if err := s.Docs.Set(ctx, models.CollRooms, roomID, roomDoc(room)); err != nil {
		return models.MessageView{}, fmt.Errorf("chat: update last message: %w", err)
	}

	author := s.Users.Profile(ctx, sess.UID)
	return models.MessageView{
		ID:        id,
		Text:      text,
		CreatedAt: now,
		User:      models.MessageUser{ID: sess.UID, Name: author.Name, Avatar: author.UserImg},
	}, nil
}

func messagesQuery(roomID string) docstore.Query {
	return docstore.Query{Path: models.RoomMessages(roomID), OrderBy: "createdAt", Desc: true}
}

func (s *Service) normalize(ctx context.Context, d docstore.Doc) (models.MessageView, error) {
	owner, _ := d.Data["ownerId"].(string)
	if owner == "" {
		return models.MessageView{}, fmt.Errorf("message %s: missing ownerId", d.ID)
	}
	text, _ := d.Data["text"].(string)
	created, _ := d.Data["createdAt"].(time.Time)
	p := s.Users.Profile(ctx, owner)
	return models.MessageView{
		ID:        d.ID,
		Text:      text,
		CreatedAt: created,
		User:      models.MessageUser{ID: owner, Name: p.Name, Avatar: p.UserImg},
	}, nil
}

// Messages 一次性取回（可帶 limit），反轉成時間序給畫面。
func (s *Service) Messages(ctx context.Context, sess models.Session, roomID string, limit int) ([]models.MessageView, error) {
	if _, err := s.Room(ctx, sess, roomID); err != nil {
		return nil, err
	}
	q := messagesQuery(roomID)
	q.Limit = limit
	msgs, err := livequery.Fetch(ctx, s.Docs, q, s.normalize)
	if err != nil {
		return nil, err
	}
	reverse(msgs)
	return msgs, nil
}

// Subscribe 對房間訊息開即時訂閱；每次快照已反轉成時間序。
// 回傳的 close 必須在畫面收尾時呼叫。
func (s *Service) Subscribe(ctx context.Context, sess models.Session, roomID string) (<-chan []models.MessageView, func(), error) {
	if _, err := s.Room(ctx, sess, roomID); err != nil {
		return nil, nil, err
	}
	sub := livequery.Subscribe(ctx, s.Docs, messagesQuery(roomID), s.normalize)

	out := make(chan []models.MessageView, 1)
	go func() {
		defer close(out)
		for snap := range sub.C {
			reverse(snap)
			out <- snap
		}
	}()
	return out, sub.Close, nil
}

// ===== helpers =====

func roomDoc(r models.RoomInfo) map[string]any {
	doc := map[string]any{
		"roomId":    r.RoomID,
		"members":   r.Members,
		"createdAt": r.CreatedAt,
	}
	if r.LastMsg != nil {
		doc["lastMsg"] = map[string]any{
			"message":   r.LastMsg.Message,
			"creator":   r.LastMsg.Creator,
			"createdAt": r.LastMsg.CreatedAt,
		}
	}
	return doc
}

func roomFromDoc(d docstore.Doc) models.RoomInfo {
	r := models.RoomInfo{RoomID: d.ID}
	if v, ok := d.Data["roomId"].(string); ok && v != "" {
		r.RoomID = v
	}
	switch ms := d.Data["members"].(type) {
	case []string:
		r.Members = ms
	case []any:
		for _, m := range ms {
			if s, ok := m.(string); ok {
				r.Members = append(r.Members, s)
			}
		}
	}
	if t, ok := d.Data["createdAt"].(time.Time); ok {
		r.CreatedAt = t
	}
	if lm, ok := d.Data["lastMsg"].(map[string]any); ok {
		last := models.LastMsg{}
		last.Message, _ = lm["message"].(string)
		last.Creator, _ = lm["creator"].(string)
		if t, ok := lm["createdAt"].(time.Time); ok {
			last.CreatedAt = t
		}
		r.LastMsg = &last
	}
	return r
}

func lastActivity(r models.RoomInfo) time.Time {
	if r.LastMsg != nil && !r.LastMsg.CreatedAt.IsZero() {
		return r.LastMsg.CreatedAt
	}
	return r.CreatedAt
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func reverse(msgs []models.MessageView) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
