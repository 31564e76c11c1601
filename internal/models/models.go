package models

import "time"

// 集合路徑（Firestore 的固定慣例）
const (
	CollPosts = "posts"
	CollFoods = "foods"
	CollRooms = "rooms"
	CollUsers = "users"
)

// rooms/{roomId}/messages 子集合
func RoomMessages(roomID string) string {
	return CollRooms + "/" + roomID + "/messages"
}

// Session 是已驗證的使用者身分。取代舊版在 context 放裸 uid 的做法：
// 所有需要身分的流程都明確收這個值。
type Session struct {
	UID   string `json:"uid"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Profile 是 users/{uid} 的公開投影。貼文/訊息不內嵌作者資料，
// 顯示端用 uid 另外解析。
type Profile struct {
	UID     string  `json:"uid" firestore:"uid"`
	Name    string  `json:"name" firestore:"name"`
	UserImg *string `json:"userImg" firestore:"userImg"`
	About   *string `json:"about,omitempty" firestore:"about,omitempty"`
}

// ===== View models（畫面用的正規化形狀）=====

type PostView struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Avatar    *string   `json:"avatar,omitempty"`
	Content   string    `json:"content"`
	ImageURL  *string   `json:"imageUrl,omitempty"`
	Likes     int       `json:"like"`
	Comments  int       `json:"comment"`
	CreatedAt time.Time `json:"createdAt"`
}

// 飲食紀錄的發佈狀態
const (
	StatusPublic  = "PUBLIC"
	StatusPrivate = "PRIVATE"
)

type FoodView struct {
	PostID    string    `json:"postId"`
	UserID    string    `json:"userId"`
	UserName  string    `json:"userName"`
	Avatar    *string   `json:"avatar,omitempty"`
	Content   string    `json:"content"`
	FoodImage *string   `json:"foodImage,omitempty"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// LastMsg 是 room 文件上反正規化的「最後一則訊息」快照
type LastMsg struct {
	Message   string    `json:"message" firestore:"message"`
	Creator   string    `json:"creator" firestore:"creator"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
}

type RoomInfo struct {
	RoomID    string    `json:"roomId" firestore:"roomId"`
	Members   []string  `json:"members" firestore:"members"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	LastMsg   *LastMsg  `json:"lastMsg,omitempty" firestore:"lastMsg,omitempty"`
}

// MessageUser / MessageView 對齊聊天畫面的 bubble 形狀
type MessageUser struct {
	ID     string  `json:"_id"`
	Name   string  `json:"name"`
	Avatar *string `json:"avatar,omitempty"`
}

type MessageView struct {
	ID        string      `json:"_id"`
	Text      string      `json:"text"`
	CreatedAt time.Time   `json:"createdAt"`
	User      MessageUser `json:"user"`
}
