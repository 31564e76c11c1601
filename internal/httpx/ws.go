package httpx

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// websocket 即時橋接：前端掛上 /ws/...，每次遠端資料變更
// 就把該列表的完整快照推下去。訂閱的生命週期綁在連線上，
// 連線收掉就一定會退訂。

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	// 與 CORS 同樣全開（app 客戶端，不靠 Origin 防護）
	CheckOrigin: func(*http.Request) bool { return true },
}

type wsEnvelope struct {
	Type    string `json:"type"` // "snapshot"
	Topic   string `json:"topic"`
	Payload any    `json:"payload"`
}

const (
	wsWriteWait    = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

// serveSnapshots：把 subscription channel 的快照寫進 websocket，
// 直到連線斷或訂閱結束。回傳時呼叫端負責 close()。
func serveSnapshots[T any](conn *websocket.Conn, topic string, ch <-chan []T, cancel context.CancelFunc) {
	liveSubscriptions.Inc()
	defer liveSubscriptions.Dec()

	// 讀取端只為了偵測關閉
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(wsEnvelope{Type: "snapshot", Topic: topic, Payload: snap}); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// GET /ws/feed — 貼文列表的即時訂閱
func HandleFeedWS(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		sub := app.Posts.Subscribe(ctx)
		defer sub.Close()

		serveSnapshots(conn, "posts", sub.C, cancel)
	}
}

// GET /ws/foods — 飲食紀錄列表的即時訂閱
func HandleFoodsWS(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		sub := app.Foods.Subscribe(ctx)
		defer sub.Close()

		serveSnapshots(conn, "foods", sub.C, cancel)
	}
}

// GET /ws/rooms/{id} — 聊天室訊息的即時訂閱（成員限定）
func HandleRoomWS(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := strings.TrimPrefix(r.URL.Path, "/ws/rooms/")
		if roomID == "" || strings.Contains(roomID, "/") {
			http.NotFound(w, r)
			return
		}
		sess := currentSession(r)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()
		ch, closeSub, err := app.Chat.Subscribe(ctx, sess, roomID)
		if err != nil {
			serviceError(w, err)
			return
		}
		defer closeSub()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Debug().Err(err).Msg("ws upgrade failed")
			return
		}
		defer conn.Close()

		serveSnapshots(conn, "rooms/"+roomID, ch, cancel)
	}
}
