package httpx

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

// GET /rooms ；POST /rooms（create-or-merge，body 帶 partnerId）
func HandleRooms(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := currentSession(r)

		switch r.Method {
		case http.MethodGet:
			rooms, err := app.Chat.Rooms(r.Context(), sess)
			if err != nil {
				serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, rooms)

		case http.MethodPost:
			var in struct {
				PartnerID string `json:"partnerId"`
			}
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json")
				return
			}
			partner := strings.TrimSpace(in.PartnerID)
			if partner == "" || partner == sess.UID {
				writeError(w, http.StatusBadRequest, "partnerId is required")
				return
			}
			room, err := app.Chat.EnsureRoom(r.Context(), sess, partner)
			if err != nil {
				serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, room)

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// GET /rooms/{id}/messages ；POST /rooms/{id}/messages
func HandleRoomMessages(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := currentSession(r)
		path := strings.TrimPrefix(r.URL.Path, "/rooms/")
		if path == "" {
			http.NotFound(w, r)
			return
		}
		parts := strings.Split(path, "/")
		if len(parts) != 2 || parts[1] != "messages" {
			http.NotFound(w, r)
			return
		}
		roomID := parts[0]

		switch r.Method {
		case http.MethodGet:
			limit := 0
			if s := r.URL.Query().Get("limit"); s != "" {
				if n, err := strconv.Atoi(s); err == nil && n > 0 {
					limit = n
				}
			}
			msgs, err := app.Chat.Messages(r.Context(), sess, roomID, limit)
			if err != nil {
				serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, msgs)

		case http.MethodPost:
			var in struct {
				Text string `json:"text"`
			}
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json")
				return
			}
			msg, err := app.Chat.Send(r.Context(), sess, roomID, in.Text)
			if err != nil {
				serviceError(w, err)
				return
			}
			messagesSent.Inc()
			writeJSON(w, http.StatusCreated, msg)

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}
