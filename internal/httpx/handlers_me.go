package httpx

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"local.dev/fitsocial-backend/internal/docstore"
	"local.dev/fitsocial-backend/internal/models"
)

// ---- /me：GET 讀自己的 profile、PATCH 更新 ----
func HandleMe(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess := currentSession(r)
		switch r.Method {
		case http.MethodGet:
			writeJSON(w, http.StatusOK, app.Users.Profile(r.Context(), sess.UID))

		case http.MethodPatch:
			var in struct {
				Name    *string `json:"name"`
				UserImg *string `json:"userImg"`
				About   *string `json:"about"`
			}
			if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
				writeError(w, http.StatusBadRequest, "invalid json")
				return
			}
			// 只覆蓋有提供的欄位
			patch := map[string]any{"uid": sess.UID}
			if in.Name != nil && strings.TrimSpace(*in.Name) != "" {
				patch["name"] = strings.TrimSpace(*in.Name)
			}
			if in.UserImg != nil {
				patch["userImg"] = *in.UserImg
			}
			if in.About != nil {
				patch["about"] = *in.About
			}
			err := app.Docs.Update(r.Context(), models.CollUsers, sess.UID, patch)
			if errors.Is(err, docstore.ErrNotFound) {
				err = app.Docs.Set(r.Context(), models.CollUsers, sess.UID, patch)
			}
			if err != nil {
				serviceError(w, err)
				return
			}
			app.Users.Invalidate(sess.UID)
			writeJSON(w, http.StatusOK, app.Users.Profile(r.Context(), sess.UID))

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// ---- /users/{id}：GET 公開投影 ----
func HandleUsers(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		uid := strings.TrimPrefix(r.URL.Path, "/users/")
		if uid == "" || strings.Contains(uid, "/") {
			http.NotFound(w, r)
			return
		}
		writeJSON(w, http.StatusOK, app.Users.Profile(r.Context(), uid))
	}
}
