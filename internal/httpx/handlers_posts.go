package httpx

import (
	"encoding/json"
	"net/http"
	"strings"

	"local.dev/fitsocial-backend/internal/composer"
)

// ---- /posts：GET 列表、POST 發文 ----
func HandlePosts(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			posts, err := app.Posts.List(r.Context())
			if err != nil {
				serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, posts)

		case http.MethodPost:
			WithAuth(app, func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Post    string  `json:"post"`
					PostImg *string `json:"postImg,omitempty"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, "invalid json")
					return
				}
				sess := currentSession(r)
				id, err := app.Composer.SubmitPost(r.Context(), sess, composer.Draft{
					Content:  req.Post,
					ImageURL: req.PostImg,
				})
				if err != nil {
					serviceError(w, err)
					return
				}
				postsCreated.Inc()
				writeJSON(w, http.StatusCreated, map[string]string{"postId": id})
			})(w, r)

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// ---- /posts/{id}：DELETE（owner 限定，連同圖片一起清）----
func HandlePostDetail(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/posts/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}

		switch r.Method {
		case http.MethodPut:
			WithAuth(app, func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Post    string  `json:"post"`
					PostImg *string `json:"postImg,omitempty"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, "invalid json")
					return
				}
				if err := app.Posts.Edit(r.Context(), currentSession(r), id, req.Post, req.PostImg); err != nil {
					serviceError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
			})(w, r)

		case http.MethodDelete:
			WithAuth(app, func(w http.ResponseWriter, r *http.Request) {
				if err := app.Posts.Delete(r.Context(), currentSession(r), id); err != nil {
					serviceError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
			})(w, r)

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}
