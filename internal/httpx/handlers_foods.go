package httpx

import (
	"encoding/json"
	"net/http"
	"strings"

	"local.dev/fitsocial-backend/internal/composer"
)

// ---- /foods：GET 列表、POST 新增 ----
func HandleFoods(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			foods, err := app.Foods.List(r.Context())
			if err != nil {
				serviceError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, foods)

		case http.MethodPost:
			WithAuth(app, func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Content   string  `json:"content"`
					FoodImage *string `json:"foodImage,omitempty"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, "invalid json")
					return
				}
				id, err := app.Composer.SubmitFood(r.Context(), currentSession(r), composer.Draft{
					Content:  req.Content,
					ImageURL: req.FoodImage,
				}, "")
				if err != nil {
					serviceError(w, err)
					return
				}
				writeJSON(w, http.StatusCreated, map[string]string{"postId": id})
			})(w, r)

		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
	}
}

// ---- /foods/{id}：PUT 更新（編輯畫面帶 item 回來）、DELETE 軟刪除 ----
func HandleFoodDetail(app *AppCtx) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/foods/")
		if id == "" || strings.Contains(id, "/") {
			http.NotFound(w, r)
			return
		}

		switch r.Method {
		case http.MethodPut:
			WithAuth(app, func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					Content   string  `json:"content"`
					FoodImage *string `json:"foodImage,omitempty"`
				}
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					writeError(w, http.StatusBadRequest, "invalid json")
					return
				}
				_, err := app.Composer.SubmitFood(r.Context(), currentSession(r), composer.Draft{
					Content:  req.Content,
					ImageURL: req.FoodImage,
				}, id)
				if err != nil {
					serviceError(w, err)
					return
				}
				writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
			})(w, r)

		case http.MethodDelete:
			WithAuth(app, func(w http.ResponseWriter, r *http.Request) {
				if err := app.Foods.SoftDelete(r.Context(), currentSession(r), id); err != nil {
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
