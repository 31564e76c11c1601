// internal/httpx/middleware.go
package httpx

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"firebase.google.com/go/v4/auth"

	"local.dev/fitsocial-backend/internal/blobstore"
	"local.dev/fitsocial-backend/internal/chat"
	"local.dev/fitsocial-backend/internal/composer"
	"local.dev/fitsocial-backend/internal/config"
	"local.dev/fitsocial-backend/internal/docstore"
	"local.dev/fitsocial-backend/internal/feed"
	"local.dev/fitsocial-backend/internal/models"
)

type ctxKey string

const sessKey ctxKey = "session"

// AppCtx 綁所有 handler 需要的依賴
type AppCtx struct {
	AuthClient *auth.Client

	Docs     docstore.Store
	Blobs    blobstore.Store
	Posts    *feed.Posts
	Foods    *feed.Foods
	Chat     *chat.Service
	Users    *feed.Resolver
	Composer *composer.Composer

	// NO_FIREBASE 模式：本機上傳目錄（掛 /uploads 靜態路由）
	UploadsDir string
}

// currentSession 取出 middleware 放進 context 的身分；沒有就是零值。
func currentSession(r *http.Request) models.Session {
	if v := r.Context().Value(sessKey); v != nil {
		if s, ok := v.(models.Session); ok {
			return s
		}
	}
	return models.Session{}
}

// ---- NO_AUTH：Cookie 做為最後保底（每個瀏覽器固定 dev_...）----
const devUIDCookie = "DEV_UID"

func genDevUID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return "dev_" + hex.EncodeToString(b[:])
}

func devUIDFromCookie(w http.ResponseWriter, r *http.Request) string {
	if c, err := r.Cookie(devUIDCookie); err == nil && c.Value != "" {
		return c.Value
	}
	id := genDevUID()
	http.SetCookie(w, &http.Cookie{
		Name:     devUIDCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Now().Add(365 * 24 * time.Hour),
	})
	return id
}

// ---- NO_AUTH：允許 Bearer，僅解 JWT payload 取出 email/uid（*不驗簽*）----
func devClaimsFromBearer(authz string) (email, uid string) {
	raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	parts := strings.Split(raw, ".")
	if len(parts) < 2 {
		return "", ""
	}
	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return "", ""
	}
	var m map[string]any
	if err := json.Unmarshal(payload, &m); err != nil {
		return "", ""
	}
	get := func(k string) string {
		if v, ok := m[k]; ok && v != nil {
			return strings.TrimSpace(fmt.Sprintf("%v", v))
		}
		return ""
	}
	email = get("email")
	uid = get("user_id")
	if uid == "" {
		uid = get("uid")
	}
	if uid == "" {
		uid = get("sub")
	}
	return email, uid
}

func devSession(w http.ResponseWriter, r *http.Request) models.Session {
	authz := r.Header.Get("Authorization")
	switch {
	case strings.HasPrefix(authz, "Debug "):
		// Debug 直接把字串當 uid（方便本機測不同身分）
		uid := strings.TrimSpace(strings.TrimPrefix(authz, "Debug "))
		return models.Session{UID: uid}
	case strings.HasPrefix(authz, "Bearer "):
		email, uid := devClaimsFromBearer(authz)
		if uid != "" {
			return models.Session{UID: uid, Email: email}
		}
	}
	return models.Session{UID: devUIDFromCookie(w, r)}
}

// WithAuth：正式模式用 Firebase 驗簽；NO_AUTH=1 走開發保底。
// 驗證成功後把完整的 Session（不是裸 uid）放進 context。
func WithAuth(app *AppCtx, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if config.NoAuth() {
			sess := devSession(w, r)
			ctx := context.WithValue(r.Context(), sessKey, sess)
			next(w, r.WithContext(ctx))
			return
		}

		// 沒有 auth client（例如 NO_FIREBASE=1 但忘了開 NO_AUTH）：
		// 明確回 503，不能讓驗證路徑 panic
		if app.AuthClient == nil {
			writeError(w, http.StatusServiceUnavailable, "token verification unavailable")
			return
		}

		authz := r.Header.Get("Authorization")
		if !strings.HasPrefix(authz, "Bearer ") {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		idToken := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
		tok, err := app.AuthClient.VerifyIDToken(r.Context(), idToken)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		sess := models.Session{UID: tok.UID}
		if em, ok := tok.Claims["email"].(string); ok {
			sess.Email = em
		}
		if nm, ok := tok.Claims["name"].(string); ok {
			sess.Name = nm
		}
		ctx := context.WithValue(r.Context(), sessKey, sess)
		next(w, r.WithContext(ctx))
	}
}

func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// serviceError：把下層的 typed error 對應到狀態碼。錯誤一律回前端，
// 不吞進 log 了事。
func serviceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, composer.ErrEmptyContent), errors.Is(err, feed.ErrEmptyContent), errors.Is(err, chat.ErrEmptyMessage):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, composer.ErrForbidden), errors.Is(err, feed.ErrForbidden), errors.Is(err, chat.ErrNotMember):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, feed.ErrNotFound), errors.Is(err, composer.ErrNotFound), errors.Is(err, chat.ErrRoomNotFound), errors.Is(err, docstore.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, composer.ErrUploadFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
