package httpx

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"local.dev/fitsocial-backend/internal/blobstore"
	"local.dev/fitsocial-backend/internal/chat"
	"local.dev/fitsocial-backend/internal/composer"
	"local.dev/fitsocial-backend/internal/docstore"
	"local.dev/fitsocial-backend/internal/feed"
	"local.dev/fitsocial-backend/internal/models"
)

// newTestApp 組一份 NO_FIREBASE 形狀的 AppCtx：記憶體文件庫 + 本機上傳
func newTestApp(t *testing.T) *AppCtx {
	t.Helper()
	t.Setenv("NO_AUTH", "1")

	mem := docstore.NewMemory()
	local, err := blobstore.NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)

	users := feed.NewResolver(mem)
	return &AppCtx{
		Docs:       mem,
		Blobs:      local,
		Users:      users,
		Posts:      &feed.Posts{Docs: mem, Blobs: local, Users: users},
		Foods:      &feed.Foods{Docs: mem, Users: users},
		Chat:       &chat.Service{Docs: mem, Users: users},
		Composer:   &composer.Composer{Docs: mem, Blobs: local},
		UploadsDir: local.Dir(),
	}
}

// do 發一個帶 Debug 身分的請求（NO_AUTH 模式下直接當 uid 用）
func do(t *testing.T, h http.HandlerFunc, method, target, uid string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, target, rd)
	if uid != "" {
		req.Header.Set("Authorization", "Debug "+uid)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func TestPostsCreateListDelete(t *testing.T) {
	app := newTestApp(t)
	posts := HandlePosts(app)
	detail := HandlePostDetail(app)

	// 建立
	rec := do(t, posts, http.MethodPost, "/posts", "alice", map[string]any{"post": "hello world"})
	require.Equal(t, http.StatusCreated, rec.Code)
	created := decode[map[string]string](t, rec)
	id := created["postId"]
	require.NotEmpty(t, id)

	// 列表（未登入也看得到）
	rec = do(t, posts, http.MethodGet, "/posts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]models.PostView](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "hello world", list[0].Content)
	assert.Equal(t, "alice", list[0].UserID)

	// 空內容 400
	rec = do(t, posts, http.MethodPost, "/posts", "alice", map[string]any{"post": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 非作者編輯 / 刪除 403
	rec = do(t, detail, http.MethodPut, "/posts/"+id, "bob", map[string]any{"post": "hijack"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = do(t, detail, http.MethodDelete, "/posts/"+id, "bob", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 作者編輯 OK
	rec = do(t, detail, http.MethodPut, "/posts/"+id, "alice", map[string]any{"post": "hello edited"})
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, posts, http.MethodGet, "/posts", "", nil)
	assert.Equal(t, "hello edited", decode[[]models.PostView](t, rec)[0].Content)

	// 作者刪除 OK，列表清空
	rec = do(t, detail, http.MethodDelete, "/posts/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, posts, http.MethodGet, "/posts", "", nil)
	assert.Empty(t, decode[[]models.PostView](t, rec))
}

func TestFoodsLifecycle(t *testing.T) {
	app := newTestApp(t)
	foods := HandleFoods(app)
	detail := HandleFoodDetail(app)

	rec := do(t, foods, http.MethodPost, "/foods", "alice", map[string]any{"content": "salad"})
	require.Equal(t, http.StatusCreated, rec.Code)
	id := decode[map[string]string](t, rec)["postId"]

	// 別人改不了
	rec = do(t, detail, http.MethodPut, "/foods/"+id, "bob", map[string]any{"content": "hijack"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = do(t, detail, http.MethodPut, "/foods/"+id, "alice", map[string]any{"content": "salad v2"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, foods, http.MethodGet, "/foods", "", nil)
	list := decode[[]models.FoodView](t, rec)
	require.Len(t, list, 1)
	assert.Equal(t, "salad v2", list[0].Content)

	// 軟刪除之後列表為空
	rec = do(t, detail, http.MethodDelete, "/foods/"+id, "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, foods, http.MethodGet, "/foods", "", nil)
	assert.Empty(t, decode[[]models.FoodView](t, rec))
}

func TestRoomsAndMessages(t *testing.T) {
	app := newTestApp(t)
	rooms := WithAuth(app, HandleRooms(app))
	messages := WithAuth(app, HandleRoomMessages(app))

	// 開房
	rec := do(t, rooms, http.MethodPost, "/rooms", "alice", map[string]any{"partnerId": "bob"})
	require.Equal(t, http.StatusCreated, rec.Code)
	room := decode[models.RoomInfo](t, rec)
	assert.Equal(t, "alice_bob", room.RoomID)

	// 不能跟自己開房
	rec = do(t, rooms, http.MethodPost, "/rooms", "alice", map[string]any{"partnerId": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// 傳訊
	rec = do(t, messages, http.MethodPost, "/rooms/"+room.RoomID+"/messages", "alice", map[string]any{"text": "Hi"})
	require.Equal(t, http.StatusCreated, rec.Code)
	msg := decode[models.MessageView](t, rec)
	assert.Equal(t, "Hi", msg.Text)

	// 非成員 403
	rec = do(t, messages, http.MethodPost, "/rooms/"+room.RoomID+"/messages", "mallory", map[string]any{"text": "hey"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// 取訊息：時間序
	rec = do(t, messages, http.MethodPost, "/rooms/"+room.RoomID+"/messages", "bob", map[string]any{"text": "Hello"})
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = do(t, messages, http.MethodGet, "/rooms/"+room.RoomID+"/messages", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	msgs := decode[[]models.MessageView](t, rec)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hi", msgs[0].Text)
	assert.Equal(t, "Hello", msgs[1].Text)

	// 房間列表帶 lastMsg 快照
	rec = do(t, rooms, http.MethodGet, "/rooms", "alice", nil)
	got := decode[[]models.RoomInfo](t, rec)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].LastMsg)
	assert.Equal(t, "Hello", got[0].LastMsg.Message)
}

func TestMeProfilePatch(t *testing.T) {
	app := newTestApp(t)
	me := WithAuth(app, HandleMe(app))
	users := WithAuth(app, HandleUsers(app))

	// 沒 profile 時退回 uid 當名字
	rec := do(t, me, http.MethodGet, "/me", "alice", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[models.Profile](t, rec).Name)

	name := "Alice"
	rec = do(t, me, http.MethodPatch, "/me", "alice", map[string]any{"name": name})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decode[models.Profile](t, rec).Name)

	// 其他人查得到公開投影
	rec = do(t, users, http.MethodGet, "/users/alice", "bob", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice", decode[models.Profile](t, rec).Name)
}

func TestUploadMultipart(t *testing.T) {
	app := newTestApp(t)
	upload := WithAuth(app, HandleUpload(app))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "dinner.png")
	require.NoError(t, err)
	// 最小可辨識的 PNG 開頭
	_, err = fw.Write([]byte("\x89PNG\r\n\x1a\n0000000000"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Debug alice")
	rec := httptest.NewRecorder()
	upload(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	url := decode[map[string]string](t, rec)["url"]
	assert.True(t, strings.HasPrefix(url, "/uploads/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"), url)
}

func TestUploadRejectsNonImage(t *testing.T) {
	app := newTestApp(t)
	upload := WithAuth(app, HandleUpload(app))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("plain text"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Debug alice")
	rec := httptest.NewRecorder()
	upload(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestWithAuthWithoutAuthClient(t *testing.T) {
	// 驗證模式但沒有 auth client（NO_FIREBASE=1 忘了開 NO_AUTH 的組合）：
	// 要乾淨地回 503，不能 panic
	t.Setenv("NO_AUTH", "")
	h := WithAuth(&AppCtx{}, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer some.jwt.token")
	rec := httptest.NewRecorder()
	require.NotPanics(t, func() { h(rec, req) })
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	// 沒帶 token 也一樣不能碰到 nil client
	req = httptest.NewRequest(http.MethodGet, "/me", nil)
	rec = httptest.NewRecorder()
	require.NotPanics(t, func() { h(rec, req) })
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFoodUpdateMissingID(t *testing.T) {
	app := newTestApp(t)
	detail := HandleFoodDetail(app)

	// 更新不存在的紀錄是呼叫端的錯：404，不是 500
	rec := do(t, detail, http.MethodPut, "/foods/no-such-id", "alice", map[string]any{"content": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRateLimit(t *testing.T) {
	app := newTestApp(t)
	// 每分鐘 2 次：burst 用完後立即 429
	limited := WithAuth(app, WithRateLimit(NewRateLimiter(2), func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	assert.Equal(t, http.StatusOK, do(t, limited, http.MethodGet, "/upload", "alice", nil).Code)
	assert.Equal(t, http.StatusOK, do(t, limited, http.MethodGet, "/upload", "alice", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, do(t, limited, http.MethodGet, "/upload", "alice", nil).Code)

	// 不同 key 不受影響
	assert.Equal(t, http.StatusOK, do(t, limited, http.MethodGet, "/upload", "bob", nil).Code)
}
