// cmd/server/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"local.dev/fitsocial-backend/internal/blobstore"
	"local.dev/fitsocial-backend/internal/chat"
	"local.dev/fitsocial-backend/internal/composer"
	"local.dev/fitsocial-backend/internal/config"
	"local.dev/fitsocial-backend/internal/docstore"
	"local.dev/fitsocial-backend/internal/feed"
	"local.dev/fitsocial-backend/internal/httpx"
)

func main() {
	// ======== Logging ========
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if os.Getenv("LOG_PRETTY") == "1" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}

	ctx := context.Background()
	cfg := config.Load()

	// ======== 外部服務 ========
	// NO_FIREBASE=1：整組換成記憶體文件庫 + 本機檔案，離線就能跑
	app := &httpx.AppCtx{}
	if config.NoFirebase() {
		local, err := blobstore.NewLocal(cfg.DataDir, "/uploads")
		if err != nil {
			log.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("local blobstore")
		}
		app.Docs = docstore.NewMemory()
		app.Blobs = local
		app.UploadsDir = local.Dir()
		log.Warn().Msg("NO_FIREBASE=1: using in-memory docstore and local uploads")
		if !config.NoAuth() {
			// 沒有 Firebase 就沒有 token 驗證；不開 NO_AUTH 的話所有
			// 需要身分的請求都會收到 503
			log.Warn().Msg("NO_FIREBASE=1 without NO_AUTH=1: token verification unavailable, set NO_AUTH=1 for local development")
		}
	} else {
		fb := config.NewFirebaseApp(ctx, cfg)
		app.AuthClient = config.NewAuthClient(ctx, fb)
		fsClient := config.NewFirestoreClient(ctx, fb)
		defer fsClient.Close()
		app.Docs = docstore.NewFire(fsClient)
		app.Blobs = blobstore.NewGCS(config.NewStorageBucket(ctx, fb), cfg.StorageBucket)
	}
	if config.NoAuth() {
		log.Warn().Msg("NO_AUTH=1: token verification disabled")
	}

	// ======== Services ========
	app.Users = feed.NewResolver(app.Docs)
	app.Posts = &feed.Posts{Docs: app.Docs, Blobs: app.Blobs, Users: app.Users}
	app.Foods = &feed.Foods{Docs: app.Docs, Users: app.Users}
	app.Chat = &chat.Service{Docs: app.Docs, Users: app.Users}
	app.Composer = &composer.Composer{Docs: app.Docs, Blobs: app.Blobs}

	// ======== Routes ========
	mux := http.NewServeMux()

	// 健康檢查 / metrics（不用過 auth）
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", httpx.MetricsHandler())

	// 靜態檔案（NO_FIREBASE 模式的本機上傳）
	if app.UploadsDir != "" {
		mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(app.UploadsDir))))
	}

	// 圖片上傳：量大所以掛個限流
	uploadRL := httpx.NewRateLimiter(30)
	mux.HandleFunc("/upload", httpx.WithAuth(app, httpx.WithRateLimit(uploadRL, httpx.HandleUpload(app))))

	// 貼文 / 飲食紀錄：列表公開，寫入操作在 handler 內自己掛 auth
	mux.HandleFunc("/posts", httpx.HandlePosts(app))
	mux.HandleFunc("/posts/", httpx.HandlePostDetail(app))
	mux.HandleFunc("/foods", httpx.HandleFoods(app))
	mux.HandleFunc("/foods/", httpx.HandleFoodDetail(app))

	// 聊天室
	mux.HandleFunc("/rooms", httpx.WithAuth(app, httpx.HandleRooms(app)))
	mux.HandleFunc("/rooms/", httpx.WithAuth(app, httpx.HandleRoomMessages(app)))

	// 使用者
	mux.HandleFunc("/me", httpx.WithAuth(app, httpx.HandleMe(app)))
	mux.HandleFunc("/users/", httpx.WithAuth(app, httpx.HandleUsers(app)))

	// websocket 即時訂閱
	mux.HandleFunc("/ws/feed", httpx.WithAuth(app, httpx.HandleFeedWS(app)))
	mux.HandleFunc("/ws/foods", httpx.WithAuth(app, httpx.HandleFoodsWS(app)))
	mux.HandleFunc("/ws/rooms/", httpx.WithAuth(app, httpx.HandleRoomWS(app)))

	// ======== Start server ========
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpx.CORS(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// 給 long-lived 的 websocket 一點時間收尾
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}
