package config

import (
	"context"
	"os"

	"cloud.google.com/go/firestore"
	gcs "cloud.google.com/go/storage"
	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"google.golang.org/api/option"
)

type Config struct {
	Port          string
	ProjectID     string
	StorageBucket string
	DataDir       string // NO_FIREBASE 模式下本機上傳目錄的根
}

// Load 先吃 .env（沒有也沒關係），再讀環境變數。
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		Port:          os.Getenv("PORT"),
		ProjectID:     os.Getenv("FIREBASE_PROJECT_ID"),
		StorageBucket: os.Getenv("FIREBASE_STORAGE_BUCKET"),
		DataDir:       os.Getenv("DATA_DIR"),
	}
	if cfg.Port == "" {
		cfg.Port = "8088"
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "/data"
		if _, err := os.Stat(cfg.DataDir); err != nil {
			cfg.DataDir = "./data"
		}
	}
	if cfg.StorageBucket == "" && cfg.ProjectID != "" {
		cfg.StorageBucket = cfg.ProjectID + ".appspot.com"
	}
	return cfg
}

// NoAuth / NoFirebase：本機開發的逃生口。
// NO_AUTH=1 跳過 token 驗證；NO_FIREBASE=1 整組外部服務換成記憶體/本機實作。
func NoAuth() bool     { return os.Getenv("NO_AUTH") == "1" }
func NoFirebase() bool { return os.Getenv("NO_FIREBASE") == "1" }

func credentialOptions() []option.ClientOption {
	var opts []option.ClientOption
	if saJSON := os.Getenv("FIREBASE_SERVICE_ACCOUNT_JSON"); saJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(saJSON)))
	} else if cred := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); cred != "" {
		if _, err := os.Stat(cred); err != nil {
			log.Fatal().Err(err).Str("path", cred).Msg("GOOGLE_APPLICATION_CREDENTIALS not readable")
		}
		opts = append(opts, option.WithCredentialsFile(cred))
	} else if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" && os.Getenv("FIREBASE_AUTH_EMULATOR_HOST") == "" {
		log.Fatal().Msg("missing Firebase credentials: set FIREBASE_SERVICE_ACCOUNT_JSON or GOOGLE_APPLICATION_CREDENTIALS, or use the emulators / NO_FIREBASE=1")
	}
	return opts
}

// NewFirebaseApp 建 Firebase app；Firestore/Storage/Auth client 都從它長出來。
func NewFirebaseApp(ctx context.Context, cfg Config) *firebase.App {
	if cfg.ProjectID == "" {
		log.Fatal().Msg("FIREBASE_PROJECT_ID not set")
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.ProjectID,
		StorageBucket: cfg.StorageBucket,
	}, credentialOptions()...)
	if err != nil {
		log.Fatal().Err(err).Msg("firebase init")
	}
	return app
}

// Firebase Auth（NO_AUTH=1 則不啟用，回 nil）
func NewAuthClient(ctx context.Context, app *firebase.App) *auth.Client {
	if NoAuth() {
		return nil
	}
	client, err := app.Auth(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("firebase auth")
	}
	return client
}

func NewFirestoreClient(ctx context.Context, app *firebase.App) *firestore.Client {
	client, err := app.Firestore(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("firestore client")
	}
	return client
}

func NewStorageBucket(ctx context.Context, app *firebase.App) *gcs.BucketHandle {
	client, err := app.Storage(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("storage client")
	}
	bucket, err := client.DefaultBucket()
	if err != nil {
		log.Fatal().Err(err).Msg("storage default bucket")
	}
	return bucket
}
