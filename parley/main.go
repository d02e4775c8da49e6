package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"parley/parley/config"
	"parley/parley/controllers"
	"parley/parley/routes"
	"parley/parley/services/auth"
	"parley/parley/services/llm"
	"parley/parley/services/retention"
	"parley/parley/sources/psql"
	"parley/parley/sources/psql/dao"
	"parley/parley/sources/storage"
	"parley/parley/utils/logging"
)

func main() {
	os.Exit(run())
}

// run returns the exit code after its deferred cleanup has finished.
func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		return 1
	}
	if err := logging.InitLogger(cfg.LogDir); err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		return 1
	}
	defer logging.Sync()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := psql.NewDatabase(ctx, cfg.DSN())
	if err != nil {
		logging.ErrorLogger.Error("database connection error", zap.Error(err))
		return 1
	}
	defer db.Close()

	transcripts := dao.NewTranscriptDAO(db.DB)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenTTL)
	gateway := llm.NewCompletionClient(llm.Options{
		APIKey:  cfg.LLMAPIKey,
		BaseURL: cfg.LLMBaseURL,
		Model:   cfg.LLMModel,
		Timeout: cfg.LLMTimeout,
	})
	if cfg.LLMAPIKey == "" {
		logging.AppLogger.Warn("NEBIUS_API_KEY is empty, completions will fail")
	}

	var authCtrl *controllers.AuthController
	if cfg.UpstreamVerificationEnabled() {
		verifier, err := auth.NewFirebaseVerifier(ctx, cfg.FirebaseProjectID, cfg.FirebaseJWKSURL)
		if err != nil {
			logging.ErrorLogger.Error("firebase key set error", zap.Error(err))
			return 1
		}
		defer verifier.Close()
		authCtrl = controllers.NewAuthController(tokens, verifier)
	} else {
		logging.AppLogger.Warn("FIREBASE_PROJECT_ID not set, client supplied identities are trusted")
		authCtrl = controllers.NewAuthController(tokens, nil)
	}

	var archiver retention.Archiver
	if cfg.ArchiveEnabled() {
		minioClient, err := storage.NewMinIOClient(ctx, cfg)
		if err != nil {
			logging.ErrorLogger.Error("minio connection error", zap.Error(err))
			return 1
		}
		archiver = minioClient
	}
	sweeper := retention.NewSweeper(transcripts, archiver, cfg.RetentionPeriod)
	if err := sweeper.Start(cfg.RetentionSchedule); err != nil {
		logging.ErrorLogger.Error("retention sweeper error", zap.Error(err))
		return 1
	}
	defer sweeper.Stop()

	sqlDB, err := db.DB.DB()
	if err != nil {
		logging.ErrorLogger.Error("database handle error", zap.Error(err))
		return 1
	}

	r := routes.NewRouter(cfg, routes.Handlers{
		Auth:   authCtrl,
		Chat:   controllers.NewChatController(transcripts, gateway),
		Health: controllers.NewHealthController(sqlDB),
		Tokens: tokens,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	if err := serve(srv, sigCh); err != nil {
		logging.ErrorLogger.Error("server listen error", zap.Error(err))
		return 1
	}
	return 0
}

// serve runs srv until stop fires or ListenAndServe fails, then shuts it down.
// It returns the listen error, if any.
func serve(srv *http.Server, stop <-chan os.Signal) error {
	serveErr := make(chan error, 1)
	go func() {
		logging.AppLogger.Info("server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serveErr <- err
		}
	}()

	var listenErr error
	select {
	case <-stop:
	case listenErr = <-serveErr:
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.ErrorLogger.Error("server shutdown error", zap.Error(err))
	}
	logging.AppLogger.Info("server shutdown complete")
	return listenErr
}
