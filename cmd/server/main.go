// Package main はAPIサーバーのエントリポイント。
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"wiener-keygen-service/config"
	"wiener-keygen-service/internal/entropy"
	"wiener-keygen-service/internal/handler"
	"wiener-keygen-service/internal/infra"
	"wiener-keygen-service/internal/keygen"
	"wiener-keygen-service/internal/repository"
	"wiener-keygen-service/internal/usecase"
	"wiener-keygen-service/migrations"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	_ = godotenv.Load()

	cfg := config.Load()

	// トレーサー初期化（ロガー設定の前に実行）
	tp, err := infra.InitTracer(ctx, cfg)
	if err != nil {
		slog.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	if tp != nil {
		defer func() {
			if err := tp.Shutdown(ctx); err != nil {
				slog.Error("failed to shutdown tracer", "error", err)
			}
		}()
	}

	infra.SetupLogger(os.Stdout, cfg)

	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg.DatabaseURL, cfg)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}

	// SQLiteはローカル実行用なので起動時にスキーマを作る
	if infra.IsSQLite(cfg.DatabaseURL) {
		migrator := usecase.NewMigrationService(repository.NewMigrationRepository(db), migrations.FS)
		if _, err := migrator.ApplyMigrations(ctx); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
	}

	kmsClient, err := infra.NewKMSClient(ctx, cfg.KMSKeyName)
	if err != nil {
		slog.Error("failed to init KMS client", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := kmsClient.Close(); closeErr != nil {
			slog.Error("failed to close KMS client", "error", closeErr)
		}
	}()

	// DI
	gen := keygen.New(entropy.Default(), cfg.MillerRabinRounds, keygen.Config{
		EnforceWienerBound: cfg.EnforceWienerBound,
		AttemptFactor:      cfg.AttemptFactor,
		MaxPairAttempts:    keygen.DefaultConfig().MaxPairAttempts,
	})
	repo := repository.NewKeyPairRepository(db)
	service := usecase.NewKeyPairService(gen, repo, kmsClient, usecase.ServiceConfig{
		DefaultBits:  cfg.DefaultKeyBits,
		BatchWorkers: cfg.BatchWorkers,
		MaxBatchSize: cfg.MaxBatchSize,
	})
	h := handler.NewKeyPairHandler(service)
	router := handler.NewRouter(h, cfg)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
		<-sigCh

		slog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("starting server",
		"port", cfg.Port,
		"default_bits", cfg.DefaultKeyBits,
		"enforce_wiener_bound", cfg.EnforceWienerBound,
	)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
