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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"rsa-key-service/config"
	"rsa-key-service/internal/domain"
	"rsa-key-service/internal/handler"
	"rsa-key-service/internal/infra"
	"rsa-key-service/internal/middleware"
	"rsa-key-service/internal/repository"
	"rsa-key-service/internal/usecase"
)

func main() {
	ctx := context.Background()

	// .envファイルを読み込む（存在しない場合は無視）
	// 既存の環境変数は上書きしない
	_ = godotenv.Load()

	// 設定読み込み
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

	// トレース情報付きロガーを設定
	infra.SetupLogger(os.Stdout, cfg)

	// DB初期化
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is not set")
		os.Exit(1)
	}
	db, err := infra.NewDB(cfg.DatabaseURL, cfg)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}
	if cfg.AutoMigrate {
		if err := repository.Migrate(ctx, db); err != nil {
			slog.Error("failed to migrate database", "error", err)
			os.Exit(1)
		}
		slog.Info("database migrated")
	}

	// KMSクライアント初期化
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

	// メトリクス
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	httpMetrics, err := middleware.NewHTTPMetrics(reg)
	if err != nil {
		slog.Error("failed to init http metrics", "error", err)
		os.Exit(1)
	}

	// 鍵生成器
	generator, err := infra.NewKeyGenerator(cfg.KeyGen, reg)
	if err != nil {
		slog.Error("failed to init key generator", "error", err)
		os.Exit(1)
	}
	defaults := domain.GenerateOptions{
		Bits:           cfg.KeyGen.Bits,
		PublicExponent: cfg.KeyGen.PublicExponent,
	}
	if err := generator.ValidateParams(defaults.Bits, defaults.PublicExponent); err != nil {
		slog.Error("invalid default key parameters",
			"bits", defaults.Bits,
			"public_exponent", defaults.PublicExponent,
			"error", err,
		)
		os.Exit(1)
	}

	// DI
	repo := repository.NewKeyRepository(db)
	service := usecase.NewKeyService(repo, kmsClient, generator, defaults, cfg.KeyGen.Timeout)
	if cfg.PublicKeyCacheTTL > 0 {
		service.UsePublicKeyCache(infra.NewPublicKeyCache(cfg.PublicKeyCacheTTL))
	}
	h := handler.NewKeyHandler(service)
	router := handler.NewRouter(h, cfg, handler.RouterOptions{
		Metrics:  httpMetrics,
		Gatherer: reg,
	})

	// サーバー起動
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
		"version", cfg.Version,
		"default_bits", defaults.Bits,
		"workers", cfg.KeyGen.Workers,
	)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
