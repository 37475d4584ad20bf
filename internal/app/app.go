// Package app はサブコマンドの解析と依存関係のワイヤリングを行う。
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/despesas/internal/auth"
	"github.com/hitoshi/despesas/internal/billing"
	"github.com/hitoshi/despesas/internal/config"
	"github.com/hitoshi/despesas/internal/database"
	"github.com/hitoshi/despesas/internal/expense"
	"github.com/hitoshi/despesas/internal/handler"
	"github.com/hitoshi/despesas/internal/logger"
	"github.com/hitoshi/despesas/internal/metrics"
	"github.com/hitoshi/despesas/internal/middleware"
	"github.com/hitoshi/despesas/internal/receipt"
	"github.com/hitoshi/despesas/internal/repository"
	"github.com/hitoshi/despesas/internal/security"
	"github.com/hitoshi/despesas/internal/user"
	"github.com/hitoshi/despesas/internal/worker/cleanup"
)

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envと環境変数から設定を読み込む
	if err := config.LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定のログレベルで再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd, known := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	if !known {
		slog.Warn("unknown command, starting server", slog.String("command", args[0]))
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("identity_provider", cfg.IdentityProvider),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandCleanup:
		return runCleanup(ctx, cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(ctx, cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// ストレージと全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. ストレージ（PostgreSQL + インメモリフォールバック）
	store, err := openStorage(ctx, cfg, collector)
	if err != nil {
		return err
	}
	defer store.Close()

	// 3. IdP
	idp, err := newIdentityProvider(cfg)
	if err != nil {
		return err
	}

	// 4. 領収書ストレージ
	objects, err := newObjectStore(ctx, cfg)
	if err != nil {
		return err
	}

	// 5. ドメインサービスの初期化
	sanitizer := security.NewTextSanitizer()
	authService := auth.NewService(idp, store.users, store.sessions,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge}, collector)
	expenseService := expense.NewService(store.expenses, sanitizer)
	billingService := billing.NewService(store.billing, sanitizer)
	userService := user.NewService(store.users)
	receiptService := receipt.NewService(objects, security.NewURLGuard(cfg.UploadFetchTimeout),
		cfg.UploadMaxBytes, collector)

	// 6. ルーターの構築
	// RATE_LIMIT_* はreq/min単位
	rateLimiter := middleware.NewRateLimiter(
		middleware.RateLimiterConfigPerMinute(cfg.RateLimitGeneral, cfg.RateLimitLogin))
	defer rateLimiter.Stop()

	csrfConfig := middleware.CSRFConfig{
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
		MaxAge:       cfg.SessionMaxAge,
	}

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		SessionFinder:     store.sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TrustedProxies:    cfg.TrustedProxies,
		RateLimiter:       rateLimiter,
		CSRFEnabled:       cfg.CSRFEnabled,
		CSRFConfig:        csrfConfig,
		HSTS:              cfg.CookieSecure,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),
		Storage:           store.health,
		StaticDir:         cfg.StaticDir,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
		},

		UserService:    userService,
		ExpenseService: expenseService,
		StatsService:   expenseService,
		BillingService: billingService,
		UploadService:  receiptService,
	})

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
			slog.String("storage", store.health.Storage()),
			slog.Bool("upload_enabled", receiptService.Enabled()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// newIdentityProvider は設定に応じたIdPを生成する。
func newIdentityProvider(cfg *config.Config) (auth.IdentityProvider, error) {
	switch cfg.IdentityProvider {
	case config.IdentityProviderLocal:
		p, err := auth.NewLocalProvider(cfg.LocalIdentitiesPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load local identities: %w", err)
		}
		slog.Warn("using local identity provider; not intended for production",
			slog.String("path", cfg.LocalIdentitiesPath))
		return p, nil
	default:
		return auth.NewGoTrueProvider(auth.GoTrueConfig{
			URL:        cfg.GoTrueURL,
			ServiceKey: cfg.GoTrueServiceKey,
			JWTSecret:  cfg.GoTrueJWTSecret,
		}), nil
	}
}

// newObjectStore はS3互換ストレージを生成する。
// 認証情報が未設定の場合はnilを返し、アップロードは無効になる。
func newObjectStore(ctx context.Context, cfg *config.Config) (receipt.ObjectStore, error) {
	if !cfg.UploadEnabled() {
		slog.Warn("object storage credentials are not set; receipt upload disabled")
		return nil, nil
	}

	s3Store, err := receipt.NewS3Store(ctx, receipt.S3Config{
		Endpoint:      cfg.S3Endpoint,
		Region:        cfg.S3Region,
		Bucket:        cfg.S3Bucket,
		AccessKey:     cfg.S3AccessKey,
		SecretKey:     cfg.S3SecretKey,
		PublicBaseURL: cfg.S3PublicBaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to configure object storage: %w", err)
	}

	// バケット作成に失敗しても、既存バケットへの書き込みは可能な場合があるため起動は続ける
	if err := s3Store.EnsureBucket(ctx); err != nil {
		slog.Warn("failed to ensure receipt bucket", slog.String("error", err.Error()))
	}
	return s3Store, nil
}

// runCleanup は期限切れセッションを1回削除する。
func runCleanup(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Ping(ctx, db, pingTimeout); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	job := cleanup.NewJob(repository.NewPostgresSessionRepo(db), slog.Default())
	_, err = job.Run(ctx)
	return err
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	res, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed",
		slog.Uint64("version", uint64(res.Version)),
		slog.Bool("applied", res.Applied),
	)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	target := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(target)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
