package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/MrEthical07/sessionguard"
	"github.com/MrEthical07/sessionguard/internal/config"
	"github.com/MrEthical07/sessionguard/internal/httpapi"
	"github.com/MrEthical07/sessionguard/internal/observability"
	"github.com/MrEthical07/sessionguard/kvstore"
	"github.com/MrEthical07/sessionguard/mail"
	otelexport "github.com/MrEthical07/sessionguard/metrics/export/otel"
	"github.com/MrEthical07/sessionguard/metrics/export/prometheus"
	"github.com/MrEthical07/sessionguard/userstore"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadFile(*envFile)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, cfg.NewLogger(os.Stdout))
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	client, closeRedis, err := openRedis(cfg, logger)
	if err != nil {
		return err
	}
	defer closeRedis()

	users, err := openUserStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = users.Close() }()

	sender, err := newMailSender(cfg, logger)
	if err != nil {
		return err
	}

	builder := sessionguard.New().
		WithConfig(cfg.EngineConfig()).
		WithRedis(client).
		WithUserStore(users).
		WithMailSender(sender).
		WithLogger(logger)
	if cfg.AuditEnabled {
		builder = builder.WithAuditSink(sessionguard.NewSlogSink(logger.With("component", "audit")))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	if err := engine.Ready(ctx); err != nil {
		logger.Warn("session store not reachable at startup", "error", err)
	}

	mp, err := observability.InitMetrics(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := mp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("meter provider shutdown failed", "error", err)
		}
	}()

	exporter, err := otelexport.NewOTelExporter(mp.Meter("github.com/MrEthical07/sessionguard"), engine)
	if err != nil {
		return fmt.Errorf("register otel exporter: %w", err)
	}
	defer func() { _ = exporter.Close() }()

	trusted, err := cfg.TrustedProxyPrefixes()
	if err != nil {
		return fmt.Errorf("trusted proxies: %w", err)
	}

	srv := &http.Server{
		Addr: cfg.HTTPAddr,
		Handler: httpapi.NewRouter(httpapi.Dependencies{
			Engine:         engine,
			Logger:         logger,
			Metrics:        prometheus.NewPrometheusExporter(engine).Handler(),
			EnableOTelHTTP: cfg.OTelEndpoint != "",
			TrustedProxies: trusted,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func openRedis(cfg *config.Config, logger *slog.Logger) (redis.UniversalClient, func(), error) {
	if !cfg.EmbeddedRedis {
		client := kvstore.NewClient(cfg.RedisOptions())
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start embedded redis: %w", err)
	}
	logger.Warn("using embedded redis; sessions are lost on restart", "addr", mr.Addr())
	opts := cfg.RedisOptions()
	opts.Addrs = []string{mr.Addr()}
	opts.Password = ""
	client := kvstore.NewClient(opts)
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func openUserStore(ctx context.Context, cfg *config.Config) (*userstore.Store, error) {
	db, err := userstore.Open(cfg.DBDriver, cfg.DatabaseURL, cfg.DBDebug)
	if err != nil {
		return nil, err
	}
	users := userstore.New(db)
	if err := users.Migrate(ctx); err != nil {
		_ = users.Close()
		return nil, err
	}
	return users, nil
}

func newMailSender(cfg *config.Config, logger *slog.Logger) (sessionguard.MailSender, error) {
	if cfg.SMTPHost == "" {
		return mail.NewLogSender(logger, cfg.ResetURLBase), nil
	}
	return mail.NewSMTPSender(mail.SMTPConfig{
		Host:         cfg.SMTPHost,
		Port:         cfg.SMTPPort,
		Username:     cfg.SMTPUsername,
		Password:     cfg.SMTPPassword,
		From:         cfg.MailFrom,
		ResetURLBase: cfg.ResetURLBase,
		Timeout:      cfg.MailTimeout,
	})
}
