package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/linktrim/linktrim/bot"
	"github.com/linktrim/linktrim/config"
	"github.com/linktrim/linktrim/resolver"
	"github.com/linktrim/linktrim/rewrite"
	"github.com/linktrim/linktrim/server"
	"github.com/linktrim/linktrim/stats"
)

const (
	defaultConfigFile = "./config.yaml"
	defaultLogLevel   = "info"
)

func main() {
	configFile := getEnv("CONFIG_FILE", defaultConfigFile)
	logLevel := getEnv("LOG_LEVEL", defaultLogLevel)

	var level slog.Level
	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		slog.Warn("unknown log level, using info", "level", logLevel)
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	log.Info("starting linktrim", "log_level", logLevel)

	cfg, err := config.LoadConfig(configFile)
	if err != nil {
		log.Error("failed to load config", "file", configFile, "error", err)
		os.Exit(1)
	}

	var res rewrite.Resolver
	httpResolver, err := resolver.New(cfg.Resolve)
	if err != nil {
		log.Error("failed to create resolver", "error", err)
		os.Exit(1)
	}
	res = httpResolver
	if cfg.Resolve.Retry.IsEnabled() {
		res = resolver.NewRetrier(httpResolver, cfg.Resolve.Retry)
	}

	extra := make([]*rewrite.Rule, 0, len(cfg.Rules.Extra))
	for _, r := range cfg.Rules.Extra {
		pattern, err := rewrite.CompilePattern(r.Pattern)
		if err != nil {
			log.Error("invalid extra rule", "rule", r.Name, "error", err)
			os.Exit(1)
		}
		extra = append(extra, &rewrite.Rule{
			Name:     r.Name,
			Pattern:  pattern,
			Kind:     rewrite.KindStaticTemplate,
			Template: r.Template,
		})
	}

	pipeline, err := rewrite.NewPipeline(res, rewrite.BuildCatalog(cfg.Rules.Disable, extra))
	if err != nil {
		log.Error("failed to build rewrite pipeline", "error", err)
		os.Exit(1)
	}

	var store stats.Store
	if cfg.Admin.RedisURL != "" {
		store, err = stats.NewRedisStoreFromURL(cfg.Admin.RedisURL, "")
		if err != nil {
			log.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		log.Info("redis stats store enabled")
	} else {
		store = stats.NewMemoryStore()
	}
	defer store.Close()

	b, err := bot.New(bot.Config{
		Token:        cfg.Telegram.Token,
		EnabledChats: cfg.Telegram.EnabledChats,
		SendRate:     cfg.Send.GetRate(),
		SendBurst:    cfg.Send.GetBurst(),
		Logger:       log,
	}, pipeline, store)
	if err != nil {
		log.Error("failed to create bot", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		log.Info("received shutdown signal", "signal", sig.String())
		cancel()
	}()

	if cfg.Admin.IsEnabled() {
		srv, err := server.New(pipeline, store, log, &server.Config{
			RedisURL:          cfg.Admin.RedisURL,
			RateLimitRequests: cfg.Admin.GetRateLimitRequests(),
			RateLimitWindow:   cfg.Admin.GetRateLimitWindow(),
		})
		if err != nil {
			log.Error("failed to create admin server", "error", err)
			os.Exit(1)
		}
		defer srv.Close()

		go func() {
			if err := srv.StartWithShutdown(ctx, cfg.Admin.Addr); err != nil {
				log.Error("admin server error", "error", err)
				cancel()
			}
		}()
	}

	if err := b.Run(ctx); err != nil {
		log.Error("bot stopped with error", "error", err)
		os.Exit(1)
	}

	log.Info("shutdown complete")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
