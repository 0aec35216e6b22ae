package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"

	"github.com/suspectuso/gpt-gateway/internal/ai"
	"github.com/suspectuso/gpt-gateway/internal/auth"
	"github.com/suspectuso/gpt-gateway/internal/config"
	"github.com/suspectuso/gpt-gateway/internal/invite"
	"github.com/suspectuso/gpt-gateway/internal/ledger"
	"github.com/suspectuso/gpt-gateway/internal/pipeline"
	"github.com/suspectuso/gpt-gateway/internal/response"
	"github.com/suspectuso/gpt-gateway/internal/storage"
	"github.com/suspectuso/gpt-gateway/internal/telegram"
	"github.com/suspectuso/gpt-gateway/internal/telemetry"
	"github.com/suspectuso/gpt-gateway/internal/typing"
)

const serviceName = "gpt-gateway"

func main() {
	// Load .env file
	envErr := godotenv.Load()

	// Load config
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	// Setup logger
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(log)

	if envErr != nil {
		log.Debug("no .env file found")
	}

	if cfg.BotToken == "" {
		log.Error("BOT_TOKEN is required")
		os.Exit(1)
	}
	if cfg.InviteSecret == "" {
		log.Warn("INVITE_SECRET is empty, invite codes are trivially forgeable")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize telemetry
	shutdown, err := telemetry.Setup(ctx, cfg.OTelEndpoint, serviceName)
	if err != nil {
		log.Error("init telemetry", "error", err)
		os.Exit(1)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdown(flushCtx); err != nil {
			log.Warn("flush telemetry", "error", err)
		}
	}()
	counters := telemetry.New(otel.GetMeterProvider(), log)

	// Initialize storage
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Error("init storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("storage initialized", "path", cfg.DBPath)

	gate := auth.NewGate(store, invite.NewCodec(cfg.InviteSecret), log)
	wallets := ledger.New(store, log)

	// Initialize AI client
	client := ai.NewClient(cfg.OpenAIKey, cfg.OpenAIBaseURL)
	sessions := ai.NewSessions(client, store, wallets, ai.Options{
		Model:            cfg.OpenAIModel,
		ImageModel:       cfg.ImageModel,
		ImageFormat:      cfg.ImageFormat,
		HistoryLimit:     cfg.HistoryLimit,
		PricePer1KTokens: cfg.PricePer1KTokens,
		PricePerImage:    cfg.PricePerImage,
	}, log)
	log.Info("ai client initialized", "model", cfg.OpenAIModel)

	// Initialize telegram bot
	router := telegram.NewRouter(log)
	bot, err := telegram.New(cfg, router, log)
	if err != nil {
		log.Error("init telegram bot", "error", err)
		os.Exit(1)
	}
	log.Info("telegram bot initialized")

	p := pipeline.New(pipeline.Deps{
		Auth:        gate,
		Transport:   bot,
		Transcriber: ai.NewTranscriber(client),
		OpenChat: func(ctx context.Context, chatID int64, user *storage.User) (pipeline.ChatState, error) {
			cs, err := sessions.ChatState(ctx, chatID, user)
			if err != nil {
				return nil, err
			}
			return cs, nil
		},
		Indicator:  typing.New(bot, cfg.TypingInterval, log),
		Dispatcher: response.NewDispatcher(bot),
		Telemetry:  counters,
	}, log)

	telegram.NewHandlers(bot, gate, wallets, store, p, counters, log).Register(router)

	if err := bot.SetCommands(ctx); err != nil {
		log.Warn("set commands", "error", err)
	}

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		log.Info("shutting down...")
		cancel()
	}()

	// Start bot polling
	log.Info("starting bot polling...")
	bot.Start(ctx)
}
