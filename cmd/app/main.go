package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"brain-orchestrator/internal/config"
	"brain-orchestrator/internal/domain/model"
	"brain-orchestrator/internal/domain/ports/adapter"
	"brain-orchestrator/internal/handler"
	aiAdapters "brain-orchestrator/internal/infra/adapters/ai"
	tele "brain-orchestrator/internal/infra/adapters/telegram"
	pg "brain-orchestrator/internal/infra/db/postgres"
	"brain-orchestrator/internal/infra/incident"
	"brain-orchestrator/internal/infra/logging"
	"brain-orchestrator/internal/infra/metrics"
	red "brain-orchestrator/internal/infra/redis"
	"brain-orchestrator/internal/infra/web"
	"brain-orchestrator/internal/usecase"
	"brain-orchestrator/internal/worker"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, echo handler)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	goalRepo := pg.NewGoalRepo(pool)
	if err := goalRepo.EnsureSchema(ctx); err != nil {
		log.Fatalf("postgres schema: %v", err)
	}

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer func() { _ = redisClient.Close() }()
	queue := red.NewJobQueue(redisClient, cfg.Queue.Name)
	counters := red.NewGoalCounters(redisClient)
	outbox := red.NewWebOutbox(redisClient, cfg.Web.OutboxSize)

	// ---- Reasoning adapter (OpenAI -> Gemini by key presence) ----
	var ai adapter.ReasoningAdapter
	if cfg.AI.OpenAIKey != "" {
		ai, err = aiAdapters.NewOpenAIAdapter(cfg.AI.OpenAIKey, cfg.AI.OpenAIBaseURL, cfg.AI.Temperature)
		if err != nil {
			log.Fatalf("openai adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.RescueModel).Msg("reasoning adapter: OpenAI")
	} else {
		ai, err = aiAdapters.NewGeminiAdapter(ctx, cfg.AI.GeminiKey, cfg.AI.GeminiURL, cfg.AI.Temperature)
		if err != nil {
			log.Fatalf("gemini adapter: %v", err)
		}
		logger.Info().Str("model", cfg.AI.RescueModel).Msg("reasoning adapter: Gemini")
	}
	ai = aiAdapters.NewLimitedAI(ai, cfg.AI.ConcurrentLimit)

	// ---- Use cases ----
	incidents := incident.NewFileStore(cfg.Incident.Dir)
	goals := usecase.NewGoalTracker(goalRepo, counters, logger)
	rescue := usecase.NewRescue(ai, incidents, cfg.AI.RescueModel, cfg.AI.PromptBudget, cfg.AI.MinConfidence, logger)

	// ---- Handlers ----
	registry := handler.NewRegistry(handler.NewRescueHandler(rescue, logger))
	if cfg.Runtime.Dev {
		if err := registry.Register(echoHandler()); err != nil {
			log.Fatalf("register echo handler: %v", err)
		}
	}

	// ---- Delivery ----
	deliverers := []adapter.Deliverer{outbox}
	if cfg.Bot.Token != "" {
		bot, err := tele.NewRealBotDeliverer(cfg.Bot.Token)
		if err != nil {
			log.Fatalf("telegram: %v", err)
		}
		deliverers = append(deliverers, bot)
	} else {
		logger.Warn().Msg("bot.token not set; telegram delivery disabled")
		deliverers = append(deliverers, tele.NewNoOpBotDeliverer())
	}

	// ---- Worker pool ----
	w := worker.New(queue, queue, registry, goals, deliverers, worker.Options{
		MaxRetries:     cfg.Queue.MaxRetries,
		DequeueTimeout: cfg.Queue.DequeueTimeout,
		ProcessingTTL:  cfg.Queue.ProcessingTTL,
	}, logger)
	go w.Start(ctx, cfg.Queue.Workers)
	logger.Info().Int("workers", cfg.Queue.Workers).Str("queue", cfg.Queue.Name).Msg("worker pool started")

	// ---- Web surface ----
	srv := web.NewServer(outbox, goals, incidents, cfg.Web.JWTSecret, cfg.Web.Port, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("web server stopped")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("web server shutdown")
	}
}

// echoHandler is a dev-only stand-in agent so the pipeline can be exercised
// end to end without any real agent code.
func echoHandler() handler.Handler {
	return handler.Func{
		HandlerName: "echo",
		Fn: func(_ context.Context, payload map[string]interface{}) (*model.AgentResponse, error) {
			text, _ := payload[model.PayloadText].(string)
			if strings.Contains(strings.ToLower(text), "fail") {
				return &model.AgentResponse{Success: false, Error: "echo handler asked to fail"}, nil
			}
			return &model.AgentResponse{Success: true, Output: fmt.Sprintf("echo: %s", text)}, nil
		},
	}
}
