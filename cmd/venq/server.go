package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/mlukasik/venq/internal/agent"
	"github.com/mlukasik/venq/internal/api"
	"github.com/mlukasik/venq/internal/config"
	"github.com/mlukasik/venq/internal/fusion"
	"github.com/mlukasik/venq/internal/gate"
	"github.com/mlukasik/venq/internal/intent"
	"github.com/mlukasik/venq/internal/llm"
	"github.com/mlukasik/venq/internal/memory"
	"github.com/mlukasik/venq/internal/storage"
	"github.com/mlukasik/venq/internal/summarize"
	"github.com/mlukasik/venq/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the venq server (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		stdio, _ := cmd.Flags().GetBool("stdio")
		return runServer(stdio)
	},
}

func init() {
	serveCmd.Flags().Bool("stdio", false, "also serve the JSON-RPC protocol on stdin/stdout")
}

func runServer(stdio bool) error {
	// A local .env is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "warning: loading .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	llmClient := llm.NewClient(llm.Config{
		APIKey:     cfg.LLM.APIKey,
		BaseURL:    cfg.LLM.BaseURL,
		ChatModel:  cfg.LLM.ChatModel,
		EmbedModel: cfg.LLM.EmbedModel,
	})

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	shortTerm := memory.NewRedisMemory(rdb)
	feedback := memory.NewRedisFeedback(rdb)

	pool, err := memory.OpenPostgres(ctx, cfg.Postgres.URL)
	if err != nil {
		return fmt.Errorf("connecting to postgres: %w", err)
	}
	defer pool.Close()

	recall := memory.NewPGVectorRecall(pool, llmClient, llmClient)
	if err := recall.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("preparing pgvector schema: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer store.Close()

	extractor := intent.NewExtractor(llmClient)
	fieldGate := gate.New(extractor, gate.NewMerger(shortTerm), shortTerm)

	generator := tools.NewGenerator(llmClient)
	executor := tools.NewExecutor(pool)
	fallback := tools.NewFallback()
	limiter := tools.NewRateLimiter(cfg.Agent.RateLimit, time.Duration(cfg.Agent.RateWindowSeconds)*time.Second)
	cache := tools.NewQueryCache(store)
	audit := tools.NewAuditLogger(store)

	registry := tools.NewRegistry(
		generator,
		executor,
		fallback,
		limiter,
		cache,
		audit,
		tools.NewValidator(),
		tools.NewResponder(),
		tools.NewExplainer(llmClient),
		tools.NewSchemaInspector(pool),
		tools.NewTableSampler(pool),
		tools.NewMemoryQuery(shortTerm),
	)

	summaries := summarize.NewWorker(recall, 2*time.Minute)
	go summaries.Run(ctx)

	ag := agent.New(agent.Deps{
		LLM:                   llmClient,
		Gate:                  fieldGate,
		Fusion:                fusion.NewBuilder(recall, feedback),
		Registry:              registry,
		Generator:             generator,
		Executor:              executor,
		Fallback:              fallback,
		Limiter:               limiter,
		Cache:                 cache,
		Audit:                 audit,
		ShortTerm:             shortTerm,
		Slots:                 shortTerm,
		Recall:                recall,
		Feedback:              feedback,
		Observer:              summaries,
		RestoreFieldsOnDelete: cfg.Agent.RestoreFieldsOnDelete,
	})

	if stdio {
		stdioSrv := api.NewStdioServer(ag)
		go func() {
			if err := stdioSrv.Serve(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
				slog.Error("stdio server error", "error", err)
			}
		}()
		slog.Info("stdio transport started")
	}

	handler := api.NewHandler(api.Deps{Agent: ag, Registry: registry})
	addr := fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
		BaseContext: func(_ net.Listener) context.Context {
			return ctx
		},
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("venq listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
