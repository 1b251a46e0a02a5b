// Package app provides application initialization and dependency wiring.
//
// App is the container that builds every component from configuration:
// database pool, cache, completion client, stores, and the chat service.
// Constructors receive their dependencies explicitly; nothing here is
// global.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wellora/coach/internal/cache"
	"github.com/wellora/coach/internal/chat"
	"github.com/wellora/coach/internal/config"
	"github.com/wellora/coach/internal/history"
	"github.com/wellora/coach/internal/llm"
	"github.com/wellora/coach/internal/log"
	"github.com/wellora/coach/internal/memory"
	"github.com/wellora/coach/internal/postgres"
	"github.com/wellora/coach/internal/profile"
	"github.com/wellora/coach/internal/protocol"
	"github.com/wellora/coach/internal/tasks"
)

// memoryPool is the number of stored memories considered per relevance
// query before ranking narrows them to top-k.
const memoryPool = 20

// App is the application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Pool  *pgxpool.Pool
	Cache *cache.Redis

	Client  llm.Client
	Counter *llm.TokenCounter

	History   *history.Store
	Profiles  *profile.Store
	Memories  *memory.Store
	Protocols *protocol.Store

	Typing *chat.TypingIndicator
	Tasks  *tasks.Client
	Chat   *chat.Service
}

// New builds the full application from configuration. Migrations run
// before the pool opens, so a successfully constructed App always sees a
// current schema.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := log.New(log.Config{
		Level: log.ParseLevel(cfg.Log.Level),
		JSON:  cfg.Log.JSON,
	})
	slog.SetDefault(logger)

	if err := postgres.Migrate(cfg.Postgres.URL); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	pool, err := postgres.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	redis, err := cache.NewRedis(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	client := llm.NewOpenAI(cfg.OpenAI.APIKey, cfg.OpenAI.Model, logger)
	counter := llm.NewTokenCounter(cfg.OpenAI.Model, logger)

	a := &App{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Cache:   redis,
		Client:  client,
		Counter: counter,
	}

	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// wire builds the stores and the chat service on top of the already open
// connections.
func (a *App) wire() error {
	var err error

	if a.History, err = history.NewStore(a.Pool, a.Logger); err != nil {
		return fmt.Errorf("creating history store: %w", err)
	}
	if a.Profiles, err = profile.NewStore(a.Pool, a.Logger); err != nil {
		return fmt.Errorf("creating profile store: %w", err)
	}
	if a.Memories, err = memory.NewStore(a.Pool, a.Cache, a.Logger); err != nil {
		return fmt.Errorf("creating memory store: %w", err)
	}
	if a.Protocols, err = protocol.NewStore(a.Pool, a.Cache, a.Logger); err != nil {
		return fmt.Errorf("creating protocol store: %w", err)
	}

	selector, err := protocol.NewSelector(
		a.Client, a.Config.Chat.ProtocolStrategy, a.Config.Chat.ProtocolTopK, a.Logger)
	if err != nil {
		return fmt.Errorf("creating protocol selector: %w", err)
	}

	a.Typing = chat.NewTypingIndicator(a.Cache, a.History, a.Logger)
	a.Tasks = tasks.NewClient(
		a.Config.Redis.Addr, a.Config.Redis.Password, a.Config.Redis.DB, a.Logger)

	a.Chat, err = chat.NewService(
		chat.Config{
			MaxMessageLength:   a.Config.Chat.MaxMessageLength,
			HistoryLimit:       a.Config.Chat.HistoryLimit,
			MemoryPool:         memoryPool,
			MemoryTopK:         a.Config.Chat.MemoryTopK,
			ExtractionInterval: a.Config.Chat.ExtractionInterval,
			TokenBudget:        a.Config.OpenAI.TokenBudget,
			Temperature:        a.Config.OpenAI.Temperature,
			ResponseMaxTokens:  a.Config.OpenAI.ResponseMaxTokens,
		},
		a.History,
		a.Profiles,
		profile.NewExtractor(a.Client, a.Logger),
		a.Memories,
		memory.Ranker{},
		a.Protocols,
		selector,
		a.Client,
		a.Counter,
		a.Typing,
		a.Tasks,
		a.Logger,
	)
	if err != nil {
		return fmt.Errorf("creating chat service: %w", err)
	}
	return nil
}

// SeedProtocols installs the default safety protocol set, skipping names
// that already exist.
func (a *App) SeedProtocols(ctx context.Context) (int, error) {
	return protocol.Seed(ctx, a.Protocols, a.Logger)
}

// WorkerHandler builds the background task handler over the app's stores.
// The extraction window matches the dispatch interval so each run covers
// exactly the turns since the previous one.
func (a *App) WorkerHandler() *tasks.Handler {
	extractor := memory.NewExtractor(a.Client, a.Memories, a.Logger)
	return tasks.NewHandler(a.History, extractor, a.Config.Chat.ExtractionInterval, a.Logger)
}

// Close gracefully shuts down all resources.
func (a *App) Close() error {
	a.Logger.Info("shutting down application")

	if a.Tasks != nil {
		if err := a.Tasks.Close(); err != nil {
			a.Logger.Warn("closing task client", "error", err)
		}
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn("closing cache", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	return nil
}
