package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"

	"kb-auditor/internal/cache"
	"kb-auditor/internal/config"
	"kb-auditor/internal/events"
	"kb-auditor/internal/kb"
	"kb-auditor/internal/llm"
	"kb-auditor/internal/logger"
	"kb-auditor/internal/provider"
	"kb-auditor/internal/workbench"
)

// Deps bundles the runtime dependencies of the server.
type Deps struct {
	Config    config.Config
	Log       *slog.Logger
	KB        kb.Store
	KBPath    string
	OpenAI    llm.TextClient // nil when OPENAI_API_KEY is unset
	Router    *provider.Router
	Workbench *workbench.Workbench
	Cache     cache.Cache
	Events    events.Publisher
}

// Close releases the cache and event connections.
func (d Deps) Close() error {
	return closeAll(d.Cache, d.Events)
}

// Build loads env, config, and shared components for the server.
func Build(ctx context.Context) (Deps, error) {
	if err := loadEnv(); err != nil {
		return Deps{}, err
	}
	cfg := config.Load()
	log := logger.New(cfg.LogLevel)

	structured, err := buildStructured(ctx, cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize Gemini: %w", err)
	}
	text, err := buildOpenAI(cfg, log)
	if err != nil {
		return Deps{}, fmt.Errorf("failed to initialize OpenAI: %w", err)
	}
	c := buildCache(cfg, log)
	pub, err := buildEvents(cfg, log)
	if err != nil {
		_ = c.Close()
		return Deps{}, fmt.Errorf("failed to initialize events: %w", err)
	}

	store := kb.NewFileStore(cfg.KBPath)
	router := &provider.Router{
		Structured: structured,
		Text:       text,
		Cache:      c,
		CacheTTL:   time.Duration(cfg.CacheTTL) * time.Second,
		Log:        log,
	}
	return Deps{
		Config:    cfg,
		Log:       log,
		KB:        store,
		KBPath:    store.Path(),
		OpenAI:    text,
		Router:    router,
		Workbench: workbench.New(store, router, pub, log, cfg.DefaultModel),
		Cache:     c,
		Events:    pub,
	}, nil
}

// CLIOptions are the command-line overrides of the CLI.
type CLIOptions struct {
	// Server is the base URL of a running server. When set, the knowledge base
	// is read and written through it and it relays plain-text provider calls.
	Server string
	Stderr io.Writer
}

// CLIDeps bundles the runtime dependencies of the CLI.
type CLIDeps struct {
	Config    config.Config
	Log       *slog.Logger
	KB        kb.Store
	Router    *provider.Router
	Workbench *workbench.Workbench
	Cache     cache.Cache
	Events    events.Publisher
}

// Close releases the cache and event connections.
func (d CLIDeps) Close() error {
	return closeAll(d.Cache, d.Events)
}

// BuildCLI loads env, config, and shared components for the CLI. Plain-text
// provider calls always go through the server relay so the OpenAI key never
// has to live on the client.
func BuildCLI(ctx context.Context, opts CLIOptions) (CLIDeps, error) {
	if err := loadEnv(); err != nil {
		return CLIDeps{}, err
	}
	cfg := config.Load()
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	log := logger.NewWithWriter(opts.Stderr, cfg.LogLevel)

	structured, err := buildStructured(ctx, cfg, log)
	if err != nil {
		return CLIDeps{}, fmt.Errorf("failed to initialize Gemini: %w", err)
	}
	relayURL := cfg.RelayURL
	var store kb.Store = kb.NewFileStore(cfg.KBPath)
	if opts.Server != "" {
		relayURL = opts.Server
		store = kb.NewHTTPStore(opts.Server)
		log.Debug("using remote knowledge base", "server", opts.Server)
	}
	c := buildCache(cfg, log)
	pub, err := buildEvents(cfg, log)
	if err != nil {
		_ = c.Close()
		return CLIDeps{}, fmt.Errorf("failed to initialize events: %w", err)
	}

	router := &provider.Router{
		Structured: structured,
		Text:       llm.NewRelayClient(relayURL),
		Cache:      c,
		CacheTTL:   time.Duration(cfg.CacheTTL) * time.Second,
		Log:        log,
	}
	return CLIDeps{
		Config:    cfg,
		Log:       log,
		KB:        store,
		Router:    router,
		Workbench: workbench.New(store, router, pub, log, cfg.DefaultModel),
		Cache:     c,
		Events:    pub,
	}, nil
}

// loadEnv reads .env when present.
func loadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load environment variables: %w", err)
	}
	return nil
}

func buildStructured(ctx context.Context, cfg config.Config, log *slog.Logger) (llm.StructuredClient, error) {
	if cfg.GeminiKey == "" {
		log.Warn("GEMINI_API_KEY is not set; gemini models are unavailable")
		return nil, nil
	}
	client, err := llm.NewGeminiClient(ctx, cfg.GeminiKey, cfg.GeminiBaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("using Gemini client")
	return client, nil
}

func buildOpenAI(cfg config.Config, log *slog.Logger) (llm.TextClient, error) {
	if cfg.OpenAIKey == "" {
		log.Warn("OPENAI_API_KEY is not set; gpt models are unavailable")
		return nil, nil
	}
	client, err := llm.NewOpenAIClient(cfg.OpenAIKey, cfg.OpenAIBaseURL)
	if err != nil {
		return nil, err
	}
	log.Info("using OpenAI client")
	return client, nil
}

func buildCache(cfg config.Config, log *slog.Logger) cache.Cache {
	switch cfg.CacheProvider {
	case "redis":
		if cfg.RedisAddr == "" {
			log.Warn("REDIS_ADDR is required when CACHE_PROVIDER=redis; caching disabled")
			return cache.NewNoOpCache()
		}
		rc, err := cache.NewRedisCache(cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			log.Warn("redis unavailable; caching disabled", "err", err)
			return cache.NewNoOpCache()
		}
		log.Info("using Redis cache", "addr", cfg.RedisAddr, "ttl_seconds", cfg.CacheTTL)
		return rc
	case "none", "":
		return cache.NewNoOpCache()
	default:
		log.Warn("invalid CACHE_PROVIDER; caching disabled", "provider", cfg.CacheProvider)
		return cache.NewNoOpCache()
	}
}

func buildEvents(cfg config.Config, log *slog.Logger) (events.Publisher, error) {
	switch cfg.EventsProvider {
	case "nats":
		if cfg.NATSURL == "" {
			return nil, fmt.Errorf("NATS_URL is required when EVENTS_PROVIDER=nats")
		}
		nc, err := nats.Connect(cfg.NATSURL, nats.Name("kb-auditor"))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to NATS: %w", err)
		}
		log.Info("using NATS events", "url", cfg.NATSURL)
		return events.NewNATS(log, nc), nil
	case "none", "":
		return events.NoOpPublisher{}, nil
	default:
		return nil, fmt.Errorf("invalid EVENTS_PROVIDER: %s (valid options: none, nats)", cfg.EventsProvider)
	}
}

func closeAll(closers ...io.Closer) error {
	var errs []error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
