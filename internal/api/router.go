package api

import (
	"encoding/json"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sungho-yun/gapsim/internal/api/handlers"
	mw "github.com/sungho-yun/gapsim/internal/api/middleware"
	"github.com/sungho-yun/gapsim/internal/config"
	"github.com/sungho-yun/gapsim/internal/domain"
	"github.com/sungho-yun/gapsim/internal/embedding"
	"github.com/sungho-yun/gapsim/internal/llm"
	"github.com/sungho-yun/gapsim/internal/service"
	"github.com/sungho-yun/gapsim/internal/store"
)

// App holds the router and the run service whose background passes outlive
// individual requests.
type App struct {
	Router    *chi.Mux
	Runs      *service.RunService
	startTime time.Time
	metrics   *mw.MetricsCollector
}

func NewApp(db *pgxpool.Pool, logger *zap.Logger) *App {
	// Stores
	runStore := store.NewRunStore(db)
	personStore := store.NewPersonStore(db)
	memoryStore := store.NewMemoryStore(db)
	interactionStore := store.NewInteractionStore(db)

	// One request budget shared by every oracle call site.
	limiter := llm.NewSharedLimiter(config.OracleRPS(), config.OracleBurst())
	narrativeOracle := newOracle(config.SiteNarrative, limiter, logger)
	commandOracle := newOracle(config.SiteCommand, limiter, logger)
	generativeOracle := newOracle(config.SiteGenerative, limiter, logger)
	classifierOracle := newOracle(config.SiteClassifier, limiter, logger)
	selfEvalOracle := newOracle(config.SiteSelfEval, limiter, logger)
	observerOracle := newOracle(config.SiteObserverEval, limiter, logger)

	embeddingClient, err := embedding.NewClient(config.EmbeddingProvider(), config.EmbeddingAPIKey(), config.EmbeddingModel())
	if err != nil {
		logger.Warn("embedding client initialization failed, falling back to mock", zap.Error(err))
		embeddingClient = embedding.NewMockClient()
	} else {
		logger.Info("embedding client initialized", zap.String("provider", config.EmbeddingProvider()))
	}

	// Services
	memorySvc := service.NewMemoryService(memoryStore, logger)
	narrativeSvc := service.NewNarrativeService(narrativeOracle, logger)
	matrixSvc := service.NewMatrixService(
		interactionStore,
		commandOracle,
		selfEvalOracle,
		service.NewGenerativeAssistant(generativeOracle),
		service.NewRuleAssistant(classifierOracle),
		logger,
	)
	observeSvc := service.NewObservationService(interactionStore, observerOracle, logger)
	runSvc := service.NewRunService(
		runStore, personStore, interactionStore,
		memorySvc, narrativeSvc, matrixSvc, observeSvc,
		service.RunnerOptions{
			PersonConcurrency:       config.PersonConcurrency(),
			CircuitBreakerThreshold: config.CircuitBreakerThreshold(),
			TemplatesDir:            config.TemplatesDir(),
			DefaultParams:           defaultRunParams(),
		},
		logger,
	)
	exportSvc := service.NewExportService(runStore, personStore, memoryStore, interactionStore, logger)
	searchSvc := service.NewSearchService(interactionStore, embeddingClient, logger)

	// Handlers
	runHandler := handlers.NewRunHandler(runSvc, exportSvc)
	recordHandler := handlers.NewRecordHandler(runSvc, searchSvc)
	personHandler := handlers.NewPersonHandler(runSvc)
	templateHandler := handlers.NewTemplateHandler(config.TemplatesDir())

	r := chi.NewRouter()

	app := &App{
		Router:    r,
		Runs:      runSvc,
		startTime: time.Now(),
		metrics:   mw.NewMetricsCollector(),
	}

	// Global middleware (order matters)
	r.Use(mw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(app.metrics.Middleware)
	r.Use(mw.Logging(logger))
	r.Use(middleware.Recoverer)
	r.Use(mw.RateLimit(config.RateLimitRPS(), config.RateLimitBurst()))

	// Health and metrics (no auth)
	r.Get("/health", healthHandler(db))
	r.Get("/metrics", app.metricsHandler())

	// Authenticated routes
	r.Route("/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(config.APIKey()))

		r.Route("/runs", func(r chi.Router) {
			r.Post("/", runHandler.Create)
			r.Get("/", runHandler.List)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", runHandler.Status)
				r.Post("/start", runHandler.Start)
				r.Post("/observe", runHandler.Observe)
				r.Get("/export", runHandler.Export)
				r.Get("/records", recordHandler.ListByRun)
				r.Get("/persons", personHandler.ListByRun)
				r.Post("/embeddings", recordHandler.Backfill)
			})
		})

		r.Route("/records", func(r chi.Router) {
			r.Get("/search", recordHandler.Search)
			r.Get("/{id}", recordHandler.GetByID)
		})

		r.Route("/persons", func(r chi.Router) {
			r.Get("/{id}", personHandler.GetByID)
			r.Get("/{id}/memories", personHandler.Memories)
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", templateHandler.List)
			r.Get("/{name}", templateHandler.Get)
		})
	})

	return app
}

// NewRouter returns just the chi.Mux.
func NewRouter(db *pgxpool.Pool, logger *zap.Logger) *chi.Mux {
	return NewApp(db, logger).Router
}

// newOracle builds the oracle for one call site: the configured provider
// wrapped with the shared throttle and per-call retry. A misconfigured site
// degrades to the mock so the server still comes up.
func newOracle(site string, limiter *rate.Limiter, logger *zap.Logger) domain.Oracle {
	provider := config.OracleProviderFor(site)
	base, err := llm.NewClient(provider, config.OracleAPIKeyFor(provider), config.OracleModelFor(site))
	if err != nil {
		logger.Warn("oracle initialization failed, falling back to mock",
			zap.String("site", site),
			zap.String("provider", provider),
			zap.Error(err))
		base = llm.NewMockOracle()
	} else {
		logger.Info("oracle initialized",
			zap.String("site", site),
			zap.String("provider", provider))
	}

	throttled := llm.NewThrottledWith(base, limiter)
	return llm.NewRetrying(throttled, config.OracleMaxRetries(), config.OracleRetryBackoff(), logger)
}

func defaultRunParams() domain.RunParams {
	return domain.RunParams{
		TickMinutes:   config.TickMinutes(),
		DecayPerTick:  config.MemoryDecayPerTick(),
		DecayFloor:    config.MemoryDecayFloor(),
		GapThreshold:  config.GapThreshold(),
		BlockKeywords: config.FeasibilityBlockKeywords(),
		RecallLimit:   config.MemoryRecallLimit(),
	}
}

func healthHandler(db *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}

func (app *App) metricsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		uptime := time.Since(app.startTime)
		requests, errors := app.metrics.Snapshot()

		response := map[string]any{
			"uptime_seconds": uptime.Seconds(),
			"uptime_human":   uptime.Round(time.Second).String(),
			"request_count":  requests,
			"error_count":    errors,
			"goroutines":     runtime.NumGoroutine(),
			"memory": map[string]any{
				"alloc_mb":       float64(memStats.Alloc) / 1024 / 1024,
				"total_alloc_mb": float64(memStats.TotalAlloc) / 1024 / 1024,
				"sys_mb":         float64(memStats.Sys) / 1024 / 1024,
				"num_gc":         memStats.NumGC,
			},
			"go_version": runtime.Version(),
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(response)
	}
}

// Ensure stores and clients satisfy interfaces at compile time.
var (
	_ domain.RunStore         = (*store.RunStore)(nil)
	_ domain.PersonStore      = (*store.PersonStore)(nil)
	_ domain.MemoryStore      = (*store.MemoryStore)(nil)
	_ domain.InteractionStore = (*store.InteractionStore)(nil)
	_ domain.EmbeddingClient  = (*embedding.OpenAIClient)(nil)
	_ domain.EmbeddingClient  = (*embedding.MockClient)(nil)
	_ domain.Oracle           = (*llm.MockOracle)(nil)
	_ domain.Oracle           = (*llm.Retrying)(nil)
	_ domain.Oracle           = (*llm.Throttled)(nil)
)
