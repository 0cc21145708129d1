// Package server provides the HTTP API service for promptdock.
package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/promptdock/internal/config"
	gormdb "github.com/thebtf/promptdock/internal/db/gorm"
	"github.com/thebtf/promptdock/internal/db/rediscache"
	"github.com/thebtf/promptdock/internal/folders"
	"github.com/thebtf/promptdock/internal/onboarding"
	"github.com/thebtf/promptdock/internal/recommend"
	"github.com/thebtf/promptdock/internal/watcher"
)

// Service configuration constants
const (
	// DefaultHTTPTimeout is the default timeout for HTTP requests.
	DefaultHTTPTimeout = 30 * time.Second

	// MaxRequestBodySize caps request payloads; onboarding answers are tiny.
	MaxRequestBodySize = 1 << 20
)

// pinStore is the metadata access the handlers need.
type pinStore interface {
	GetPinnedFolderIDs(ctx context.Context, userID string) ([]int64, error)
	MergePinnedFolderIDs(ctx context.Context, userID string, ids []int64) error
	RemovePinnedFolderID(ctx context.Context, userID string, folderID int64) error
	SaveOnboardingAnswers(ctx context.Context, userID string, a gormdb.OnboardingAnswers) error
}

// folderLister is the catalog access the folder handlers need.
type folderLister interface {
	ListForUser(ctx context.Context, userID string) ([]folders.Folder, error)
	ExistingIDs(ctx context.Context, ids []int64) ([]int64, error)
}

// usageSource provides the raw data for the statistics endpoint.
type usageSource interface {
	GetUsageData(ctx context.Context, userID string) (*gormdb.UsageData, error)
}

// onboardingService is the assignment/preview orchestrator.
type onboardingService interface {
	ProcessCompletion(ctx context.Context, userID string, a onboarding.Answers, loc string) onboarding.CompletionResult
	Preview(ctx context.Context, a onboarding.Answers, loc string) onboarding.PreviewResult
}

// Service is the main API service orchestrator.
type Service struct {
	// Version of the server binary
	version string

	// Configuration
	config *config.Config

	// Database
	store    *gormdb.Store
	pins     pinStore
	listing  folderLister
	usage    usageSource
	redis    *redis.Client
	cache    *rediscache.Catalog

	// Domain services
	onboarding onboardingService

	// HTTP server
	router    *chi.Mux
	server    *http.Server
	startTime time.Time

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Initialization state (for deferred init)
	ready     atomic.Bool
	initError error
	initMu    sync.RWMutex

	// Mapping-file watcher (changes trigger a graceful restart)
	mappingWatcher *watcher.FileWatcher
}

// NewService creates a new API service with deferred initialization.
// The service starts immediately with the health endpoint available,
// while database and cache initialization happens in the background.
func NewService(version string) (*Service, error) {
	cfg := config.Get()

	ctx, cancel := context.WithCancel(context.Background())

	svc := &Service{
		version:   version,
		config:    cfg,
		router:    chi.NewRouter(),
		ctx:       ctx,
		cancel:    cancel,
		startTime: time.Now(),
	}

	// Setup middleware and routes (health endpoint works immediately)
	svc.setupMiddleware()
	svc.setupRoutes()

	// Start async initialization
	go svc.initializeAsync()

	return svc, nil
}

// initializeAsync performs heavy initialization in the background.
func (s *Service) initializeAsync() {
	log.Info().Msg("Starting async initialization...")

	if err := config.EnsureDataDir(); err != nil {
		s.setInitError(fmt.Errorf("ensure data dir: %w", err))
		return
	}

	// Recommendation mapping: built-in defaults, optional YAML override
	mapping := recommend.DefaultMapping()
	if s.config.MappingPath != "" {
		m, err := recommend.LoadMappingFile(s.config.MappingPath)
		if err != nil {
			s.setInitError(fmt.Errorf("load mapping file: %w", err))
			return
		}
		mapping = m
		log.Info().Str("path", s.config.MappingPath).Msg("Loaded recommendation mapping override")
	}
	log.Info().Int("mapped_folders", len(mapping.AllFolderIDs())).Msg("Recommendation tables loaded")

	// Initialize database (this includes migrations - can be slow)
	store, err := gormdb.NewStore(gormdb.Config{
		DSN:      s.config.DatabaseDSN,
		MaxConns: s.config.MaxConns,
	})
	if err != nil {
		s.setInitError(fmt.Errorf("init database: %w", err))
		return
	}

	// Create store wrappers
	folderStore := gormdb.NewFolderStore(store)
	metadataStore := gormdb.NewMetadataStore(store)
	messageStore := gormdb.NewMessageStore(store)

	// Redis folder-display cache (optional - nil client is a pass-through)
	var redisClient *redis.Client
	if s.config.RedisURL != "" {
		client, err := rediscache.NewClient(s.ctx, s.config.RedisURL)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable - folder display cache disabled")
		} else {
			redisClient = client
			log.Info().Msg("Redis connected - folder display cache enabled")
		}
	}
	cache := rediscache.NewCatalog(folderStore, redisClient,
		time.Duration(s.config.CacheTTLSeconds)*time.Second)

	onboardingSvc := onboarding.NewService(recommend.NewEngine(mapping), metadataStore, cache)

	// Set all the initialized components
	s.initMu.Lock()
	s.store = store
	s.pins = metadataStore
	s.listing = folderStore
	s.usage = messageStore
	s.redis = redisClient
	s.cache = cache
	s.onboarding = onboardingSvc
	s.initMu.Unlock()

	// Mark as ready
	s.ready.Store(true)
	log.Info().Msg("Async initialization complete - service ready")

	s.startMappingWatcher()
}

// startMappingWatcher watches the mapping override file. The mapping is
// immutable in-process, so a change triggers a graceful exit and the
// supervisor restarts the server with the new tables.
func (s *Service) startMappingWatcher() {
	if s.config.MappingPath == "" {
		return
	}

	path := s.config.MappingPath
	w, err := watcher.New(path, func() {
		log.Warn().Str("path", path).Msg("Mapping file changed, triggering graceful restart...")
		os.Exit(0)
	})
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create mapping file watcher")
		return
	}

	s.mappingWatcher = w
	w.Start()
	log.Info().Str("path", path).Msg("Mapping file watcher started")
}

// setInitError records an initialization error.
func (s *Service) setInitError(err error) {
	s.initMu.Lock()
	s.initError = err
	s.initMu.Unlock()
	log.Error().Err(err).Msg("Async initialization failed")
}

// GetInitError returns any initialization error.
func (s *Service) GetInitError() error {
	s.initMu.RLock()
	defer s.initMu.RUnlock()
	return s.initError
}

// setupMiddleware configures HTTP middleware.
func (s *Service) setupMiddleware() {
	s.router.Use(middleware.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(DefaultHTTPTimeout))
	s.router.Use(middleware.RealIP)
	s.router.Use(requestID)
	s.router.Use(securityHeaders)
	s.router.Use(maxBodySize(MaxRequestBodySize))
}

// setupRoutes configures HTTP routes.
func (s *Service) setupRoutes() {
	// Health check (both root and API-prefixed for compatibility)
	// Returns 200 immediately so the extension can connect during init
	s.router.Get("/health", s.handleHealth)
	s.router.Get("/api/health", s.handleHealth)

	// Readiness check - returns 200 only when fully initialized
	s.router.Get("/api/ready", s.handleReady)

	// Routes that require DB to be ready
	s.router.Group(func(r chi.Router) {
		r.Use(s.requireReady)
		r.Use(s.authenticate)

		// Onboarding routes
		r.Post("/api/onboarding/complete", s.handleOnboardingComplete)
		r.Post("/api/onboarding/preview-folder-recommendations", s.handleOnboardingPreview)

		// Folder routes
		r.Get("/api/folders", s.handleGetFolders)
		r.Post("/api/folders/pin", s.handlePinFolder)
		r.Post("/api/folders/unpin", s.handleUnpinFolder)

		// Statistics
		r.Get("/api/stats", s.handleGetStats)
	})
}

// Start starts the API service.
// The HTTP server starts immediately; database initialization happens async.
func (s *Service) Start() error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("HTTP server error")
		}
	}()

	log.Info().Int("port", s.config.Port).Str("version", s.version).Msg("API server started")
	return nil
}

// Shutdown gracefully stops the service.
func (s *Service) Shutdown(ctx context.Context) error {
	s.cancel()

	if s.mappingWatcher != nil {
		s.mappingWatcher.Stop()
	}

	// Shutdown HTTP server
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("HTTP server shutdown error")
		}
	}

	// Close Redis client
	s.initMu.RLock()
	redisClient := s.redis
	store := s.store
	s.initMu.RUnlock()

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Redis close error")
		}
	}

	// Close database
	if store != nil {
		if err := store.Close(); err != nil {
			log.Error().Err(err).Msg("Database close error")
		}
	}

	s.wg.Wait()

	log.Info().Msg("API service shutdown complete")
	return nil
}

// requireReady is middleware that returns 503 if service isn't ready.
func (s *Service) requireReady(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.ready.Load() {
			if err := s.GetInitError(); err != nil {
				http.Error(w, "service initialization failed", http.StatusInternalServerError)
				return
			}
			http.Error(w, "service initializing", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, r)
	})
}
