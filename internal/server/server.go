/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/slotplanner/internal/api"
	"github.com/friendsincode/slotplanner/internal/cache"
	"github.com/friendsincode/slotplanner/internal/config"
	"github.com/friendsincode/slotplanner/internal/db"
	"github.com/friendsincode/slotplanner/internal/editor"
	"github.com/friendsincode/slotplanner/internal/eventbus"
	"github.com/friendsincode/slotplanner/internal/events"
	"github.com/friendsincode/slotplanner/internal/eventstore"
	"github.com/friendsincode/slotplanner/internal/logbuffer"
	"github.com/friendsincode/slotplanner/internal/telemetry"
	"github.com/friendsincode/slotplanner/internal/templates"
	"github.com/friendsincode/slotplanner/internal/version"
	"github.com/friendsincode/slotplanner/internal/webhooks"
)

// ForwardedEvents are the bus events published to the external event bus.
var ForwardedEvents = []events.EventType{
	events.EventSlotsChanged,
	events.EventSlotsSaved,
	events.EventTemplateSaved,
	events.EventTemplateDeleted,
	events.EventTemplateApplied,
	events.EventEventCreated,
}

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db         *gorm.DB
	cache      *cache.Cache
	logBuffer  *logbuffer.Buffer
	metrics    *telemetry.Metrics
	bus        *events.Bus
	events     *eventstore.Store
	templates  templates.Repository
	forwarders []*eventbus.Forwarder
	api        *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies. logBuf may be nil.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    router,
		bus:       events.NewBus(),
		logBuffer: logBuf,
		metrics:   telemetry.NewMetrics(),
	}

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(requestLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	if cfg.MetricsEnabled {
		router.Use(srv.metrics.Middleware)
	}
	router.Use(middleware.Timeout(60 * time.Second))

	if err := srv.initDependencies(); err != nil {
		_ = srv.Close()
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	srv.httpServer = &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           telemetry.HTTPHandler(srv.router, "slotplanner-api"),
		ReadHeaderTimeout: 15 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      75 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

// requestLogger logs one line per request through zerolog.
func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	logger = logger.With().Str("component", "http").Logger()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("request")
		})
	}
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := db.Migrate(database); err != nil {
		return err
	}
	if s.cfg.MetricsEnabled {
		if err := db.RegisterCallbacks(database, s.metrics); err != nil {
			return fmt.Errorf("register db callbacks: %w", err)
		}
	}

	s.events = eventstore.New(database, s.logger)
	if s.cfg.CacheEnabled {
		cacheCfg := cache.DefaultConfig()
		cacheCfg.RedisAddr = s.cfg.RedisAddr
		cacheCfg.RedisPassword = s.cfg.RedisPassword
		cacheCfg.RedisDB = s.cfg.RedisDB
		eventCache, err := cache.New(cacheCfg, s.logger)
		if err != nil {
			s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
		} else {
			s.cache = eventCache
			s.events.SetCache(eventCache)
			s.DeferClose(eventCache.Close)
		}
	}

	repo, err := s.templateStore(database)
	if err != nil {
		return err
	}
	s.templates = templates.WithObserver(repo, s.metrics.ObserveTemplate)

	if err := s.initEventBus(); err != nil {
		return err
	}

	s.api = api.New(s.events, s.templates, s.bus, s.logger, s.sessionOptions()...)
	if err := s.api.Configure(api.Settings{
		Timezone:       s.cfg.Timezone,
		MinSlotMinutes: s.cfg.SlotMinMinutes,
		MaxSlotMinutes: s.cfg.SlotMaxMinutes,
	}); err != nil {
		return err
	}
	return nil
}

// templateStore opens the configured key-value backend for slot templates.
func (s *Server) templateStore(database *gorm.DB) (*templates.Store, error) {
	var kv templates.KV
	switch s.cfg.TemplateBackend {
	case config.TemplatesMemory:
		kv = templates.NewMemoryKV()
	case config.TemplatesSQL:
		kv = templates.NewSQLKV(database)
	case config.TemplatesRedis:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		redisKV, err := templates.NewRedisKV(ctx, templates.RedisConfig{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPassword,
			DB:       s.cfg.RedisDB,
		})
		if err != nil {
			return nil, fmt.Errorf("template store: %w", err)
		}
		s.DeferClose(redisKV.Close)
		kv = redisKV
	default:
		return nil, fmt.Errorf("unsupported template backend %q", s.cfg.TemplateBackend)
	}

	store := templates.NewStore(kv, s.cfg.TemplateKey, s.logger)
	store.OnCorrupt(s.metrics.TemplateCorrupt)
	s.logger.Info().Str("backend", string(s.cfg.TemplateBackend)).Str("key", store.Key()).Msg("template store ready")
	return store, nil
}

// initEventBus forwards local bus events to Redis or NATS and to the
// webhook endpoint when configured.
func (s *Server) initEventBus() error {
	if s.cfg.WebhookURL != "" {
		hook := webhooks.NewPublisher(webhooks.Config{URL: s.cfg.WebhookURL, Secret: s.cfg.WebhookSecret}, s.logger)
		s.forward(hook)
		s.logger.Info().Str("url", s.cfg.WebhookURL).Bool("signed", s.cfg.WebhookSecret != "").Msg("webhook delivery enabled")
	}

	nodeID := s.cfg.NodeID
	if nodeID == "" {
		nodeID = eventbus.NewNodeID()
	}

	var pub eventbus.Publisher
	switch s.cfg.EventBus {
	case config.EventBusNone, "":
		return nil
	case config.EventBusRedis:
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		p, err := eventbus.NewRedisPublisher(ctx, redisCfg, nodeID, s.logger)
		if err != nil {
			return fmt.Errorf("redis event bus: %w", err)
		}
		pub = p
	case config.EventBusNATS:
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		p, err := eventbus.NewNATSPublisher(natsCfg, nodeID, s.logger)
		if err != nil {
			return fmt.Errorf("nats event bus: %w", err)
		}
		pub = p
	default:
		return fmt.Errorf("unsupported event bus %q", s.cfg.EventBus)
	}

	s.forward(pub)
	s.logger.Info().Str("backend", string(s.cfg.EventBus)).Str("node_id", nodeID).Msg("event forwarding enabled")
	return nil
}

// forward starts a forwarder to pub. Closers run in reverse, so the
// forwarder stops before pub is closed.
func (s *Server) forward(pub eventbus.Publisher) {
	s.DeferClose(pub.Close)
	f := eventbus.Forward(context.Background(), s.bus, pub, s.logger, ForwardedEvents...)
	s.forwarders = append(s.forwarders, f)
	s.DeferClose(func() error {
		f.Stop()
		return nil
	})
}

func (s *Server) sessionOptions() []editor.Option {
	opts := []editor.Option{
		editor.WithPolicyName(s.cfg.SlotPolicy),
		editor.WithAutoSave(s.cfg.AutoSave),
	}
	if s.cfg.MetricsEnabled {
		opts = append(opts,
			editor.WithListener(s.metrics.SlotListener()),
			editor.WithSaveObserver(s.metrics.ObserveSave),
		)
	}
	return opts
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Router returns the route tree without the tracing wrapper.
func (s *Server) Router() http.Handler {
	return s.router
}

// LogBuffer returns the server's log buffer.
func (s *Server) LogBuffer() *logbuffer.Buffer {
	return s.logBuffer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.closers = nil
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	if s.db == nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	if s.cfg.MetricsEnabled {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()

			db.UpdateConnectionMetrics(s.db, s.metrics)
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					db.UpdateConnectionMetrics(s.db, s.metrics)
				}
			}
		}()
	}

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
}

// runCacheInvalidationListener drops cached events that other writers changed.
// Writes through the local store already invalidate; this covers sessions
// whose saves arrive as bus events only.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	saved := s.bus.Subscribe(events.EventSlotsSaved)
	created := s.bus.Subscribe(events.EventEventCreated)
	defer func() {
		s.bus.Unsubscribe(events.EventSlotsSaved, saved)
		s.bus.Unsubscribe(events.EventEventCreated, created)
	}()

	s.logger.Debug().Msg("cache invalidation listener started")
	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-saved:
			if eventID, ok := payload["event_id"].(string); ok {
				_ = s.cache.InvalidateEvent(ctx, eventID)
			}
		case <-created:
			_ = s.cache.InvalidateEventList(ctx)
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", s.handleHealth)
	s.router.Get("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, version.Get())
	})

	if s.cfg.MetricsEnabled {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Route("/api/v1", func(r chi.Router) {
		s.api.Routes(r)
		if s.logBuffer != nil {
			r.Get("/logs", s.handleLogs)
		}
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := http.StatusOK
	resp := map[string]any{"status": "ok"}

	sqlDB, err := s.db.DB()
	if err == nil {
		err = sqlDB.PingContext(r.Context())
	}
	if err != nil {
		status = http.StatusServiceUnavailable
		resp["status"] = "degraded"
		resp["database"] = err.Error()
	}
	if s.cache != nil {
		resp["cache"] = s.cache.IsAvailable()
	}
	writeJSON(w, status, resp)
}

// handleLogs returns recent log entries, newest first.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	params := logbuffer.QueryParams{
		Level:      q.Get("level"),
		Component:  q.Get("component"),
		EventID:    q.Get("event_id"),
		Search:     q.Get("search"),
		Limit:      200,
		Descending: true,
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			params.Limit = n
		}
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			params.Since = t
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries":    s.logBuffer.Query(params),
		"components": s.logBuffer.Components(),
		"stats":      s.logBuffer.Stats(),
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
