package http

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"fleemy/internal/cache"
	"fleemy/internal/calendar"
	"fleemy/internal/log"
	"fleemy/internal/middleware/ratelimit"
	"fleemy/internal/middleware/security"
	"fleemy/internal/middleware/trace"
	"fleemy/internal/planning"
	"fleemy/internal/services"
)

// HealthCheck probes one dependency for /readyz.
type HealthCheck func(ctx context.Context) error

// WeekExporter writes a week to the spreadsheet export.
type WeekExporter interface {
	ExportWeek(ctx context.Context, uid string, week calendar.YearWeek, force bool) (services.ExportResult, error)
}

// Options wires the server to the planning core.
type Options struct {
	Addr            string
	Sessions        *planning.Sessions
	Exporter        WeekExporter
	Checks          map[string]HealthCheck
	Caches          *cache.Manager
	Logger          *log.Logger
	RateLimit       ratelimit.Config
	BlockSuspicious bool
	Headers         *security.HeadersConfig
}

type appMetrics struct {
	uptime     time.Time
	synced     int64
	pending    int64
	rolledBack int64
	exports    int64
}

// Server serves the planning JSON API.
type Server struct {
	http.Server
	sessions *planning.Sessions
	exporter WeekExporter
	checks   map[string]HealthCheck
	caches   *cache.Manager
	logger   *log.Logger
	mutLog   *log.StructuredLogger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	appMetrics   appMetrics
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)
	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}

	detector := security.NewDetector(logger, opts.BlockSuspicious)
	s := &Server{
		sessions:         opts.Sessions,
		exporter:         opts.Exporter,
		checks:           opts.Checks,
		caches:           opts.Caches,
		logger:           logger,
		mutLog:           log.NewStructuredLogger(logger),
		rateLimiter:      ratelimit.NewLimiter(opts.RateLimit),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(logger, detector.ExtractClientIP),
		appMetrics:       appMetrics{uptime: time.Now()},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/planning", s.withController(s.handleGetPlanning))
	mux.HandleFunc("POST /api/planning/reload", s.withController(s.handleReload))
	mux.HandleFunc("POST /api/planning/navigate", s.withController(s.handleNavigate))
	mux.HandleFunc("POST /api/planning/view", s.withController(s.handleSwitchView))
	mux.HandleFunc("POST /api/planning/goto", s.withController(s.handleGoTo))
	mux.HandleFunc("POST /api/planning/today", s.withController(s.handleToday))
	mux.HandleFunc("DELETE /api/planning/notice", s.withController(s.handleClearNotice))
	mux.HandleFunc("GET /api/planning/summary", s.withController(s.handleSummary))
	mux.HandleFunc("GET /api/planning/slots/{day}/{start}", s.withController(s.handleSlot))
	mux.HandleFunc("GET /api/planning/days/{date}", s.withController(s.handleDay))

	mux.HandleFunc("POST /api/planning/events", s.withController(s.handleCreateEvent))
	mux.HandleFunc("PUT /api/planning/events/{id}", s.withController(s.handleUpdateEvent))
	mux.HandleFunc("DELETE /api/planning/events/{id}", s.withController(s.handleDeleteEvent))
	mux.HandleFunc("DELETE /api/planning/week", s.withController(s.handleClearWeek))

	mux.HandleFunc("GET /api/planning/tasks", s.withController(s.handleListTasks))
	mux.HandleFunc("POST /api/planning/tasks", s.withController(s.handleCreateTask))
	mux.HandleFunc("PUT /api/planning/tasks/{id}", s.withController(s.handleUpdateTask))
	mux.HandleFunc("DELETE /api/planning/tasks/{id}", s.withController(s.handleDeleteTask))

	mux.HandleFunc("GET /api/planning/week.ics", s.withController(s.handleWeekICS))
	mux.HandleFunc("POST /api/planning/export", s.withController(s.handleExport))

	limit := s.rateLimiter.Middleware(s.rateLimitKey, ratelimit.Mutations, func(w http.ResponseWriter, r *http.Request, retry int) {
		log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
			log.FieldClientIP, detector.ExtractClientIP(r),
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path)
		TooManyRequestsError(retry).Write(w)
	})

	var handler http.Handler = mux
	handler = limit(handler)
	handler = security.NewHeadersMiddleware(headers).Middleware(handler)
	handler = detector.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// rateLimitKey limits per user when the request names one, else per address.
func (s *Server) rateLimitKey(r *http.Request) string {
	if uid, err := UserID(r); err == nil {
		return "uid:" + uid
	}
	return "ip:" + s.securityDetector.ExtractClientIP(r)
}

type controllerHandler func(w http.ResponseWriter, r *http.Request, c *planning.Controller)

// withController resolves the session of the calling user and makes sure its
// visible period was loaded once.
func (s *Server) withController(next controllerHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uid, err := UserID(r)
		if err != nil {
			ErrorResponse(http.StatusUnauthorized, err.Error()).Write(w)
			return
		}
		c, err := s.sessions.For(uid)
		if err != nil {
			s.logger.ErrorContext(r.Context(), "Session unavailable", log.FieldUID, uid, log.FieldError, err)
			InternalServerError("session unavailable").Write(w)
			return
		}
		if !c.State().Loaded {
			if err := c.Load(r.Context()); err != nil {
				log.FromContext(r.Context()).WarnContext(r.Context(), "Initial load failed",
					log.FieldUID, uid, log.FieldError, err)
				FromError(err).Notice(c.Notice()).Write(w)
				return
			}
		}
		next(w, r, c)
	}
}

// track counts a mutation outcome and logs it.
func (s *Server) track(ctx context.Context, op, uid, entityID string, outcome planning.Outcome) {
	switch outcome {
	case planning.Synced:
		atomic.AddInt64(&s.appMetrics.synced, 1)
	case planning.PendingSync:
		atomic.AddInt64(&s.appMetrics.pending, 1)
	case planning.RolledBack:
		atomic.AddInt64(&s.appMetrics.rolledBack, 1)
	}
	s.mutLog.LogMutation(ctx, op, uid, entityID, string(outcome))
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
