package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"gestao/internal/app"
	"gestao/internal/auth"
	"gestao/internal/cache"
	"gestao/internal/core"
	applog "gestao/internal/log"
	"gestao/internal/middleware/ratelimit"
	"gestao/internal/middleware/security"
	"gestao/internal/middleware/trace"
	"gestao/internal/services"
	"gestao/internal/views"
)

const cacheCleanupInterval = 10 * time.Minute

// Submitter starts a transaction write.
type Submitter interface {
	Submit(ctx context.Context, f services.Form) (core.Transaction, error)
}

// Dependencies are the collaborators the handlers drive.
type Dependencies struct {
	Auth   auth.Provider
	State  *app.Store
	Writer Submitter
	// Ready reports backend readiness; nil means always ready.
	Ready func(ctx context.Context) error
}

type Options struct {
	RecentLimit        int
	RateLimitPerMinute int
	ViewCacheTTL       time.Duration
	Logger             *applog.Logger
}

type Server struct {
	http.Server
	deps        Dependencies
	recentLimit int
	logger      *applog.Logger

	limiter    *ratelimit.Limiter
	tracer     *trace.Middleware
	dashboards *cache.LRUCache[views.Dashboard]
	histories  *cache.LRUCache[views.History]
	caches     *cache.Manager

	mu        sync.Mutex
	cachedUID string

	unobserve    func()
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, deps Dependencies, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.RecentLimit <= 0 {
		opts.RecentLimit = views.DefaultRecentLimit
	}
	if opts.ViewCacheTTL <= 0 {
		opts.ViewCacheTTL = 5 * time.Minute
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	s := &Server{
		deps:        deps,
		recentLimit: opts.RecentLimit,
		logger:      logger,
		limiter:     ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		tracer:      trace.NewMiddleware(logger, clientIP),
		dashboards:  cache.NewLRUCache[views.Dashboard](100, opts.ViewCacheTTL),
		histories:   cache.NewLRUCache[views.History](100, opts.ViewCacheTTL),
		caches:      cache.NewManager(opts.Logger),
	}
	s.caches.Register(s.dashboards)
	s.caches.Register(s.histories)
	s.caches.StartCleanup(cacheCleanupInterval)
	s.unobserve = deps.State.Observe(s.onStateChange)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/auth/signin", s.handleSignIn)
	mux.HandleFunc("/auth/signup", s.handleSignUp)
	mux.HandleFunc("/auth/signout", s.handleSignOut)
	mux.HandleFunc("/session", s.handleSession)
	mux.HandleFunc("/screens", s.handleScreens)
	mux.HandleFunc("/notice", s.handleNotice)
	mux.HandleFunc("/dashboard", s.handleDashboard)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/transactions", s.handleCreateTransaction)
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Não encontrado").Write(w)
	})

	// Only writes count against the rate limit.
	limited := s.limiter.Middleware(clientIP, s.onRateLimit)(mux)
	routed := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limited.ServeHTTP(w, r)
			return
		}
		mux.ServeHTTP(w, r)
	})

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.tracer.Middleware(headers.Middleware(routed)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Shutdown stops background work and the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		if s.unobserve != nil {
			s.unobserve()
		}
		s.caches.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

// onStateChange drops cached projections of a user who is no longer current.
func (s *Server) onStateChange(st app.State) {
	s.mu.Lock()
	prev := s.cachedUID
	s.cachedUID = st.Session.UID
	s.mu.Unlock()

	if prev != "" && prev != st.Session.UID {
		s.dashboards.DeletePrefix(prev + ":")
		s.histories.DeletePrefix(prev + ":")
	}
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, clientIP(r))
	TooManyRequestsError("Muitas requisições. Tente novamente em instantes.").Write(w)
}
