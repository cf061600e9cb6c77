// Package server is the HTTP surface: the auth callback, cache
// revalidation, the route guard and a server-rendered dashboard.
package server

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/klauspost/compress/gzhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/nhle/accomplishment-tracker/internal/analytics"
	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

// GatewayFactory returns the gateway serving one request. Sessions are read
// from and written to store, which is backed by the request's cookies.
type GatewayFactory func(store session.Store) gateway.Gateway

// Config holds the server settings.
type Config struct {
	Addr     string
	CacheTTL time.Duration
	// SecureCookies marks session cookies Secure; set it when served over
	// https.
	SecureCookies bool
	PageSize      int
	// PublicURL is the site's external origin, used in links sent by
	// email. Empty means the origin of the request that asks for one.
	PublicURL string
}

// Server serves the web surface.
type Server struct {
	cfg      Config
	gateways GatewayFactory
	cache    *renderCache
	tmpl     *template.Template
	log      *zap.Logger
	tracker  analytics.Tracker
	now      func() time.Time
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithTracker sets the analytics tracker.
func WithTracker(t analytics.Tracker) Option {
	return func(s *Server) { s.tracker = t }
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// New builds a Server.
func New(cfg Config, gateways GatewayFactory, opts ...Option) (*Server, error) {
	cfg.Addr = strings.TrimSpace(cfg.Addr)
	cfg.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.PublicURL), "/")
	if cfg.Addr == "" {
		return nil, errors.New("server: addr is empty")
	}
	if gateways == nil {
		return nil, errors.New("server: gateway factory is nil")
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 60 * time.Second
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 5
	}

	tmpl, err := template.New("base").Funcs(template.FuncMap{
		"markdown":   renderMarkdownHTML,
		"localeDate": model.FormatLocaleDate,
	}).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		gateways: gateways,
		tmpl:     tmpl,
		log:      zap.NewNop(),
		tracker:  analytics.Nop{},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.cache = newRenderCache(cfg.CacheTTL, s.now)
	return s, nil
}

// Addr returns the listen address.
func (s *Server) Addr() string { return s.cfg.Addr }

// Handler returns the routed, guarded and compressed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/revalidate", s.handleRevalidate)
	mux.HandleFunc("GET "+callbackPath, s.handleAuthCallback)
	mux.HandleFunc("GET /{$}", s.handleLanding)
	mux.HandleFunc("GET /login", s.handleLoginGet)
	mux.HandleFunc("POST /login", s.handleLoginPost)
	mux.HandleFunc("POST "+magicLinkPath, s.handleMagicLinkPost)
	mux.HandleFunc("GET /signup", s.handleSignup)
	mux.HandleFunc("POST /signup", s.handleSignupPost)
	mux.HandleFunc("POST /logout", s.handleLogoutPost)
	mux.HandleFunc("GET /dashboard", s.handleDashboard)
	mux.HandleFunc("GET /dashboard/export.csv", s.handleExport)
	mux.HandleFunc("POST /dashboard/accomplishments", s.handleCreate)
	mux.HandleFunc("POST /dashboard/accomplishments/{id}/delete", s.handleDelete)

	return gzhttp.GzipHandler(Guard(s.resolveSession, s.log)(mux))
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.log.Info("listening", zap.String("addr", s.cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serving http: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http: %w", err)
		}
		return nil
	})
	return g.Wait()
}

// gatewayFor returns the gateway for r, bound to its session cookies.
func (s *Server) gatewayFor(w http.ResponseWriter, r *http.Request) gateway.Gateway {
	return s.gateways(newCookieStore(w, r, s.cfg.SecureCookies))
}

func (s *Server) resolveSession(w http.ResponseWriter, r *http.Request) (*model.Session, error) {
	return s.gatewayFor(w, r).GetCurrentSession(r.Context())
}

func (s *Server) writeHTMLTemplate(w http.ResponseWriter, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, name, data); err != nil {
		s.log.Error("rendering template", zap.String("template", name), zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	s.writeHTMLTemplate(w, "landing.html", nil)
}
