package supabase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/nhle/accomplishment-tracker/internal/gateway"
	"github.com/nhle/accomplishment-tracker/internal/model"
	"github.com/nhle/accomplishment-tracker/internal/session"
)

var _ gateway.Gateway = (*Gateway)(nil)

// Gateway is the hosted implementation of gateway.Gateway. Tokens are read
// from and written back to a session.Store, so one Gateway serves either
// the keyring-backed CLI session or a single HTTP request's cookies.
type Gateway struct {
	client    *Client
	sessions  session.Store
	log       *zap.Logger
	now       func() time.Time
	dialer    *websocket.Dialer
	heartbeat time.Duration
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) {
		g.log = l
		g.client.log = l
	}
}

// WithHTTPClient replaces the HTTP client used for REST and auth calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(g *Gateway) {
		g.client.httpClient = hc
	}
}

// WithClock overrides the clock used for token expiry.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		g.now = now
	}
}

// WithHeartbeat overrides the realtime heartbeat interval.
func WithHeartbeat(d time.Duration) Option {
	return func(g *Gateway) {
		g.heartbeat = d
	}
}

// New returns a Gateway for the configured project.
func New(cfg model.BackendConfig, sessions session.Store, opts ...Option) *Gateway {
	g := &Gateway{
		client:    NewClient(cfg.URL, cfg.AnonKey, nil),
		sessions:  sessions,
		log:       zap.NewNop(),
		now:       time.Now,
		dialer:    websocket.DefaultDialer,
		heartbeat: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// accessToken returns a usable access token for ownerID, refreshing the
// stored session when it has expired.
func (g *Gateway) accessToken(ctx context.Context, ownerID string) (string, error) {
	if ownerID == "" {
		return "", gateway.ErrUnauthenticated
	}
	s, err := g.sessions.Load()
	if err != nil {
		return "", fmt.Errorf("loading session: %w", err)
	}
	if s == nil {
		return "", gateway.ErrUnauthenticated
	}
	if s.Expired(g.now()) {
		s, err = g.refresh(ctx, s)
		if err != nil {
			return "", err
		}
	}
	if s.Viewer.ID != ownerID {
		return "", &gateway.AuthError{Op: "resolve token", Message: "session belongs to a different viewer"}
	}
	return s.AccessToken, nil
}
