// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

package rpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stacklok/toolhive-core/httperr"
	"golang.org/x/sync/errgroup"

	"github.com/stacklok/rpauth/pkg/authflow"
	"github.com/stacklok/rpauth/pkg/identity"
	"github.com/stacklok/rpauth/pkg/logger"
	"github.com/stacklok/rpauth/pkg/session"
)

const (
	// DefaultCookieName holds the session ID.
	DefaultCookieName = "rpauth_session"

	sessionCookieMaxAge = 10 * time.Minute
	readHeaderTimeout   = 10 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Pinger is implemented by session providers that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server.
type Options struct {
	Client   *authflow.Client
	Sessions session.Provider

	// CookieName defaults to DefaultCookieName.
	CookieName string

	// SecureCookie sets the Secure attribute; enable it behind TLS.
	SecureCookie bool

	// Registry receives the server metrics. Defaults to a private registry.
	Registry *prometheus.Registry

	Logger *slog.Logger
}

// Server is the demo relying party.
type Server struct {
	client       *authflow.Client
	sessions     session.Provider
	cookieName   string
	secureCookie bool
	registry     *prometheus.Registry
	metrics      *metrics
	logger       *slog.Logger
	router       chi.Router
}

// New builds the server and its routes.
func New(opts Options) (*Server, error) {
	if opts.Client == nil {
		return nil, errors.New("client is required")
	}
	if opts.Sessions == nil {
		return nil, errors.New("session provider is required")
	}

	s := &Server{
		client:       opts.Client,
		sessions:     opts.Sessions,
		cookieName:   opts.CookieName,
		secureCookie: opts.SecureCookie,
		registry:     opts.Registry,
		logger:       opts.Logger,
	}
	if s.cookieName == "" {
		s.cookieName = DefaultCookieName
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	if s.logger == nil {
		s.logger = logger.Named("rpserver")
	}

	m, err := newMetrics(s.registry)
	if err != nil {
		return nil, err
	}
	s.metrics = m

	r := chi.NewRouter()
	r.Get("/login", ErrorHandler(s.logger, s.login))
	r.Get("/callback", ErrorHandler(s.logger, s.callback))
	r.Get("/healthz", ErrorHandler(s.logger, s.healthz))
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	s.router = r

	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// CallbackResponse is the JSON body returned after a successful callback.
// Tokens are redacted.
type CallbackResponse struct {
	User   *identity.Identity `json:"user"`
	Tokens *authflow.TokenSet `json:"tokens"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) error {
	id := s.sessionID(r)
	if id == "" {
		id = uuid.NewString()
	}
	store, err := s.sessions.Session(id)
	if err != nil {
		return httperr.WithCode(err, http.StatusInternalServerError)
	}

	req, err := s.client.NewFlow(store).BuildAuthorizationURL(r.Context())
	if err != nil {
		return withStatus(err)
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    id,
		Path:     "/",
		MaxAge:   int(sessionCookieMaxAge.Seconds()),
		HttpOnly: true,
		Secure:   s.secureCookie,
		SameSite: http.SameSiteLaxMode,
	})
	s.metrics.loginsTotal.Inc()
	http.Redirect(w, r, req.URL, http.StatusFound)
	return nil
}

func (s *Server) callback(w http.ResponseWriter, r *http.Request) (err error) {
	start := time.Now()
	defer func() {
		s.metrics.callbackDuration.Observe(time.Since(start).Seconds())
		s.metrics.callbacksTotal.WithLabelValues(resultLabel(err)).Inc()
	}()

	query := r.URL.Query()
	if err := authflow.CallbackError(query); err != nil {
		return withStatus(err)
	}

	id := s.sessionID(r)
	if id == "" {
		return httperr.WithCode(errors.New("missing session cookie"), http.StatusBadRequest)
	}
	store, err := s.sessions.Session(id)
	if err != nil {
		return httperr.WithCode(err, http.StatusInternalServerError)
	}

	outcome, err := s.client.NewFlow(store).HandleCallback(r.Context(), query, true)
	if err != nil {
		return withStatus(err)
	}

	s.logger.Info("user signed in", "has_privilege_level", outcome.User.HasPrivilegeLevel())

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(CallbackResponse{User: outcome.User, Tokens: outcome.Tokens}); err != nil {
		return httperr.WithCode(fmt.Errorf("failed to encode response: %w", err), http.StatusInternalServerError)
	}
	return nil
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) error {
	if p, ok := s.sessions.(Pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			return httperr.WithCode(fmt.Errorf("session store unavailable: %w", err), http.StatusServiceUnavailable)
		}
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func (s *Server) sessionID(r *http.Request) string {
	c, err := r.Cookie(s.cookieName)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// Serve runs handler on ln until ctx is cancelled, then shuts down gracefully.
func Serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	return g.Wait()
}
