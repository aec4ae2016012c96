// Package api exposes the chat widget service over HTTP.
package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/naveenvasou/sales-chatbot-widget/internal/catalog"
	"github.com/naveenvasou/sales-chatbot-widget/internal/flow"
	"github.com/naveenvasou/sales-chatbot-widget/internal/genai"
	"github.com/naveenvasou/sales-chatbot-widget/internal/notify"
	"github.com/naveenvasou/sales-chatbot-widget/internal/session"
	"github.com/naveenvasou/sales-chatbot-widget/internal/store"
)

// DefaultAddr is the default API server listen address.
const DefaultAddr = ":8080"

// DefaultShutdownTimeout bounds graceful shutdown on SIGINT/SIGTERM.
const DefaultShutdownTimeout = 10 * time.Second

// sessionLockMaxAge is how long an idle session keeps its turn lock before
// cleanup reclaims it.
const sessionLockMaxAge = time.Hour

// Opts holds configuration for the API server.
type Opts struct {
	Addr        string
	CatalogPath string
	EmailOpts   []notify.EmailOption
	SMSOpts     []notify.SMSOption
}

// Option configures the API server.
type Option func(*Opts)

// WithAddr overrides the listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithCatalogPath points the property catalog at an external JSON file.
func WithCatalogPath(path string) Option {
	return func(o *Opts) { o.CatalogPath = path }
}

// WithEmailNotifications enables the email lead-alert channel.
func WithEmailNotifications(opts ...notify.EmailOption) Option {
	return func(o *Opts) { o.EmailOpts = opts }
}

// WithSMSNotifications enables the SMS lead-alert channel.
func WithSMSNotifications(opts ...notify.SMSOption) Option {
	return func(o *Opts) { o.SMSOpts = opts }
}

// Server wires the flow controller, storage, AI responder, catalog, and
// notification channels behind the HTTP API.
type Server struct {
	st       store.Store
	flow     *flow.Controller
	ai       genai.ClientInterface
	notifier *notify.Dispatcher
	catalog  *catalog.Service
	sessions *session.Manager
	addr     string
}

// NewServer assembles a server from already-constructed collaborators.
// A nil ai client disables AI-produced replies (the apology fallback is
// used instead); a nil notifier is replaced with an empty dispatcher.
func NewServer(st store.Store, controller *flow.Controller, ai genai.ClientInterface, notifier *notify.Dispatcher, cat *catalog.Service, addr string) *Server {
	if notifier == nil {
		notifier = notify.NewDispatcher()
	}
	if addr == "" {
		addr = DefaultAddr
	}
	return &Server{
		st:       st,
		flow:     controller,
		ai:       ai,
		notifier: notifier,
		catalog:  cat,
		sessions: session.NewManager(),
		addr:     addr,
	}
}

// Router builds the chi router with all chat endpoints mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.healthHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat/init", s.initChatHandler)
		r.Post("/chat/select-category", s.selectCategoryHandler)
		r.Post("/chat/submit-lead", s.submitLeadHandler)
		r.Post("/chat/input", s.userInputHandler)
		r.Post("/chat/menu", s.menuHandler)
		r.Post("/chat/end", s.endChatHandler)
		r.Get("/chat/{sessionID}/history", s.historyHandler)
		r.Get("/leads", s.leadsHandler)
	})

	return r
}

// Run builds every module from its options, starts the HTTP server, and
// blocks until SIGINT/SIGTERM triggers graceful shutdown.
func Run(storeOpts []store.Option, genaiOpts []genai.Option, apiOpts []Option) error {
	var cfg Opts
	for _, opt := range apiOpts {
		opt(&cfg)
	}

	st, err := buildStore(storeOpts)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	defer st.Close()

	var ai genai.ClientInterface
	if len(genaiOpts) > 0 {
		client, err := genai.NewClient(genaiOpts...)
		if err != nil {
			return fmt.Errorf("failed to initialize AI client: %w", err)
		}
		ai = client
	} else {
		slog.Warn("Run: no AI options provided, assistant replies will use the fallback message")
	}

	notifier, err := buildNotifier(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize notifications: %w", err)
	}

	var catalogOpts []catalog.Option
	if cfg.CatalogPath != "" {
		catalogOpts = append(catalogOpts, catalog.WithPath(cfg.CatalogPath))
	}
	cat, err := catalog.NewService(catalogOpts...)
	if err != nil {
		return fmt.Errorf("failed to load property catalog: %w", err)
	}

	controller := flow.NewController(flow.NewTable())
	server := NewServer(st, controller, ai, notifier, cat, cfg.Addr)

	srv := &http.Server{
		Addr:         server.addr,
		Handler:      server.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Reclaim turn locks from sessions that went quiet.
	cleanupDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(30 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				server.sessions.Cleanup(sessionLockMaxAge)
			case <-cleanupDone:
				return
			}
		}
	}()
	defer close(cleanupDone)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Run: API server listening", "addr", srv.Addr, "notification_channels", notifier.Channels())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-quit:
		slog.Info("Run: shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), DefaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	slog.Info("Run: server stopped")
	return nil
}

// buildStore picks the storage backend from the configured DSN: Postgres
// for postgres URLs, SQLite for file paths, in-memory when nothing is
// configured.
func buildStore(storeOpts []store.Option) (store.Store, error) {
	var cfg store.Opts
	for _, opt := range storeOpts {
		opt(&cfg)
	}
	if cfg.DSN == "" {
		slog.Info("buildStore: no DSN configured, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(cfg.DSN) == "postgres" {
		slog.Info("buildStore: using PostgreSQL store")
		return store.NewPostgresStore(storeOpts...)
	}
	slog.Info("buildStore: using SQLite store", "path", cfg.DSN)
	return store.NewSQLiteStore(storeOpts...)
}

// buildNotifier assembles the alert dispatcher from whichever channels are
// configured.
func buildNotifier(cfg Opts) (*notify.Dispatcher, error) {
	var channels []notify.Notifier
	if len(cfg.EmailOpts) > 0 {
		email, err := notify.NewEmailNotifier(cfg.EmailOpts...)
		if err != nil {
			return nil, fmt.Errorf("email notifier: %w", err)
		}
		channels = append(channels, email)
	}
	if len(cfg.SMSOpts) > 0 {
		sms, err := notify.NewSMSNotifier(cfg.SMSOpts...)
		if err != nil {
			return nil, fmt.Errorf("SMS notifier: %w", err)
		}
		channels = append(channels, sms)
	}
	if len(channels) == 0 {
		slog.Warn("buildNotifier: no notification channels configured, lead alerts disabled")
	}
	return notify.NewDispatcher(channels...), nil
}
