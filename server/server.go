// Package server wires the chat relay together: it builds the completion
// pipeline from configuration, mounts the chat, health and metrics routes on
// a chi router, and runs the HTTP listener with live configuration reloads.
package server

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/teilomillet/chatrelay/config"
	"github.com/teilomillet/chatrelay/errors"
	"github.com/teilomillet/chatrelay/server/circuitbreaker"
	"github.com/teilomillet/chatrelay/server/handlers"
	"github.com/teilomillet/chatrelay/server/metrics"
	"github.com/teilomillet/chatrelay/server/middleware"
	"github.com/teilomillet/chatrelay/server/processing"
	"github.com/teilomillet/chatrelay/server/provider"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
)

// CompleterFactory creates the upstream client for an LLM configuration.
// provider.New is the production factory.
type CompleterFactory func(cfg config.LLMConfig, logger *zap.Logger) (provider.Completer, error)

// NewRouter mounts the relay routes. The chat handler receives every method
// so it can answer preflight and 405 itself.
func NewRouter(cfg *config.Config, chat http.Handler, m *metrics.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	if m != nil {
		r.Use(middleware.PrometheusMetrics(m))
	}
	r.Use(errors.ErrorHandler(logger))

	r.Get(config.HealthPath, func(w http.ResponseWriter, r *http.Request) {
		_ = errors.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if m != nil && cfg.Metrics.Enabled {
		r.Method(http.MethodGet, cfg.Metrics.Path, m.Handler())
	}

	r.Handle(cfg.Server.Path, chat)

	return r
}

// BuildProcessor assembles the completion pipeline for cfg: the provider
// client bounded by the call timeout, behind the optional circuit breaker.
func BuildProcessor(cfg *config.Config, newCompleter CompleterFactory, m *metrics.Metrics, logger *zap.Logger) (*processing.Processor, error) {
	completer, err := newCompleter(cfg.LLM, logger)
	if err != nil {
		return nil, fmt.Errorf("create %s completer: %w", cfg.LLM.Provider, err)
	}

	// Timeouts inside the breaker count as failures.
	completer = provider.Timeout(completer, cfg.LLM.Timeout)

	if cfg.CircuitBreaker.Enabled {
		var registry prometheus.Registerer
		if m != nil {
			registry = m.Registry()
		}
		cb, err := circuitbreaker.NewCircuitBreaker(circuitbreaker.Config{
			Name:             cfg.LLM.Provider,
			MaxRequests:      cfg.CircuitBreaker.MaxRequests,
			Interval:         cfg.CircuitBreaker.Interval,
			Timeout:          cfg.CircuitBreaker.Timeout,
			FailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		}, logger, registry)
		if err != nil {
			return nil, fmt.Errorf("create circuit breaker: %w", err)
		}
		completer = provider.Breaker(completer, cb)
	}

	opts := []processing.Option{
		processing.WithParams(provider.ParamsFromConfig(cfg.LLM)),
		processing.WithLogger(logger),
	}
	if m != nil {
		opts = append(opts, processing.WithMetrics(m, cfg.LLM.Provider))
	}
	if cfg.LLM.CountTokens {
		tc, err := processing.NewTokenCounter(cfg.LLM.Model)
		if err != nil {
			logger.Warn("token counting disabled", zap.String("model", cfg.LLM.Model), zap.Error(err))
		} else {
			opts = append(opts, processing.WithTokenCounter(tc))
		}
	}

	return processing.NewProcessor(completer, opts...)
}

// Server represents the HTTP server
type Server struct {
	watcher      config.Watcher
	newCompleter CompleterFactory
	logger       *zap.Logger
	level        *zap.AtomicLevel
	metrics      *metrics.Metrics
	chat         *handlers.ChatHandler

	// router is swapped on reload so a new chat path takes effect
	// without restarting the listener.
	router atomic.Value // http.Handler

	mu     sync.Mutex
	config *config.Config
	addr   net.Addr
}

// NewServer creates a server that loads configPath and reloads it on change.
func NewServer(configPath string, logger *zap.Logger) (*Server, error) {
	watcher, err := config.NewConfigWatcher(configPath, logger)
	if err != nil {
		return nil, fmt.Errorf("watch config: %w", err)
	}
	return NewServerWithConfig(watcher, provider.New, logger)
}

// NewServerWithConfig creates a server from an existing watcher and
// completer factory.
func NewServerWithConfig(watcher config.Watcher, newCompleter CompleterFactory, logger *zap.Logger) (*Server, error) {
	if watcher == nil {
		return nil, stderrors.New("config watcher is required")
	}
	if newCompleter == nil {
		newCompleter = provider.New
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cfg := watcher.GetCurrentConfig()
	if cfg == nil {
		return nil, stderrors.New("config watcher has no configuration")
	}

	s := &Server{
		watcher:      watcher,
		newCompleter: newCompleter,
		logger:       logger,
		metrics:      metrics.NewMetrics(),
		config:       cfg,
	}

	proc, err := BuildProcessor(cfg, newCompleter, s.metrics, logger)
	if err != nil {
		return nil, err
	}
	s.chat = handlers.NewChatHandler(proc, cfg.CORS, logger).WithMetrics(s.metrics)
	s.chat.SetMaxBodyBytes(cfg.Server.MaxBodyBytes)
	s.router.Store(NewRouter(cfg, s.chat, s.metrics, logger))

	return s, nil
}

// WithLogLevel lets configuration reloads adjust the logger's level.
func (s *Server) WithLogLevel(level zap.AtomicLevel) *Server {
	s.level = &level
	return s
}

// Handler returns the server's current router.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.router.Load().(http.Handler).ServeHTTP(w, r)
	})
}

// Metrics returns the server's metrics.
func (s *Server) Metrics() *metrics.Metrics {
	return s.metrics
}

// Config returns the configuration currently in effect.
func (s *Server) Config() *config.Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.config
}

// Addr returns the address the server is listening on, or nil before the
// listener is up.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start starts the server and blocks until ctx is cancelled or the listener
// fails. Configuration updates are applied in place; a change to the
// listener settings restarts the listener.
func (s *Server) Start(ctx context.Context) error {
	updates := s.watcher.Subscribe()

	for {
		cfg := s.Config()
		next, err := s.serve(ctx, cfg, &updates)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}
		s.logger.Info("Restarting listener",
			zap.Int("old_port", cfg.Server.Port),
			zap.Int("new_port", next.Server.Port),
		)
	}
}

// serve runs one listener until shutdown. It returns the configuration to
// restart with, or nil when ctx is done.
func (s *Server) serve(ctx context.Context, cfg *config.Config, updates *<-chan *config.Config) (*config.Config, error) {
	srv := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        s.Handler(),
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("Server started",
		zap.String("address", ln.Addr().String()),
		zap.String("chat_path", cfg.Server.Path),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
	)

	var restart *config.Config
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return s.shutdown(srv, cfg)
			case newCfg, ok := <-*updates:
				if !ok {
					// The watcher is gone; keep serving what we have.
					*updates = nil
					continue
				}
				if err := s.reload(newCfg); err != nil {
					s.logger.Error("Failed to apply configuration update",
						zap.String("error_type", string(errors.ConfigError)),
						zap.Error(err),
					)
					continue
				}
				if listenerChanged(cfg.Server, newCfg.Server) {
					restart = newCfg
					return s.shutdown(srv, cfg)
				}
			}
		}
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return restart, nil
}

func (s *Server) shutdown(srv *http.Server, cfg *config.Config) error {
	s.logger.Info("Shutting down server", zap.String("address", srv.Addr))

	ctx := context.Background()
	if cfg.Server.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
		defer cancel()
	}
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("error during server shutdown: %w", err)
	}

	s.mu.Lock()
	s.addr = nil
	s.mu.Unlock()
	return nil
}

// reload applies cfg to the running handler. On error the previous pipeline
// stays in place.
func (s *Server) reload(cfg *config.Config) error {
	proc, err := BuildProcessor(cfg, s.newCompleter, s.metrics, s.logger)
	if err != nil {
		return err
	}

	s.chat.SetProcessor(proc)
	s.chat.SetCORS(cfg.CORS)
	s.chat.SetMaxBodyBytes(cfg.Server.MaxBodyBytes)
	s.router.Store(NewRouter(cfg, s.chat, s.metrics, s.logger))

	if s.level != nil {
		if lvl, err := zapcore.ParseLevel(cfg.Logging.Level); err == nil {
			s.level.SetLevel(lvl)
		}
	}

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()

	s.logger.Info("Configuration reloaded",
		zap.String("chat_path", cfg.Server.Path),
		zap.String("provider", cfg.LLM.Provider),
		zap.String("model", cfg.LLM.Model),
	)
	return nil
}

func listenerChanged(old, next config.ServerConfig) bool {
	return old.Port != next.Port ||
		old.ReadTimeout != next.ReadTimeout ||
		old.WriteTimeout != next.WriteTimeout ||
		old.MaxHeaderBytes != next.MaxHeaderBytes
}
