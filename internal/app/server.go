package app

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	intrnl "relaychat/internal"
)

// ServerHandle represents a running relay server instance.
type ServerHandle struct {
	addr   string
	server *http.Server
	done   chan struct{}
	err    error
	log    zerolog.Logger
}

// Addr returns the actual listen address (after the OS allocated a port).
func (h *ServerHandle) Addr() string {
	return h.addr
}

// Stop triggers a graceful shutdown with the provided context deadline.
func (h *ServerHandle) Stop(ctx context.Context) error {
	if h == nil || h.server == nil {
		return nil
	}
	if ctx == nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
	}
	return h.server.Shutdown(ctx)
}

// Wait blocks until the server exits.
func (h *ServerHandle) Wait() error {
	if h == nil {
		return nil
	}
	<-h.done
	return h.err
}

// RunServer wires the relay core, registers the HTTP surface, and starts
// serving in the background. Call Stop/Wait to manage its lifecycle.
func RunServer(ctx context.Context, cfg ServerConfig) (*ServerHandle, error) {
	cfg.Path = NormalizeWSPath(cfg.Path)
	logger := NewLogger(cfg.Log)

	metrics := intrnl.NewMetrics()
	registry := intrnl.NewSessionRegistry()
	history := intrnl.NewHistoryStore(cfg.HistoryCapacity)
	hub := intrnl.NewHub(logger)
	router := intrnl.NewRouter(hub)
	dispatcher := intrnl.NewDispatcher(registry, history, router, hub, metrics, logger)
	server := intrnl.NewServer(hub, dispatcher, metrics, cfg.AllowedOrigins, logger)

	mux := chi.NewRouter()
	mux.Use(middleware.Recoverer)
	mux.Get("/health", server.HandleHealth)
	mux.Method(http.MethodGet, "/metrics", server.MetricsHandler())
	mux.Get(cfg.Path, server.ServeWS)

	httpServer := &http.Server{
		Addr:    cfg.Addr,
		Handler: mux,
	}

	listener, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		return nil, err
	}

	handle := &ServerHandle{
		addr:   listener.Addr().String(),
		server: httpServer,
		done:   make(chan struct{}),
		log:    logger,
	}

	go func() {
		if ctx == nil {
			return
		}
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("server shutdown")
		}
	}()

	go handle.serve(listener)

	logger.Info().Str("version", intrnl.Version).Str("addr", handle.addr).Str("path", cfg.Path).Msg("relay server listening")
	return handle, nil
}

func (h *ServerHandle) serve(listener net.Listener) {
	defer close(h.done)
	err := h.server.Serve(listener)
	if errors.Is(err, http.ErrServerClosed) {
		err = nil
	}
	h.err = err
}

// NewLogger builds the process logger from config: console output for
// humans, JSON for log shippers.
func NewLogger(cfg LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var writer io.Writer = os.Stderr
	if cfg.Format != "json" {
		writer = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly}
	}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}
