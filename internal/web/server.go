// Package web serves the browser UI and the HTTP API for fetch jobs.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quantrail/barfetch/internal/config"
	"github.com/quantrail/barfetch/internal/job"
	"github.com/quantrail/barfetch/internal/logger"
	"github.com/quantrail/barfetch/pkg/errors"
	"github.com/quantrail/barfetch/pkg/marketdata"
	"github.com/quantrail/barfetch/pkg/marketdata/provider"
	"github.com/quantrail/barfetch/pkg/marketdata/writer"
)

//go:embed index.html
var indexHTML []byte

// Server exposes the fetch pipeline over HTTP: session login, CSV
// symbol uploads, job tracking over WebSocket, preview and download.
type Server struct {
	config  *config.Config
	logger  *logger.Logger
	client  *marketdata.Client
	manager *job.Manager

	httpServer *http.Server
	listener   net.Listener

	upgrader websocket.Upgrader
}

// NewServer builds the market data client from the configuration and
// wires it to a fresh job manager.
func NewServer(cfg *config.Config, log *logger.Logger) (*Server, error) {
	client, err := marketdata.NewClient(marketdata.ClientConfig{
		ProviderType:  provider.ProviderType(cfg.Provider),
		WriterType:    marketdata.WriterType(cfg.Writer),
		DataPath:      cfg.DataDir,
		KiteAPIKey:    cfg.Kite.APIKey,
		KiteAPISecret: cfg.Kite.APISecret,
		KiteExchange:  cfg.Kite.Exchange,
		PolygonAPIKey: cfg.Polygon.APIKey,
		FlushPolicy: writer.FlushPolicy{
			Interval: cfg.AutosaveInterval(),
			MaxRows:  cfg.Autosave.MaxRows,
		},
	})
	if err != nil {
		return nil, err
	}

	return NewServerWithClient(cfg, log, client), nil
}

// NewServerWithClient wires an already-built client, used by tests to
// substitute fake providers.
func NewServerWithClient(cfg *config.Config, log *logger.Logger, client *marketdata.Client) *Server {
	return &Server{
		config:  cfg,
		logger:  log,
		client:  client,
		manager: job.NewManager(log),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(_ *http.Request) bool { return true },
		},
	}
}

// Router builds the HTTP routes.
func (s *Server) Router() http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/", s.handleIndex).Methods("GET")
	router.HandleFunc("/callback", s.handleCallback).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/session", s.handleSession).Methods("GET")
	api.HandleFunc("/providers", s.handleProviders).Methods("GET")
	api.HandleFunc("/providers/{name}/schema", s.handleProviderSchema).Methods("GET")
	api.HandleFunc("/jobs", s.handleCreateJob).Methods("POST")
	api.HandleFunc("/jobs", s.handleListJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", s.handleGetJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/ws", s.handleJobWebSocket).Methods("GET")
	api.HandleFunc("/jobs/{id}/cancel", s.handleCancelJob).Methods("POST")
	api.HandleFunc("/jobs/{id}/preview", s.handlePreviewJob).Methods("GET")
	api.HandleFunc("/jobs/{id}/download", s.handleDownloadJob).Methods("GET")

	router.Use(s.loggingMiddleware)

	return router
}

// Start begins serving on the configured bind address. If the address
// is empty or ":0", a random available port is used.
func (s *Server) Start(address string) error {
	if address == "" {
		address = ":0"
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != http.ErrServerClosed {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()

	s.logger.Info("server listening", zap.String("address", s.Address()))

	return nil
}

// Shutdown stops the HTTP server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	return s.httpServer.Shutdown(ctx)
}

// Address returns the address the server is listening on.
func (s *Server) Address() string {
	if s.listener == nil {
		return ""
	}

	return s.listener.Addr().String()
}

// BaseURL returns the base URL for the server.
func (s *Server) BaseURL() string {
	return "http://" + s.Address()
}

// loggingMiddleware logs each request with its duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)

		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

// writeJSON serializes v with the standard content type.
func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError maps typed error codes onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidParameter,
		errors.ErrCodeInvalidConfiguration,
		errors.ErrCodeInvalidDateRange,
		errors.ErrCodeInvalidSymbolList,
		errors.ErrCodeInvalidProvider,
		errors.ErrCodeInvalidWriter:
		status = http.StatusBadRequest
	case errors.ErrCodeSessionRequired:
		status = http.StatusUnauthorized
	case errors.ErrCodeLoginFailed:
		status = http.StatusBadGateway
	case errors.ErrCodeJobNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeJobNotRunning:
		status = http.StatusConflict
	}

	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}
