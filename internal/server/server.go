// Package server exposes the publish pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/book-expert/logger"

	"github.com/book-expert/automuse/internal/core"
	"github.com/book-expert/automuse/internal/prompt"
)

// Defaults.
const (
	DefaultListenAddress = ":5000"
	DefaultPrompt        = "ai ambient space track"
	DefaultAllowedOrigin = "*"
)

const (
	statusSuccess = "success"
	statusError   = "error"
	statusOK      = "ok"

	maxRequestBytes   = 1 << 20
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 30 * time.Second
)

const (
	logFmtListening    = "HTTP server listening on %s"
	logFmtRequest      = "Generate request for prompt: '%s'"
	logFmtGenerateFail = "Generate request failed: %v"
	logFmtListFail     = "List request failed: %v"
	logFmtEncodeFail   = "Failed to encode response: %v"
	logShuttingDown    = "HTTP server shutting down"
)

var (
	// ErrPublisherNil indicates a missing publisher.
	ErrPublisherNil = errors.New("publisher cannot be nil")
	// ErrListerNil indicates a missing track lister.
	ErrListerNil = errors.New("track lister cannot be nil")
	// ErrLoggerNil indicates a missing logger.
	ErrLoggerNil = errors.New("logger cannot be nil")
)

// Config controls the HTTP surface.
type Config struct {
	ListenAddress  string
	DefaultPrompt  string
	AllowedOrigin  string
	// MaxPromptBytes rejects longer prompts with 400. Zero accepts any length.
	MaxPromptBytes int
}

// GenerateRequest is the body of POST /generate.
type GenerateRequest struct {
	Prompt string `json:"prompt"`
}

// GenerateResponse is returned by POST /generate.
type GenerateResponse struct {
	Status  string `json:"status"`
	URL     string `json:"url,omitempty"`
	Message string `json:"message,omitempty"`
}

// ListResponse is returned by GET /list.
type ListResponse struct {
	Tracks []string `json:"tracks"`
}

// ErrorResponse is returned by GET /list on failure.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is returned by GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// Server serves generate, list and health requests.
type Server struct {
	publisher core.Publisher
	lister    core.TrackLister
	cfg       Config
	log       *logger.Logger
}

// New creates a Server, filling unset config fields with defaults.
func New(publisher core.Publisher, lister core.TrackLister, cfg Config, log *logger.Logger) (*Server, error) {
	switch {
	case publisher == nil:
		return nil, ErrPublisherNil
	case lister == nil:
		return nil, ErrListerNil
	case log == nil:
		return nil, ErrLoggerNil
	}

	if cfg.ListenAddress == "" {
		cfg.ListenAddress = DefaultListenAddress
	}

	if cfg.DefaultPrompt == "" {
		cfg.DefaultPrompt = DefaultPrompt
	}

	if cfg.AllowedOrigin == "" {
		cfg.AllowedOrigin = DefaultAllowedOrigin
	}

	return &Server{publisher: publisher, lister: lister, cfg: cfg, log: log}, nil
}

// Handler returns the routes wrapped in the CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /generate", s.handleGenerate)
	mux.HandleFunc("GET /list", s.handleList)
	mux.HandleFunc("GET /health", s.handleHealth)

	return s.cors(mux)
}

// Run listens on the configured address until ctx is cancelled, then shuts
// down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.cfg.ListenAddress, err)
	}

	return s.Serve(ctx, listener)
}

// Serve runs the server on listener until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	serveErr := make(chan error, 1)

	go func() {
		s.log.Info(logFmtListening, listener.Addr())
		serveErr <- httpServer.Serve(listener)
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.log.Info(logShuttingDown)

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		return fmt.Errorf("http server shutdown failed: %w", err)
	}

	<-serveErr

	return nil
}

func (s *Server) handleGenerate(writer http.ResponseWriter, request *http.Request) {
	var body GenerateRequest

	// An empty body means the default prompt.
	decodeErr := json.NewDecoder(http.MaxBytesReader(writer, request.Body, maxRequestBytes)).Decode(&body)
	if decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		s.writeJSON(writer, http.StatusBadRequest, GenerateResponse{
			Status:  statusError,
			URL:     "",
			Message: "invalid request body: " + decodeErr.Error(),
		})

		return
	}

	text := prompt.Normalize(body.Prompt)
	if text == "" {
		text = s.cfg.DefaultPrompt
	}

	err := prompt.ValidateWithin(text, s.cfg.MaxPromptBytes)
	if err != nil {
		s.writeJSON(writer, http.StatusBadRequest, GenerateResponse{
			Status:  statusError,
			URL:     "",
			Message: err.Error(),
		})

		return
	}

	s.log.Info(logFmtRequest, text)

	publication, err := s.publisher.Publish(request.Context(), text)
	if err != nil {
		s.log.Error(logFmtGenerateFail, err)
		s.writeJSON(writer, http.StatusInternalServerError, GenerateResponse{
			Status:  statusError,
			URL:     "",
			Message: err.Error(),
		})

		return
	}

	s.writeJSON(writer, http.StatusOK, GenerateResponse{
		Status:  statusSuccess,
		URL:     publication.Locator,
		Message: "",
	})
}

func (s *Server) handleList(writer http.ResponseWriter, request *http.Request) {
	tracks, err := s.lister.List(request.Context())
	if err != nil {
		s.log.Error(logFmtListFail, err)
		s.writeJSON(writer, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})

		return
	}

	locators := make([]string, 0, len(tracks))
	for _, track := range tracks {
		locators = append(locators, track.Locator)
	}

	s.writeJSON(writer, http.StatusOK, ListResponse{Tracks: locators})
}

func (s *Server) handleHealth(writer http.ResponseWriter, _ *http.Request) {
	s.writeJSON(writer, http.StatusOK, HealthResponse{Status: statusOK})
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		header := writer.Header()
		header.Set("Access-Control-Allow-Origin", s.cfg.AllowedOrigin)
		header.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		header.Set("Access-Control-Allow-Headers", "Content-Type")

		if request.Method == http.MethodOptions {
			writer.WriteHeader(http.StatusNoContent)

			return
		}

		next.ServeHTTP(writer, request)
	})
}

func (s *Server) writeJSON(writer http.ResponseWriter, status int, payload any) {
	writer.Header().Set("Content-Type", "application/json")
	writer.WriteHeader(status)

	err := json.NewEncoder(writer).Encode(payload)
	if err != nil {
		s.log.Error(logFmtEncodeFail, err)
	}
}
