package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/klasio/rollcall/internal/config"
	"github.com/klasio/rollcall/internal/constants"
	"github.com/klasio/rollcall/internal/faceapi"
	"github.com/klasio/rollcall/internal/store"
	"github.com/klasio/rollcall/internal/web/middleware"
)

// Server is the HTTP boundary of the attendance engine.
type Server struct {
	config     *config.Config
	router     *chi.Mux
	httpServer *http.Server

	students store.StudentWriter
	records  store.AttendanceWriter
	detector faceapi.Detector
	index    *store.StudentIndex
}

// NewServer creates the web server. The index may be nil; identify then
// falls back to the store's nearest neighbor query.
func NewServer(cfg *config.Config, host string, port int, students store.StudentWriter, records store.AttendanceWriter, detector faceapi.Detector, index *store.StudentIndex) *Server {
	r := chi.NewRouter()

	s := &Server{
		config:   cfg,
		router:   r,
		students: students,
		records:  records,
		detector: detector,
		index:    index,
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.Timeout(constants.DefaultHandlerTimeout * time.Second))
	r.Use(middleware.CORS())

	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", host, port),
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute, // archives with many group photos upload slowly
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
