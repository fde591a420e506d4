package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"powerball/models"
	"powerball/service"
	"powerball/source"

	log "github.com/sirupsen/logrus"
)

// Querier serves stored draws
type Querier interface {
	RecentDraws(ctx context.Context, limit int) ([]*models.Draw, error)
	Frequencies(ctx context.Context, window int) (*models.Frequencies, error)
	LatestDraw(ctx context.Context) (*models.Draw, error)
	RecentRuns(ctx context.Context, limit int) ([]*models.SyncResult, error)
	Ping(ctx context.Context) error
}

// Syncer triggers and reports synchronisations
type Syncer interface {
	Sync(ctx context.Context, opts service.Options) (*models.SyncResult, error)
	Status() service.SyncStatus
}

// Scraper fetches the feed without persisting anything
type Scraper interface {
	FetchYear(ctx context.Context, year int) (*source.FetchResult, error)
	FetchLatest(ctx context.Context) (*source.FetchResult, error)
}

// ChartRenderer draws a frequency table as PNG
type ChartRenderer interface {
	Generate(freq *models.Frequencies) ([]byte, error)
}

// Deps are the collaborators behind the routes. Chart may be nil.
type Deps struct {
	Query   Querier
	Sync    Syncer
	Scraper Scraper
	Chart   ChartRenderer
}

// Server is the HTTP surface of the sync engine
type Server struct {
	deps   Deps
	server *http.Server
}

// New builds a server listening on addr once started
func New(addr string, deps Deps) *Server {
	s := &Server{deps: deps}
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the route table
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/draws", s.handleDraws)
	mux.HandleFunc("GET /api/latest", s.handleLatest)
	mux.HandleFunc("GET /api/frequencies", s.handleFrequencies)
	mux.HandleFunc("GET /api/sync/status", s.handleSyncStatus)
	mux.HandleFunc("GET /api/sync/runs", s.handleSyncRuns)
	mux.HandleFunc("POST /refresh", s.handleRefresh)
	mux.HandleFunc("GET /debug/scrape", s.handleScrape)
	mux.HandleFunc("GET /chart/frequencies.png", s.handleChart)

	return requestLogger(mux)
}

// Start serves in the background and returns a cleanup function that
// shuts the listener down gracefully
func (s *Server) Start() func() {
	go func() {
		log.Infof("HTTP API listening on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("HTTP server error: %v", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.server.Shutdown(ctx); err != nil {
			log.Errorf("HTTP server shutdown error: %v", err)
		}
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		entry := log.WithFields(log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		})
		if rec.status >= http.StatusInternalServerError {
			entry.Warn("HTTP request failed")
		} else {
			entry.Debug("HTTP request")
		}
	})
}
