package server

import (
	"context"
	"net/http"

	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/cache"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/config"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/model"
	"github.com/DDatiOSCheat/iOS-App-Version-Tracker/internal/pipeline"
)

// Tracker is the part of the pipeline the HTTP handlers use.
type Tracker interface {
	RunCycle(ctx context.Context, appID, country, lang string) (model.Verdict, error)
	Snapshot(ctx context.Context, appID, country string) (pipeline.Snapshot, error)
	Saved(ctx context.Context, appID, country string) (*model.PersistedHistory, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	cfg     *config.Config
	cache   *cache.Cache
	tracker Tracker
}

func New(cfg *config.Config, cache *cache.Cache, tracker Tracker) *Server {
	return &Server{cfg: cfg, cache: cache, tracker: tracker}
}

// Router returns the HTTP handler with all routes registered.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/changelog", s.handleChangelog)
	mux.HandleFunc("/api/refresh", s.handleRefresh)
	mux.HandleFunc("/healthz", s.handleHealth)
	return s.corsMiddleware(mux)
}
