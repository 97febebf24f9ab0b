// Package api exposes the session registry over HTTP.
package api

import (
	"context"
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	model "github.com/viant/tapedeck/model/session"
)

// Controller is the session registry surface served over HTTP
type Controller interface {
	Spawn(ctx context.Context, cfg *model.Config) error
	Stop(ctx context.Context, id uint32) error
	Navigate(ctx context.Context, id uint32, url string) error
	List(ctx context.Context) ([]*model.Info, error)
}

// Defaults fill the parameters a spawn request leaves out
type Defaults struct {
	FrameSize model.FrameSize
	EncodeDir string
	Preview   bool
}

// NewRouter creates the router with every route and middleware
func NewRouter(controller Controller, defaults Defaults, hub *Hub, logger *slog.Logger) *chi.Mux {
	if logger == nil {
		logger = slog.Default()
	}
	r := chi.NewRouter()
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	sessions := NewSessionHandler(controller, defaults)
	r.Get("/health", Health)
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/stop", sessions.StopByQuery)
	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", sessions.List)
		r.Post("/", sessions.Spawn)
		r.Delete("/{id}", sessions.Stop)
		r.Post("/{id}/navigate", sessions.Navigate)
	})
	if hub != nil {
		r.Get("/events", hub.Serve)
	}
	return r
}
