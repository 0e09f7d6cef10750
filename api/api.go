// Package api exposes the compose, send and schedule operations over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pure-golang/bannermail/banner"
	"github.com/pure-golang/bannermail/dispatch"
	"github.com/pure-golang/bannermail/httpserver/middleware"
	"github.com/pure-golang/bannermail/scheduler"
)

const maxFormMemory = 32 << 20

// Jobs lists and cancels pending scheduled sends.
type Jobs interface {
	Pending() []scheduler.JobInfo
	Cancel(id string) error
}

// Handler serves the HTTP API.
type Handler struct {
	service *dispatch.Service
	banners *banner.Generator
	jobs    Jobs
	logger  *slog.Logger
}

// HandlerOptions contains options for creating a Handler.
type HandlerOptions struct {
	Logger *slog.Logger
}

func NewHandler(service *dispatch.Service, banners *banner.Generator, jobs Jobs, options *HandlerOptions) *Handler {
	if options == nil {
		options = &HandlerOptions{}
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	return &Handler{
		service: service,
		banners: banners,
		jobs:    jobs,
		logger:  options.Logger.WithGroup("api"),
	}
}

// Router mounts every route behind the recovery and monitoring middleware.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery, middleware.Monitoring)

	r.Get("/healthz", h.health)
	r.Post("/recipients/preview", h.previewRecipients)
	r.Post("/banner", h.renderBanner)
	r.Post("/send", h.send)
	r.Post("/schedule", h.schedule)
	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", h.listJobs)
		r.Delete("/{id}", h.cancelJob)
	})

	return r
}
