package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Get("/status", s.handleGetDeviceStatus)
					r.Post("/commands", s.handleSendCommands)
				})
			})

			// WebSocket status feed
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}
