package handler

import (
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the alert API under r
func RegisterRoutes(r chi.Router, alerts *AlertHandler, notifications *NotificationHandler) {
	r.Route("/api/v1/alerts", func(r chi.Router) {
		r.Get("/", alerts.List)
		r.Get("/summary", alerts.Summary)
		r.Get("/digest", alerts.Digest)
		r.Get("/digest/whatsapp", alerts.DigestWhatsApp)

		r.Get("/notifications", notifications.List)
		r.Put("/notifications/{id}/read", notifications.MarkRead)

		r.Get("/{id}", alerts.Get)
		r.Get("/{id}/whatsapp", alerts.WhatsApp)
	})
}
