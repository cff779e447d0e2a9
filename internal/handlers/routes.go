package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/cornerwise/internal/config"
	"github.com/jjenkins/cornerwise/internal/service"
	"github.com/jjenkins/cornerwise/internal/store"
)

// Deps are the services the routes are served from
type Deps struct {
	Proposals  store.Proposals
	Summarizer *service.Summarizer
	Notifier   *service.Notifier
	Digests    *service.DigestService
	Metrics    *service.MetricsService
	Regions    *config.Regions
}

// Register mounts every route on app
func Register(app *fiber.App, d Deps) {
	app.Get("/", HomeHandler(d.Metrics, d.Regions))

	// Proposal routes
	app.Get("/proposals", ProposalsHandler(d.Proposals))
	app.Get("/proposals/:id", ProposalDetailHandler(d.Proposals))
	app.Post("/proposals/:id/images", AddImageHandler(d.Proposals))
	app.Delete("/documents/:id", DeleteDocumentHandler(d.Proposals))
	app.Delete("/images/:id", DeleteImageHandler(d.Proposals))

	// Summaries
	app.Get("/updates", UpdatesHandler(d.Summarizer))
	app.Get("/events", EventsHandler(d.Summarizer))
	app.Get("/digest/preview", DigestPreviewHandler(d.Digests))

	// Staff notifications
	app.Post("/notifications", PrepareNotificationHandler(d.Notifier))
	app.Get("/notifications/:id", ReviewNotificationHandler(d.Notifier))
	app.Post("/notifications/:id/send", SendNotificationHandler(d.Notifier))
}
