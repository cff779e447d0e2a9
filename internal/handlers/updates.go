package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/cornerwise/internal/service"
)

// UpdatesHandler summarizes what changed since the `since` parameter for
// the proposals matching the request's filters
func UpdatesHandler(summarizer *service.Summarizer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := ProposalQueryFromRequest(c)
		if err != nil {
			return errorResponse(c, err)
		}
		q.Limit = c.QueryInt("limit", 0)

		since, err := timeParam(c, "since")
		if err != nil {
			return badRequest(c, err.Error())
		}
		if since == nil {
			return badRequest(c, "since is required")
		}
		until, err := timeParam(c, "until")
		if err != nil {
			return badRequest(c, err.Error())
		}
		if until != nil && until.Before(*since) {
			return badRequest(c, "until precedes since")
		}

		summary, err := summarizer.Summarize(c.UserContext(), q, *since, until)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(summary)
	}
}

// EventsHandler lists upcoming hearings, optionally for one region
func EventsHandler(summarizer *service.Summarizer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		region := c.Query("region")
		limit := c.QueryInt("limit", 20)

		after, err := timeParam(c, "after")
		if err != nil {
			return badRequest(c, err.Error())
		}
		if after == nil {
			now := time.Now()
			after = &now
		}

		events, err := summarizer.UpcomingEvents(c.UserContext(), *after, region, limit)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(fiber.Map{"events": events})
	}
}
