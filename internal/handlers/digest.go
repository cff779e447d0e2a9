package handlers

import (
	"time"

	"github.com/a-h/templ"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/jjenkins/cornerwise/internal/service"
)

// DigestPreviewHandler renders the digest a user would receive, without
// sending it. since defaults to one digest window ago.
func DigestPreviewHandler(digests *service.DigestService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user := int64(c.QueryInt("user", 0))
		if user == 0 {
			return badRequest(c, "user is required")
		}

		since, err := timeParam(c, "since")
		if err != nil {
			return badRequest(c, err.Error())
		}
		if since == nil {
			t := time.Now().Add(-service.DefaultDigestWindow)
			since = &t
		}
		until, err := timeParam(c, "until")
		if err != nil {
			return badRequest(c, err.Error())
		}

		page, err := digests.Preview(c.UserContext(), user, *since, until)
		if err != nil {
			return errorResponse(c, err)
		}
		handler := adaptor.HTTPHandler(templ.Handler(page))

		return handler(c)
	}
}
