package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/cornerwise/internal/service"
)

// PrepareNotificationHandler validates a staff notification request and
// returns the draft for review
func PrepareNotificationHandler(notifier *service.Notifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req service.NotificationRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid notification request")
		}

		draft, err := notifier.Prepare(c.UserContext(), req)
		if err != nil {
			return errorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(draft)
	}
}

// ReviewNotificationHandler returns a pending draft
func ReviewNotificationHandler(notifier *service.Notifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		draft, err := notifier.Review(c.UserContext(), c.Params("id"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(draft)
	}
}

// SendNotificationHandler confirms a draft and queues its messages
func SendNotificationHandler(notifier *service.Notifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		note, err := notifier.Send(c.UserContext(), c.Params("id"))
		if err != nil {
			return errorResponse(c, err)
		}
		return c.JSON(note)
	}
}
