package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/store"
)

type imageRequest struct {
	URL      string `json:"url"`
	Priority int    `json:"priority"`
	Source   string `json:"source"`
}

// AddImageHandler attaches an image to a proposal. Posting a known URL
// refreshes the stored image.
func AddImageHandler(proposals store.Proposals) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := idParam(c, "id")
		if err != nil {
			return badRequest(c, "Invalid proposal id")
		}
		var req imageRequest
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, "Invalid image")
		}
		if !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
			return badRequest(c, "url must be http or https")
		}

		img := &model.Image{
			ProposalID: id,
			URL:        req.URL,
			Priority:   req.Priority,
			Source:     req.Source,
		}
		if err := proposals.AddImage(c.UserContext(), img); err != nil {
			return errorResponse(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(img.View())
	}
}

// DeleteDocumentHandler removes a document, its extracted images and
// their cached files
func DeleteDocumentHandler(proposals store.Proposals) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := idParam(c, "id")
		if err != nil {
			return badRequest(c, "Invalid document id")
		}
		if err := proposals.DeleteDocument(c.UserContext(), id); err != nil {
			return errorResponse(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DeleteImageHandler removes an image and its cached files
func DeleteImageHandler(proposals store.Proposals) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := idParam(c, "id")
		if err != nil {
			return badRequest(c, "Invalid image id")
		}
		if err := proposals.DeleteImage(c.UserContext(), id); err != nil {
			return errorResponse(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}
