package handlers

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/store"
)

// DefaultProposalLimit caps proposal listings that give no limit
const DefaultProposalLimit = 200

// ProposalQueryFromRequest builds a proposal query from query parameters:
// region, status, address, case (comma separated), lat+lng+radius (feet),
// created_after, updated_after, updated_until and limit
func ProposalQueryFromRequest(c *fiber.Ctx) (model.ProposalQuery, error) {
	q := model.ProposalQuery{
		RegionName:  c.Query("region"),
		Status:      c.Query("status"),
		Address:     c.Query("address"),
		CaseNumbers: splitList(c.Query("case")),
		Limit:       c.QueryInt("limit", DefaultProposalLimit),
	}

	if c.Query("lat") != "" || c.Query("lng") != "" {
		lat, err := strconv.ParseFloat(c.Query("lat"), 64)
		if err != nil {
			return q, &model.MalformedQuery{Reason: "lat must be a number"}
		}
		lng, err := strconv.ParseFloat(c.Query("lng"), 64)
		if err != nil {
			return q, &model.MalformedQuery{Reason: "lng must be a number"}
		}
		radius, err := strconv.ParseFloat(c.Query("radius", "0"), 64)
		if err != nil {
			return q, &model.MalformedQuery{Reason: "radius must be a number"}
		}
		q.Near = &geo.Circle{Center: geo.Point{Lat: lat, Lng: lng}, Radius: geo.Feet(radius)}
	}

	var err error
	if q.CreatedAfter, err = timeParam(c, "created_after"); err != nil {
		return q, &model.MalformedQuery{Reason: err.Error()}
	}
	if q.UpdatedAfter, err = timeParam(c, "updated_after"); err != nil {
		return q, &model.MalformedQuery{Reason: err.Error()}
	}
	if q.UpdatedUntil, err = timeParam(c, "updated_until"); err != nil {
		return q, &model.MalformedQuery{Reason: err.Error()}
	}
	return q, q.Validate()
}

// ProposalsHandler lists proposals matching the request's filters
func ProposalsHandler(proposals store.Proposals) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := ProposalQueryFromRequest(c)
		if err != nil {
			return errorResponse(c, err)
		}

		found, err := proposals.FindProposals(c.UserContext(), q)
		if err != nil {
			return errorResponse(c, err)
		}

		views := make([]model.ProposalView, 0, len(found))
		for i := range found {
			views = append(views, found[i].View())
		}
		return c.JSON(fiber.Map{"proposals": views})
	}
}

type attributeView struct {
	Name      string      `json:"name"`
	Handle    string      `json:"handle"`
	Value     interface{} `json:"value"`
	Published string      `json:"published"`
}

type changesetView struct {
	ID      int64         `json:"id"`
	Created float64       `json:"created"`
	Changes model.Changes `json:"changes"`
}

type proposalDetailView struct {
	model.ProposalView
	Attributes []attributeView      `json:"attributes"`
	Documents  []model.DocumentView `json:"documents"`
	Events     []model.EventView    `json:"events"`
	Changesets []changesetView      `json:"changesets"`
}

// ProposalDetailHandler returns one proposal with its attributes,
// documents, images, events and change history
func ProposalDetailHandler(proposals store.Proposals) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := idParam(c, "id")
		if err != nil {
			return badRequest(c, "Invalid proposal id")
		}

		detail, err := proposals.GetProposal(c.UserContext(), id)
		if err != nil {
			return errorResponse(c, err)
		}

		view := proposalDetailView{
			ProposalView: detail.Proposal.View(),
			Attributes:   []attributeView{},
			Documents:    []model.DocumentView{},
			Events:       []model.EventView{},
			Changesets:   []changesetView{},
		}
		for i := range detail.Images {
			view.Images = append(view.Images, detail.Images[i].View())
		}
		for i := range detail.Attributes {
			a := &detail.Attributes[i]
			view.Attributes = append(view.Attributes, attributeView{
				Name:      a.Name,
				Handle:    a.Handle,
				Value:     a.Value(),
				Published: a.Published.Format(time.RFC3339),
			})
		}
		for i := range detail.Documents {
			view.Documents = append(view.Documents, detail.Documents[i].View())
		}
		for i := range detail.Events {
			view.Events = append(view.Events, detail.Events[i].View())
		}
		for _, cs := range detail.Changesets {
			view.Changesets = append(view.Changesets, changesetView{
				ID:      cs.ID,
				Created: model.Timestamp(cs.Created),
				Changes: cs.Changes,
			})
		}
		return c.JSON(view)
	}
}
