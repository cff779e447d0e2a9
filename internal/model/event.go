package model

import (
	"time"
)

// DefaultEventLocation is used when an importer does not report a venue
const DefaultEventLocation = "Somerville City Hall, 93 Highland Ave"

// Event is a hearing or meeting. Date, Title and RegionName identify it.
type Event struct {
	ID          int64
	Title       string
	Date        time.Time
	Duration    *time.Duration
	Location    string
	RegionName  string
	Description string
	Minutes     string
	Created     time.Time
}

// SameAs reports whether e and o share the identifying triple
func (e *Event) SameAs(o *Event) bool {
	return e.Title == o.Title && e.RegionName == o.RegionName && e.Date.Equal(o.Date)
}

// EventView is the serialized form of an event
type EventView struct {
	ID         int64     `json:"id"`
	Title      string    `json:"title"`
	Date       time.Time `json:"date"`
	Duration   string    `json:"duration,omitempty"`
	Location   string    `json:"location"`
	RegionName string    `json:"region_name"`
	Minutes    string    `json:"minutes,omitempty"`
}

// View converts the event to its serialized form
func (e *Event) View() EventView {
	v := EventView{
		ID:         e.ID,
		Title:      e.Title,
		Date:       e.Date,
		Location:   e.Location,
		RegionName: e.RegionName,
		Minutes:    e.Minutes,
	}
	if e.Duration != nil {
		v.Duration = e.Duration.String()
	}
	return v
}
