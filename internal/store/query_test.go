package store

import (
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/jjenkins/cornerwise/internal/geo"
	"github.com/jjenkins/cornerwise/internal/model"
)

func TestProposalQuerySQL(t *testing.T) {
	after := time.Date(2017, 1, 1, 0, 0, 0, 0, time.UTC)
	q := model.ProposalQuery{
		RegionName:   "Somerville, MA",
		Near:         &geo.Circle{Center: geo.Point{Lat: 42.39, Lng: -71.1}, Radius: geo.Meters(100)},
		UpdatedAfter: &after,
		Limit:        10,
	}
	query, args := proposalQuerySQL(q)

	assert.Equal(t, strings.Contains(query, "lower(region_name) = lower($1)"), true)
	assert.Equal(t, strings.Contains(query, "ST_DWithin(location::geography, ST_GeomFromText($2, 4326)::geography, $3)"), true)
	assert.Equal(t, strings.Contains(query, "updated > $4"), true)
	assert.Equal(t, strings.HasSuffix(query, "LIMIT $5"), true)
	assert.Equal(t, len(args), 5)
	assert.Equal(t, args[1], "POINT(-71.1 42.39)")
}

func TestProposalQuerySQLEmpty(t *testing.T) {
	query, args := proposalQuerySQL(model.ProposalQuery{})
	assert.Equal(t, strings.Contains(query, "WHERE"), false)
	assert.Equal(t, len(args), 0)
}

func TestPrefixed(t *testing.T) {
	assert.Equal(t, prefixed("e", "id, title,\n\tdate"), "e.id, e.title, e.date")
}
