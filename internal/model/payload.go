package model

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// ImportResponse is the document an importer endpoint returns. Cases stay
// raw so that one malformed case does not reject the batch.
type ImportResponse struct {
	Cases []json.RawMessage `json:"cases"`
}

// ProposalPayload is one case as reported by an importer
type ProposalPayload struct {
	CaseNumber   string             `json:"case_number"`
	AllAddresses []string           `json:"all_addresses"`
	Location     *LocationPayload   `json:"location"`
	UpdatedDate  *string            `json:"updated_date"`
	Complete     *bool              `json:"complete"`
	Status       *string            `json:"status"`
	Summary      *string            `json:"summary"`
	Description  *string            `json:"description"`
	Source       *string            `json:"source"`
	RegionName   *string            `json:"region_name"`
	Attributes   []AttributePayload `json:"attributes"`
	Events       []EventPayload     `json:"events"`
	Decisions    *DocumentGroup     `json:"decisions"`
	Reports      *DocumentGroup     `json:"reports"`
	Other        *DocumentGroup     `json:"other"`
}

// LocationPayload is a point as importers send it
type LocationPayload struct {
	Lat  *float64 `json:"lat"`
	Long *float64 `json:"long"`
}

// DocumentGroup holds the links found under one document field
type DocumentGroup struct {
	Links []DocumentLink `json:"links"`
}

// DocumentLink is one document reference
type DocumentLink struct {
	URL   string `json:"url"`
	Title string `json:"title"`
}

// EventPayload is a hearing as reported by an importer
type EventPayload struct {
	Title       string          `json:"title"`
	Start       string          `json:"start"`
	RegionName  string          `json:"region_name"`
	Cases       []string        `json:"cases"`
	Duration    json.RawMessage `json:"duration"`
	AgendaURL   string          `json:"agenda_url"`
	Description string          `json:"description"`
	Location    string          `json:"location"`
}

// AttributePayload is a (name, value) pair. Importers send either a two
// element array or an object with name, value and an optional type of
// "text" or "date".
type AttributePayload struct {
	Name  string
	Value *string
	Type  string
}

// UnmarshalJSON accepts both attribute encodings
func (a *AttributePayload) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var pair []json.RawMessage
		if err := json.Unmarshal(b, &pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("attribute pair has %d elements", len(pair))
		}
		if err := json.Unmarshal(pair[0], &a.Name); err != nil {
			return fmt.Errorf("attribute name: %w", err)
		}
		v, err := scalarString(pair[1])
		if err != nil {
			return fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		a.Value = v
		return nil
	}

	var obj struct {
		Name  string          `json:"name"`
		Value json.RawMessage `json:"value"`
		Type  string          `json:"type"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	v, err := scalarString(obj.Value)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", obj.Name, err)
	}
	a.Name, a.Value, a.Type = obj.Name, v, obj.Type
	return nil
}

// MarshalJSON writes the pair encoding, or the object encoding for typed values
func (a AttributePayload) MarshalJSON() ([]byte, error) {
	if a.Type != "" {
		return json.Marshal(map[string]interface{}{"name": a.Name, "value": a.Value, "type": a.Type})
	}
	return json.Marshal([]interface{}{a.Name, a.Value})
}

func scalarString(raw json.RawMessage) (*string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return &s, nil
	case '{', '[':
		return nil, fmt.Errorf("value must be a scalar")
	default:
		s := string(raw)
		return &s, nil
	}
}

// DecodeProposalPayload parses one case. Shape errors are MalformedPayload;
// a missing case number is MissingRequiredProperty.
func DecodeProposalPayload(b []byte) (*ProposalPayload, error) {
	var p ProposalPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, errors.WithStack(&MalformedPayload{Reason: err.Error()})
	}
	if p.CaseNumber == "" {
		return nil, errors.WithStack(&MissingRequiredProperty{Property: "case_number"})
	}
	return &p, nil
}

// Links returns the document links reported under field
func (p *ProposalPayload) Links(field string) []DocumentLink {
	var g *DocumentGroup
	switch field {
	case FieldDecisions:
		g = p.Decisions
	case FieldReports:
		g = p.Reports
	case FieldOther:
		g = p.Other
	}
	if g == nil {
		return nil
	}
	return g.Links
}
