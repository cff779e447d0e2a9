package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ChangesVersion is the current changeset payload schema version.
// Version 0 payloads predate the version field and share the v1 shape.
const ChangesVersion = 1

// Change is one field's transition
type Change struct {
	Name string      `json:"name"`
	Old  interface{} `json:"old"`
	New  interface{} `json:"new"`
}

// Changes is the payload of a changeset
type Changes struct {
	Version    int      `json:"version"`
	Properties []Change `json:"properties"`
	Attributes []Change `json:"attributes"`
}

// Empty reports whether neither list has entries
func (c Changes) Empty() bool {
	return len(c.Properties) == 0 && len(c.Attributes) == 0
}

// Validate checks the payload against the schema for its version
func (c Changes) Validate() error {
	if c.Version < 0 || c.Version > ChangesVersion {
		return fmt.Errorf("unsupported changeset version %d", c.Version)
	}
	for i, ch := range c.Properties {
		if ch.Name == "" {
			return fmt.Errorf("property change %d has no name", i)
		}
	}
	for i, ch := range c.Attributes {
		if ch.Name == "" {
			return fmt.Errorf("attribute change %d has no name", i)
		}
	}
	return nil
}

// EncodeChanges validates c and serializes it at the current version
func EncodeChanges(c Changes) ([]byte, error) {
	c.Version = ChangesVersion
	if c.Properties == nil {
		c.Properties = []Change{}
	}
	if c.Attributes == nil {
		c.Attributes = []Change{}
	}
	if err := c.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid changeset")
	}
	return json.Marshal(c)
}

// DecodeChanges parses a stored payload, migrating older versions
func DecodeChanges(b []byte) (Changes, error) {
	var c Changes
	if len(b) == 0 {
		return Changes{Version: ChangesVersion}, nil
	}
	if err := json.Unmarshal(b, &c); err != nil {
		return Changes{}, errors.Wrap(err, "malformed changeset")
	}
	if err := c.Validate(); err != nil {
		return Changes{}, err
	}
	if c.Version == 0 {
		c.Version = ChangesVersion
	}
	return c, nil
}

// Changeset is an immutable record of one update to a proposal
type Changeset struct {
	ID         int64
	ProposalID int64
	Created    time.Time
	Changes    Changes
}
