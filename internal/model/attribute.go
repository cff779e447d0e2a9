package model

import (
	"strings"
	"time"
	"unicode"
)

// Attribute is a named fact about a proposal. It holds a text value or a
// date value, never both.
type Attribute struct {
	ID         int64
	ProposalID int64
	Name       string
	Handle     string
	// Published is when the source was published or the value observed
	Published time.Time
	TextValue *string
	DateValue *time.Time
}

// NewAttribute creates an attribute whose handle is derived from name
func NewAttribute(name string, published time.Time) Attribute {
	return Attribute{
		Name:      name,
		Handle:    Normalize(name),
		Published: published,
	}
}

// SetText replaces the value with a text value
func (a *Attribute) SetText(s string) {
	a.ClearValue()
	a.TextValue = &s
}

// SetDate replaces the value with a date value
func (a *Attribute) SetDate(t time.Time) {
	a.ClearValue()
	a.DateValue = &t
}

// ClearValue removes any value
func (a *Attribute) ClearValue() {
	a.TextValue = nil
	a.DateValue = nil
}

// Value returns the live value as a string, a time.Time or nil
func (a *Attribute) Value() interface{} {
	switch {
	case a.TextValue != nil:
		return *a.TextValue
	case a.DateValue != nil:
		return *a.DateValue
	default:
		return nil
	}
}

// ValueType returns "text", "date" or ""
func (a *Attribute) ValueType() string {
	switch {
	case a.TextValue != nil:
		return "text"
	case a.DateValue != nil:
		return "date"
	default:
		return ""
	}
}

// Normalize turns a display name into a handle: lower case, with runs of
// anything other than letters and digits collapsed to one underscore.
func Normalize(name string) string {
	var b strings.Builder
	pendingSep := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}
	return b.String()
}
