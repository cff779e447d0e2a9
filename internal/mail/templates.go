package mail

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/jjenkins/cornerwise/internal/model"
)

// Site describes where links in outgoing mail point
type Site struct {
	Name string
	Root string
}

// ProposalURL links to a proposal on the site
func (s Site) ProposalURL(id int64) string {
	return fmt.Sprintf("%s/proposals/%d", strings.TrimRight(s.Root, "/"), id)
}

// Render renders c to a string
func Render(ctx context.Context, c templ.Component) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(ctx, &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(s string) {
	if h.err == nil {
		_, h.err = io.WriteString(h.w, s)
	}
}

func (h *htmlWriter) text(s string) {
	h.raw(templ.EscapeString(s))
}

func (h *htmlWriter) printf(format string, args ...interface{}) {
	h.raw(fmt.Sprintf(format, args...))
}

func formatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "(none)"
	case time.Time:
		return val.Format("Jan 2, 2006 3:04 PM")
	case string:
		if val == "" {
			return "(none)"
		}
		return val
	default:
		return fmt.Sprint(val)
	}
}

func changeList(h *htmlWriter, title string, changes []model.Change) {
	if len(changes) == 0 {
		return
	}
	h.raw(`<h4>`)
	h.text(title)
	h.raw(`</h4><ul class="changes">`)
	for _, c := range changes {
		h.raw(`<li><strong>`)
		h.text(c.Name)
		h.raw(`</strong>: `)
		h.text(formatValue(c.Old))
		h.raw(` &rarr; `)
		h.text(formatValue(c.New))
		h.raw(`</li>`)
	}
	h.raw(`</ul>`)
}

func summaryEntry(h *htmlWriter, site Site, e *model.SummaryEntry) {
	p := e.Proposal
	h.raw(`<div class="proposal">`)
	h.printf(`<h3><a href="%s">`, templ.EscapeString(site.ProposalURL(p.ID)))
	h.text(p.Address)
	h.raw(`</a> <small>`)
	h.text(p.CaseNumber)
	h.raw(`</small></h3>`)
	if p.Summary != "" {
		h.raw(`<p>`)
		h.text(p.Summary)
		h.raw(`</p>`)
	}
	images := p.Images
	if !e.New {
		images = e.Images
	}
	for _, img := range images {
		src := img.Thumb
		if src == "" {
			src = img.Src
		}
		h.printf(`<img src="%s" alt="" width="160"/>`, templ.EscapeString(src))
	}
	changeList(h, "Changed", e.Properties)
	changeList(h, "Details", e.Attributes)
	if len(e.Documents) > 0 {
		h.raw(`<h4>New documents</h4><ul class="documents">`)
		for _, d := range e.Documents {
			h.printf(`<li><a href="%s">`, templ.EscapeString(d.URL))
			h.text(d.Title)
			h.raw(`</a></li>`)
		}
		h.raw(`</ul>`)
	}
	h.raw(`</div>`)
}

// DigestEmail renders a merged summary for one recipient
func DigestEmail(site Site, summary *model.Summary, events []model.Event) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<html><body><h1>`)
		h.text(site.Name)
		h.raw(`</h1>`)
		h.printf(`<p>%d new and %d updated proposals near you.</p>`, summary.New, summary.Updated)

		var updated []*model.SummaryEntry
		newHeading := false
		for _, e := range summary.Changes.Entries() {
			if !e.New {
				updated = append(updated, e)
				continue
			}
			if !newHeading {
				h.raw(`<h2>New proposals</h2>`)
				newHeading = true
			}
			summaryEntry(h, site, e)
		}
		if len(updated) > 0 {
			h.raw(`<h2>Updated proposals</h2>`)
			for _, e := range updated {
				summaryEntry(h, site, e)
			}
		}

		if len(events) > 0 {
			h.raw(`<h2>Upcoming hearings</h2><ul class="events">`)
			for _, ev := range events {
				h.raw(`<li>`)
				h.text(ev.Date.Format("Mon Jan 2, 3:04 PM"))
				h.raw(` &ndash; `)
				h.text(ev.Title)
				h.raw(` (`)
				h.text(ev.Location)
				h.raw(`)</li>`)
			}
			h.raw(`</ul>`)
		}
		h.raw(`</body></html>`)
		return h.err
	})
}

// StaffNotificationEmail renders a staff message. body is already expanded
// and converted to HTML line breaks; it is written unescaped.
func StaffNotificationEmail(site Site, title, body string, related []string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		h := &htmlWriter{w: w}
		h.raw(`<html><body><h1>`)
		h.text(title)
		h.raw(`</h1><div class="message">`)
		h.raw(body)
		h.raw(`</div>`)
		if len(related) > 0 {
			h.raw(`<p>You are receiving this because you subscribed to updates near:</p><ul>`)
			for _, r := range related {
				h.raw(`<li>`)
				h.text(r)
				h.raw(`</li>`)
			}
			h.raw(`</ul>`)
		}
		h.raw(`<p>`)
		h.text(site.Name)
		h.raw(`</p></body></html>`)
		return h.err
	})
}
