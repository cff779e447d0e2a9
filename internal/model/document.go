package model

import (
	"time"
)

// Document fields reported by importers
const (
	FieldDecisions = "decisions"
	FieldReports   = "reports"
	FieldOther     = "other"
)

// DocumentFields lists the payload keys that carry document links, in order
var DocumentFields = []string{FieldDecisions, FieldReports, FieldOther}

// Document is a file attached to a proposal. URL is unique per proposal.
type Document struct {
	ID         int64
	ProposalID int64
	EventID    *int64
	URL        string
	Title      string
	Field      string
	Created    time.Time
	Published  *time.Time
	// Local copies, empty when not cached
	DocumentPath  string
	FulltextPath  string
	ThumbnailPath string
	Encoding      string
}

// BlobPaths returns every locally cached file owned by the document
func (d *Document) BlobPaths() []string {
	return nonEmpty(d.DocumentPath, d.ThumbnailPath, d.FulltextPath)
}

// DocumentView is the serialized form of a document
type DocumentView struct {
	ID        int64      `json:"id"`
	URL       string     `json:"url"`
	Title     string     `json:"title"`
	Field     string     `json:"field"`
	Published *time.Time `json:"published,omitempty"`
	Thumb     string     `json:"thumb,omitempty"`
}

// View converts the document to its serialized form
func (d *Document) View() DocumentView {
	return DocumentView{
		ID:        d.ID,
		URL:       d.URL,
		Title:     d.Title,
		Field:     d.Field,
		Published: d.Published,
		Thumb:     d.ThumbnailPath,
	}
}

// Image is a picture attached to a proposal, optionally extracted from a
// document. URL is unique.
type Image struct {
	ID            int64
	ProposalID    int64
	DocumentID    *int64
	URL           string
	ImagePath     string
	ThumbnailPath string
	Width         int
	Height        int
	SkipCache     bool
	// Lower values are shown first
	Priority int
	Source   string
	Created  time.Time
}

// BlobPaths returns every locally cached file owned by the image
func (i *Image) BlobPaths() []string {
	return nonEmpty(i.ImagePath, i.ThumbnailPath)
}

// ImageView is the serialized form of an image
type ImageView struct {
	ID    int64  `json:"id"`
	Src   string `json:"src"`
	Thumb string `json:"thumb,omitempty"`
}

// View converts the image to its serialized form
func (i *Image) View() ImageView {
	src := i.ImagePath
	if src == "" {
		src = i.URL
	}
	return ImageView{ID: i.ID, Src: src, Thumb: i.ThumbnailPath}
}

func nonEmpty(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
