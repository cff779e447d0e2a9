package mail

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/jjenkins/cornerwise/internal/model"
)

func TestDispatcherDeliversQueuedMessages(t *testing.T) {
	d := &MemoryDeliverer{}
	disp := NewDispatcher(d, 4)
	disp.Start(2)

	for i := 0; i < 10; i++ {
		assert.Equal(t, disp.Send(context.Background(), NewMessage(KindDigest, "a@example.com", "hi", "<p/>")), nil)
	}
	disp.Close()

	assert.Equal(t, len(d.Messages()), 10)
	assert.Equal(t, disp.Send(context.Background(), NewMessage(KindDigest, "a@example.com", "hi", "")), ErrDispatcherClosed)
}

func TestNewMessageIDsAreUnique(t *testing.T) {
	a := NewMessage(KindDigest, "a@example.com", "s", "")
	b := NewMessage(KindDigest, "a@example.com", "s", "")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestDigestEmailEscapes(t *testing.T) {
	s := model.NewSummary(time.Time{}, nil)
	s.Changes.Set(1, &model.SummaryEntry{
		ProposalID: 1,
		New:        true,
		Proposal:   model.ProposalView{ID: 1, Address: "<b>12 Elm</b>", CaseNumber: "PB 1"},
	})
	s.Changes.Set(2, &model.SummaryEntry{
		ProposalID: 2,
		Proposal:   model.ProposalView{ID: 2, Address: "3 Oak St", CaseNumber: "PB 2"},
		Properties: []model.Change{{Name: "status", Old: "Filed", New: "Approved"}},
	})
	s.New, s.Updated, s.Total = 1, 1, 2

	html, err := Render(context.Background(), DigestEmail(Site{Name: "Cornerwise", Root: "http://cw.test/"}, s, nil))
	assert.Equal(t, err, nil)
	assert.Equal(t, strings.Contains(html, "&lt;b&gt;12 Elm&lt;/b&gt;"), true)
	assert.Equal(t, strings.Contains(html, `href="http://cw.test/proposals/2"`), true)
	assert.Equal(t, strings.Contains(html, "Filed &rarr; Approved"), true)
	assert.Equal(t, strings.Index(html, "New proposals") < strings.Index(html, "Updated proposals"), true)
}

func TestStaffNotificationEmail(t *testing.T) {
	html, err := Render(context.Background(), StaffNotificationEmail(Site{Name: "Cornerwise"}, "Hearing", "Line one\n<br/>Line two", []string{"12 Elm St (PB 1)"}))
	assert.Equal(t, err, nil)
	assert.Equal(t, strings.Contains(html, "Line one\n<br/>Line two"), true)
	assert.Equal(t, strings.Contains(html, "<li>12 Elm St (PB 1)</li>"), true)
}
