package service

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/jjenkins/cornerwise/internal/config"
	"github.com/jjenkins/cornerwise/internal/model"
	"github.com/jjenkins/cornerwise/internal/store"
)

const feedBody = `{"cases": [
	{"case_number": "PB-2017-01", "all_addresses": ["12 Elm St"], "location": {"lat": 42.3876, "long": -71.0995},
	 "updated_date": "2017-05-30T10:00:00", "complete": false, "status": "Filed",
	 "attributes": [["Applicant Name", "Jane Doe"]]},
	{"case_number": "PB-2017-02", "all_addresses": ["3 Oak St"],
	 "updated_date": "2017-05-30T10:00:00", "complete": false, "status": "Filed"},
	{"case_number": 17},
	{"case_number": "ZBA-2017-40", "all_addresses": ["40 Walnut St"], "location": {"lat": 42.39, "long": -71.1},
	 "updated_date": "2017-05-31", "complete": true, "status": "Approved"}
]}`

func testFeedClient() *FeedClient {
	c := NewFeedClient()
	c.backoff = time.Millisecond
	return c
}

func testImporter(t *testing.T, s *store.MemoryStore, url string, at time.Time) *Importer {
	regions, err := config.NewRegions(map[string]string{"Somerville, MA": ""}, []config.Importer{
		{Name: "Somerville", URL: url, RegionName: "Somerville, MA"},
	})
	assert.Equal(t, err, nil)
	i := NewImporter(testFeedClient(), newRecorder(s, at), s, regions)
	i.now = func() time.Time { return at }
	return i
}

func TestFeedURL(t *testing.T) {
	when := time.Date(2017, 6, 1, 23, 0, 0, 0, time.UTC)
	u, err := FeedURL("https://example.com/cases.json?token=abc", &when)
	assert.Equal(t, err, nil)
	assert.Equal(t, u, "https://example.com/cases.json?token=abc&when=20170601")

	u, err = FeedURL("https://example.com/cases.json", nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, u, "https://example.com/cases.json")

	_, err = FeedURL("://nope", nil)
	assert.NotEqual(t, err, nil)
}

func TestFetchCasesRetries(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, feedBody)
	}))
	defer srv.Close()

	resp, err := testFeedClient().FetchCases(context.Background(), srv.URL, nil)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(resp.Cases), 4)
	assert.Equal(t, atomic.LoadInt32(&calls), int32(2))
}

func TestFetchCasesClientError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFeedClient().FetchCases(context.Background(), srv.URL, nil)
	assert.NotEqual(t, err, nil)
	assert.Equal(t, atomic.LoadInt32(&calls), int32(1))
}

func TestImporterRun(t *testing.T) {
	ctx := context.Background()
	var when string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		when = r.URL.Query().Get("when")
		fmt.Fprint(w, feedBody)
	}))
	defer srv.Close()

	s := store.NewMemoryStore(nil)
	imp := testImporter(t, s, srv.URL, t0)
	cfg, ok := imp.Lookup("somerville")
	assert.Equal(t, ok, true)

	due, last, err := imp.Due(ctx, cfg)
	assert.Equal(t, err, nil)
	assert.Equal(t, due, true)
	assert.Equal(t, last == nil, true)

	since := time.Date(2017, 5, 1, 0, 0, 0, 0, time.UTC)
	stats, err := imp.Run(ctx, cfg, &since)
	assert.Equal(t, err, nil)
	assert.Equal(t, when, "20170501")
	assert.Equal(t, stats.Total, 4)
	assert.Equal(t, stats.Created, 2)
	assert.Equal(t, stats.Failed, 2)

	due, last, err = imp.Due(ctx, cfg)
	assert.Equal(t, err, nil)
	assert.Equal(t, due, false)
	assert.Equal(t, *last, t0)

	found, err := s.FindProposals(ctx, model.ProposalQuery{})
	assert.Equal(t, err, nil)
	assert.Equal(t, len(found), 2)
	assert.Equal(t, found[0].RegionName, "Somerville, MA")
}

func TestImporterRunAll(t *testing.T) {
	ctx := context.Background()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, feedBody)
	}))
	defer srv.Close()

	s := store.NewMemoryStore(nil)
	imp := testImporter(t, s, srv.URL, t0)

	all, err := imp.RunAll(ctx, false)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(all), 1)

	// Ran today, so only a forced run fetches again
	all, err = imp.RunAll(ctx, false)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(all), 0)
	assert.Equal(t, atomic.LoadInt32(&calls), int32(1))

	all, err = imp.RunAll(ctx, true)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(all), 1)
	assert.Equal(t, all[0].Unchanged, 2)

	imp.now = func() time.Time { return t0.Add(25 * time.Hour) }
	all, err = imp.RunAll(ctx, false)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(all), 1)
	assert.Equal(t, atomic.LoadInt32(&calls), int32(3))
}

func TestImportFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.json")
	assert.Equal(t, os.WriteFile(path, []byte(feedBody), 0o644), nil)

	s := store.NewMemoryStore(nil)
	imp := testImporter(t, s, "http://unused.example.com", t0)
	stats, err := imp.ImportFile(context.Background(), path, somerville)
	assert.Equal(t, err, nil)
	assert.Equal(t, stats.Importer, path)
	assert.Equal(t, stats.Created, 2)

	assert.Equal(t, os.WriteFile(path, []byte("not json"), 0o644), nil)
	_, err = imp.ImportFile(context.Background(), path, somerville)
	assert.NotEqual(t, err, nil)
}
