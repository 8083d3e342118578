package spider_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonesrussell/fincrawl/internal/extractor"
	"github.com/jonesrussell/fincrawl/internal/fetcher"
	"github.com/jonesrussell/fincrawl/internal/logger"
	"github.com/jonesrussell/fincrawl/internal/spider"
)

var errNotFound = errors.New("not found")

var fixedNow = time.Date(2026, 1, 22, 9, 0, 0, 0, time.UTC)

// fakePage is a canned response.
type fakePage struct {
	status      int
	contentType string
	body        string
	// encoding and raw describe a page the transport already transcoded:
	// body is the decoded text, raw the bytes on the wire.
	encoding string
	raw      []byte
}

// fakeFetcher serves canned pages and records every URL requested.
type fakeFetcher struct {
	mu      sync.Mutex
	pages   map[string]fakePage
	fetched []string
	probed  []string
}

func newFakeFetcher(pages map[string]fakePage) *fakeFetcher {
	return &fakeFetcher{pages: pages}
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL, _ string) (*fetcher.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, rawURL)

	p, ok := f.pages[rawURL]
	if !ok || (p.status != 0 && p.status != 200) {
		return nil, errNotFound
	}
	body := []byte(p.body)
	if p.raw != nil {
		body = p.raw
	}
	return &fetcher.Page{URL: rawURL, StatusCode: 200, ContentType: p.contentType, Encoding: p.encoding, Body: body, Text: p.body}, nil
}

func (f *fakeFetcher) Probe(_ context.Context, rawURL string) (*fetcher.Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probed = append(f.probed, rawURL)

	p, ok := f.pages[rawURL]
	if !ok {
		return &fetcher.Page{URL: rawURL, StatusCode: 404, ContentType: "text/html"}, nil
	}
	status := p.status
	if status == 0 {
		status = 200
	}
	return &fetcher.Page{URL: rawURL, StatusCode: status, ContentType: p.contentType, Body: []byte(p.body)}, nil
}

func testOptions() spider.Options {
	return spider.Options{Now: func() time.Time { return fixedNow }}
}

func newTestExtractor(t *testing.T) *extractor.Extractor {
	t.Helper()

	return extractor.New(extractor.WithLocation(time.UTC))
}

func nopLogger() logger.Logger {
	return logger.NewNop()
}
