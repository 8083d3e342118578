package sink_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/logger"
	"github.com/jonesrussell/fincrawl/internal/sink"
)

// fakeCluster answers like an Elasticsearch 8 node and records requests.
type fakeCluster struct {
	mu        sync.Mutex
	requests  []string
	docs      map[string]map[string]any
	hasIndex  bool
	failIndex bool
}

func newFakeCluster(t *testing.T) (*fakeCluster, *httptest.Server) {
	t.Helper()

	c := &fakeCluster{docs: map[string]map[string]any{}}
	srv := httptest.NewServer(http.HandlerFunc(c.serve))
	t.Cleanup(srv.Close)
	return c, srv
}

func (c *fakeCluster) serve(w http.ResponseWriter, r *http.Request) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.requests = append(c.requests, r.Method+" "+r.URL.Path)
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	switch {
	case r.URL.Path == "/":
		_, _ = io.WriteString(w, `{"version":{"number":"8.11.0"},"tagline":"You Know, for Search"}`)
	case len(parts) == 1 && r.Method == http.MethodHead:
		if !c.hasIndex {
			w.WriteHeader(http.StatusNotFound)
		}
	case len(parts) == 1 && r.Method == http.MethodPut:
		c.hasIndex = true
		_, _ = io.WriteString(w, `{"acknowledged":true}`)
	case len(parts) == 3 && parts[1] == "_doc":
		if c.failIndex {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = io.WriteString(w, `{"error":"mapper_parsing_exception"}`)
			return
		}
		var doc map[string]any
		_ = json.NewDecoder(r.Body).Decode(&doc)
		c.docs[parts[2]] = doc
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"result":"created"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newIndexer(t *testing.T, srv *httptest.Server) *sink.ElasticsearchIndexer {
	t.Helper()

	client, err := sink.NewElasticsearchClient(context.Background(), sink.ElasticsearchConfig{
		Addresses: []string{srv.URL},
	})
	require.NoError(t, err)
	return sink.NewElasticsearchIndexer(client, "financial_news", logger.NewNop())
}

func TestElasticsearchIndexer_IndexesByURLHash(t *testing.T) {
	t.Parallel()

	cluster, srv := newFakeCluster(t)
	indexer := newIndexer(t, srv)

	articles := []domain.Article{
		{Title: "Rates hold", URL: "https://a.example/1", Source: "A", Category: "finance"},
		{Title: "Chips rally", URL: "https://a.example/2", Source: "A", Category: "tech"},
	}
	require.NoError(t, indexer.Notify(context.Background(), articles))

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	require.Len(t, cluster.docs, 2)
	doc := cluster.docs[sink.DocumentID("https://a.example/1")]
	require.NotNil(t, doc)
	assert.Equal(t, "Rates hold", doc["title"])
	assert.Equal(t, "finance", doc["category"])
}

func TestElasticsearchIndexer_EnsureIndexCreatesOnce(t *testing.T) {
	t.Parallel()

	cluster, srv := newFakeCluster(t)
	indexer := newIndexer(t, srv)

	require.NoError(t, indexer.EnsureIndex(context.Background()))
	require.NoError(t, indexer.EnsureIndex(context.Background()))

	cluster.mu.Lock()
	defer cluster.mu.Unlock()
	creates := 0
	for _, r := range cluster.requests {
		if r == "PUT /financial_news" {
			creates++
		}
	}
	assert.Equal(t, 1, creates)
}

func TestElasticsearchIndexer_JoinsFailures(t *testing.T) {
	t.Parallel()

	cluster, srv := newFakeCluster(t)
	cluster.failIndex = true
	indexer := newIndexer(t, srv)

	err := indexer.Notify(context.Background(), []domain.Article{
		{Title: "One", URL: "https://a.example/1"},
		{Title: "Two", URL: "https://a.example/2"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "https://a.example/1")
	assert.Contains(t, err.Error(), "https://a.example/2")
}

func TestDocumentID(t *testing.T) {
	t.Parallel()

	id := sink.DocumentID("https://a.example/1")
	assert.Len(t, id, 64)
	assert.Equal(t, id, sink.DocumentID("https://a.example/1"))
	assert.NotEqual(t, id, sink.DocumentID("https://a.example/2"))
}
