package sink

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/logger"
)

const (
	defaultESAddress  = "http://localhost:9200"
	defaultMaxRetries = 3
	esPingTimeout     = 5 * time.Second
)

// articleMapping is applied when the index is created.
const articleMapping = `{
  "mappings": {
    "properties": {
      "title":        {"type": "text"},
      "url":          {"type": "keyword"},
      "source":       {"type": "keyword"},
      "category":     {"type": "keyword"},
      "source_type":  {"type": "keyword"},
      "publish_time": {"type": "date"},
      "summary":      {"type": "text"},
      "content":      {"type": "text"},
      "crawl_time":   {"type": "date"}
    }
  }
}`

// ElasticsearchConfig configures the client.
type ElasticsearchConfig struct {
	Addresses []string
	Username  string
	Password  string
	// CACert is a PEM bundle for clusters with a private CA.
	CACert    []byte
	Transport http.RoundTripper
}

// NewElasticsearchClient builds a client and pings the cluster.
func NewElasticsearchClient(ctx context.Context, cfg ElasticsearchConfig) (*es.Client, error) {
	addresses := make([]string, 0, len(cfg.Addresses))
	for _, a := range cfg.Addresses {
		addresses = append(addresses, normalizeURL(a))
	}
	if len(addresses) == 0 {
		addresses = []string{defaultESAddress}
	}

	client, err := es.NewClient(es.Config{
		Addresses:  addresses,
		Username:   cfg.Username,
		Password:   cfg.Password,
		CACert:     cfg.CACert,
		Transport:  cfg.Transport,
		MaxRetries: defaultMaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, esPingTimeout)
	defer cancel()
	res, err := client.Ping(client.Ping.WithContext(pingCtx))
	if err != nil {
		return nil, fmt.Errorf("elasticsearch ping failed: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch ping returned %s", res.Status())
	}

	return client, nil
}

func normalizeURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return defaultESAddress
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return "http://" + url
	}
	return url
}

// DocumentID is the index document ID for an article URL.
func DocumentID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// ElasticsearchIndexer indexes each article as one document keyed by URL hash,
// so re-indexing the same article overwrites it.
type ElasticsearchIndexer struct {
	client *es.Client
	index  string
	log    logger.Logger
}

// NewElasticsearchIndexer creates an indexer writing to index.
func NewElasticsearchIndexer(client *es.Client, index string, log logger.Logger) *ElasticsearchIndexer {
	return &ElasticsearchIndexer{client: client, index: index, log: log}
}

// Name implements Notifier.
func (i *ElasticsearchIndexer) Name() string { return "elasticsearch" }

// EnsureIndex creates the index with the article mapping when it is missing.
func (i *ElasticsearchIndexer) EnsureIndex(ctx context.Context) error {
	res, err := i.client.Indices.Exists([]string{i.index}, i.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", i.index, err)
	}
	res.Body.Close()

	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return fmt.Errorf("check index %s: %s", i.index, res.Status())
	}

	res, err = i.client.Indices.Create(i.index,
		i.client.Indices.Create.WithBody(strings.NewReader(articleMapping)),
		i.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", i.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("create index %s: %s", i.index, errorBody(res.Status(), res.Body))
	}

	i.log.Info("Created Elasticsearch index", logger.String("index", i.index))
	return nil
}

// Notify implements Notifier. Every article is attempted; failures are joined.
func (i *ElasticsearchIndexer) Notify(ctx context.Context, articles []domain.Article) error {
	var errs []error
	indexed := 0

	for idx := range articles {
		if err := i.indexOne(ctx, &articles[idx]); err != nil {
			errs = append(errs, err)
			continue
		}
		indexed++
	}

	i.log.Info("Indexed articles",
		logger.String("index", i.index),
		logger.Int("indexed", indexed),
		logger.Int("failed", len(errs)),
	)
	return errors.Join(errs...)
}

func (i *ElasticsearchIndexer) indexOne(ctx context.Context, a *domain.Article) error {
	body, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("encode %s: %w", a.URL, err)
	}

	res, err := i.client.Index(i.index, bytes.NewReader(body),
		i.client.Index.WithDocumentID(DocumentID(a.URL)),
		i.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("index %s: %w", a.URL, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index %s: %s", a.URL, errorBody(res.Status(), res.Body))
	}
	return nil
}

func errorBody(status string, r io.Reader) string {
	const maxErrorBody = 512
	b, _ := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if len(b) == 0 {
		return status
	}
	return status + ": " + string(b)
}
