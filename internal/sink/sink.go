// Package sink delivers a finished crawl batch to downstream systems: a
// search index, a pub/sub channel, or the log.
package sink

import (
	"context"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/logger"
)

// Notifier receives the deduplicated articles of a run, in batch order.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, articles []domain.Article) error
}

// LogNotifier logs the batch size.
type LogNotifier struct {
	log logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log logger.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Name implements Notifier.
func (n *LogNotifier) Name() string { return "log" }

// Notify implements Notifier.
func (n *LogNotifier) Notify(_ context.Context, articles []domain.Article) error {
	sources := make(map[string]struct{})
	for _, a := range articles {
		sources[a.Source] = struct{}{}
	}
	n.log.Info("New articles available",
		logger.Int("articles", len(articles)),
		logger.Int("sources", len(sources)),
	)
	return nil
}
