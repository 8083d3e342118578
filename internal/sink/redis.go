package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/logger"
)

const redisPingTimeout = 5 * time.Second

// ErrEmptyAddress is returned when no Redis address is configured.
var ErrEmptyAddress = errors.New("redis address is required")

// RedisConfig configures the Redis client.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	if cfg.Addr == "" {
		return nil, ErrEmptyAddress
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, redisPingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// ArticleMessage is the payload published for each new article.
type ArticleMessage struct {
	Title       string            `json:"title"`
	URL         string            `json:"url"`
	Source      string            `json:"source"`
	Category    string            `json:"category"`
	SourceKind  domain.SourceKind `json:"source_type"`
	PublishTime *time.Time        `json:"publish_time,omitempty"`
	Summary     string            `json:"summary,omitempty"`
	CrawlTime   time.Time         `json:"crawl_time"`
}

// RedisPublisher publishes one JSON message per article on a channel.
type RedisPublisher struct {
	client  redis.UniversalClient
	channel string
	log     logger.Logger
}

// NewRedisPublisher creates a publisher.
func NewRedisPublisher(client redis.UniversalClient, channel string, log logger.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, log: log}
}

// Name implements Notifier.
func (p *RedisPublisher) Name() string { return "redis" }

// Notify implements Notifier. Messages go out in batch order.
func (p *RedisPublisher) Notify(ctx context.Context, articles []domain.Article) error {
	var errs []error
	receivers := int64(0)

	for _, a := range articles {
		payload, err := json.Marshal(ArticleMessage{
			Title:       a.Title,
			URL:         a.URL,
			Source:      a.Source,
			Category:    a.Category,
			SourceKind:  a.SourceKind,
			PublishTime: a.PublishTime,
			Summary:     a.Summary,
			CrawlTime:   a.CrawlTime,
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("encode %s: %w", a.URL, err))
			continue
		}

		n, err := p.client.Publish(ctx, p.channel, payload).Result()
		if err != nil {
			errs = append(errs, fmt.Errorf("publish %s: %w", a.URL, err))
			continue
		}
		receivers += n
	}

	p.log.Debug("Published articles",
		logger.String("channel", p.channel),
		logger.Int("articles", len(articles)),
		logger.Int64("receivers", receivers),
	)
	return errors.Join(errs...)
}
