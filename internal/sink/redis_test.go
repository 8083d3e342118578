package sink_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/fincrawl/internal/domain"
	"github.com/jonesrussell/fincrawl/internal/logger"
	"github.com/jonesrussell/fincrawl/internal/sink"
)

func TestRedisPublisher_OneMessagePerArticle(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client, err := sink.NewRedisClient(context.Background(), sink.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	sub := client.Subscribe(context.Background(), "fincrawl:articles")
	t.Cleanup(func() { _ = sub.Close() })
	_, err = sub.Receive(context.Background())
	require.NoError(t, err)

	publisher := sink.NewRedisPublisher(client, "fincrawl:articles", logger.NewNop())
	published := time.Date(2026, 1, 22, 8, 0, 0, 0, time.UTC)
	articles := []domain.Article{
		{Title: "First", URL: "https://a.example/1", Source: "A", PublishTime: &published},
		{Title: "Second", URL: "https://a.example/2", Source: "A"},
	}
	require.NoError(t, publisher.Notify(context.Background(), articles))

	ch := sub.Channel()
	for _, want := range articles {
		select {
		case msg := <-ch:
			var got sink.ArticleMessage
			require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
			assert.Equal(t, want.URL, got.URL)
			assert.Equal(t, want.Title, got.Title)
		case <-time.After(2 * time.Second):
			t.Fatalf("no message for %s", want.URL)
		}
	}
}

func TestRedisPublisher_ClosedClient(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	client, err := sink.NewRedisClient(context.Background(), sink.RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	publisher := sink.NewRedisPublisher(client, "c", logger.NewNop())
	assert.Error(t, publisher.Notify(context.Background(), []domain.Article{{Title: "x", URL: "https://x"}}))
}

func TestNewRedisClient_EmptyAddress(t *testing.T) {
	t.Parallel()

	_, err := sink.NewRedisClient(context.Background(), sink.RedisConfig{})
	assert.ErrorIs(t, err, sink.ErrEmptyAddress)
}
