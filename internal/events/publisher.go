package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nobody-27-27/EcomCompare/internal/crawler"
)

// Publisher fans crawl progress events out over redis pub/sub so the UI
// layer can stream them. Publishing is fire-and-forget; a slow or down
// redis never blocks the crawl loop.
type Publisher struct {
	client *redis.Client
	logger *slog.Logger
}

func NewPublisher(client *redis.Client, logger *slog.Logger) *Publisher {
	return &Publisher{
		client: client,
		logger: logger.With("component", "progress_publisher"),
	}
}

// ChannelFor returns the pub/sub channel carrying one website's
// progress events.
func ChannelFor(websiteID string) string {
	return fmt.Sprintf("crawl:progress:%s", websiteID)
}

// SinkFor returns a ProgressSink that publishes each event for
// websiteID. Events are serialized and sent on a short-deadline
// background context.
func (p *Publisher) SinkFor(websiteID string) crawler.ProgressSink {
	channel := ChannelFor(websiteID)
	return crawler.ProgressFunc(func(event crawler.ProgressEvent) {
		payload, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("failed to marshal progress event", "error", err)
			return
		}

		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := p.client.Publish(ctx, channel, payload).Err(); err != nil {
				p.logger.Warn("failed to publish progress event", "channel", channel, "error", err)
			}
		}()
	})
}
