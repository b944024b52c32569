// Package events publishes discovery events on Redis pub/sub so other
// services (e.g. a web UI forwarding SSE) can react to new matches.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"gigalert/discovery-service/internal/model"
)

// ChannelListingMatched is the pub/sub channel for newly recorded matches.
const ChannelListingMatched = "EVENT_LISTING_MATCHED"

// ListingMatched is the payload published on ChannelListingMatched.
type ListingMatched struct {
	Type         string    `json:"type"`
	OwnerID      string    `json:"ownerId"`
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	DiscoveredAt time.Time `json:"discoveredAt"`
}

// Publisher publishes discovery events. A nil *Publisher is a no-op.
type Publisher struct {
	rdb *redis.Client
}

// NewPublisher returns a Publisher on rdb, or nil when rdb is nil.
func NewPublisher(rdb *redis.Client) *Publisher {
	if rdb == nil {
		return nil
	}
	return &Publisher{rdb: rdb}
}

// PublishMatch announces a newly recorded listing.
func (p *Publisher) PublishMatch(ctx context.Context, l model.Listing) error {
	if p == nil {
		return nil
	}

	payload, err := json.Marshal(ListingMatched{
		Type:         ChannelListingMatched,
		OwnerID:      l.OwnerID,
		Title:        l.Title,
		Link:         l.Link,
		DiscoveredAt: l.DiscoveredAt,
	})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ChannelListingMatched, err)
	}

	if err := p.rdb.Publish(ctx, ChannelListingMatched, payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ChannelListingMatched, err)
	}
	return nil
}
