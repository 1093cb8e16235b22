package repositories

import (
	"context"

	"github.com/viewtube/backend/internal/models"
)

// SubscriptionRepository defines the data access contract for the
// subscriber->channel edge set.
type SubscriptionRepository interface {
	// Toggle flips the edge and reports the resulting subscribed state.
	Toggle(ctx context.Context, subscriberID, channelID string) (bool, error)
	ListSubscribers(ctx context.Context, channelID string) ([]models.ChannelSummary, error)
	ListSubscribedChannels(ctx context.Context, subscriberID string) ([]models.ChannelSummary, error)
}

// WatchHistoryRepository records and lists which videos a user has watched.
type WatchHistoryRepository interface {
	Add(ctx context.Context, userID, videoID string) error
	ListForUser(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}
