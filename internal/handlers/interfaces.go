package handlers

import (
	"context"
	"io"

	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the user handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByLogin(ctx context.Context, usernameOrEmail string) (models.User, error)
	FindChannelProfile(ctx context.Context, username, viewerID string) (models.ChannelProfile, error)
	UpdateDetails(ctx context.Context, id string, fullName, email *string) (models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateAvatar(ctx context.Context, id, url string) (models.User, error)
	UpdateCoverImage(ctx context.Context, id, url string) (models.User, error)
}

// SessionManager issues, rotates and revokes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error)
	Revoke(ctx context.Context, userID string) error
}

// SubscriptionStore captures operations on the subscriber->channel edge set.
type SubscriptionStore interface {
	Toggle(ctx context.Context, subscriberID, channelID string) (bool, error)
	ListSubscribers(ctx context.Context, channelID string) ([]models.ChannelSummary, error)
	ListSubscribedChannels(ctx context.Context, subscriberID string) ([]models.ChannelSummary, error)
}

// VideoStore captures persistence for the video catalog.
type VideoStore interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, filter repositories.VideoFilter) ([]models.Video, int64, error)
	Update(ctx context.Context, id string, patch repositories.VideoPatch) (models.Video, error)
	Delete(ctx context.Context, id string) (models.Video, error)
	TogglePublish(ctx context.Context, id string) (models.Video, error)
}

// HistoryStore records and lists watch history.
type HistoryStore interface {
	Add(ctx context.Context, userID, videoID string) error
	ListForUser(ctx context.Context, userID string) ([]models.WatchHistoryEntry, error)
}

// MediaStore abstracts the remote asset store holding uploaded media.
type MediaStore interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) (string, error)
	Delete(ctx context.Context, location string) error
}

// DurationProber reports the duration in seconds of an uploaded video asset.
type DurationProber interface {
	Duration(ctx context.Context, location string) (float64, error)
}
