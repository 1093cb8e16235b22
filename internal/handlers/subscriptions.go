package handlers

import (
	"net/http"
	"strings"

	"github.com/viewtube/backend/internal/logging"
	"github.com/viewtube/backend/internal/middleware"
	"github.com/viewtube/backend/internal/models"
)

// SubscriptionHandler implements channel subscription endpoints.
type SubscriptionHandler struct {
	Subscriptions SubscriptionStore
	Users         UserStore
}

// Toggle handles POST /api/v1/subscriptions/c/{channelId}. A first call
// subscribes the caller to the channel, a second call removes the
// subscription again.
func (h SubscriptionHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subscriberID := middleware.UserIDFromContext(ctx)

	channelID := strings.TrimSpace(r.PathValue("channelId"))
	if channelID == "" {
		respondError(ctx, w, http.StatusBadRequest, "channel id is required")
		return
	}
	if channelID == subscriberID {
		respondError(ctx, w, http.StatusBadRequest, "cannot subscribe to your own channel")
		return
	}

	if _, err := h.Users.FindByID(ctx, channelID); err != nil {
		respondStoreError(ctx, w, err, "channel does not exist")
		return
	}

	subscribed, err := h.Subscriptions.Toggle(ctx, subscriberID, channelID)
	if err != nil {
		logging.FromContext(ctx).Error("subscription toggle failed", "error", err,
			"subscriberId", subscriberID, "channelId", channelID)
		respondStoreError(ctx, w, err, "channel does not exist")
		return
	}

	message := "unsubscribed successfully"
	if subscribed {
		message = "subscribed successfully"
	}
	respondData(ctx, w, http.StatusOK, toggleSubscriptionResponse{Subscribed: subscribed}, message)
}

// Subscribers handles GET /api/v1/subscriptions/c/{channelId}, returning the
// channel alongside the accounts subscribed to it.
func (h SubscriptionHandler) Subscribers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	channelID := strings.TrimSpace(r.PathValue("channelId"))
	if channelID == "" {
		respondError(ctx, w, http.StatusBadRequest, "channel id is required")
		return
	}

	channel, err := h.Users.FindByID(ctx, channelID)
	if err != nil {
		respondStoreError(ctx, w, err, "channel does not exist")
		return
	}

	subscribers, err := h.Subscriptions.ListSubscribers(ctx, channelID)
	if err != nil {
		respondStoreError(ctx, w, err, "channel does not exist")
		return
	}
	if subscribers == nil {
		subscribers = []models.ChannelSummary{}
	}

	respondData(ctx, w, http.StatusOK, channelSubscribersResponse{
		Channel: models.ChannelSummary{
			ID:        channel.ID,
			Username:  channel.Username,
			AvatarURL: channel.AvatarURL,
		},
		Subscribers: subscribers,
	}, "subscribers fetched successfully")
}

// SubscribedChannels handles GET /api/v1/subscriptions/u/{subscriberId},
// listing the channels the account is subscribed to.
func (h SubscriptionHandler) SubscribedChannels(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	subscriberID := strings.TrimSpace(r.PathValue("subscriberId"))
	if subscriberID == "" {
		respondError(ctx, w, http.StatusBadRequest, "subscriber id is required")
		return
	}

	if _, err := h.Users.FindByID(ctx, subscriberID); err != nil {
		respondStoreError(ctx, w, err, "user does not exist")
		return
	}

	channels, err := h.Subscriptions.ListSubscribedChannels(ctx, subscriberID)
	if err != nil {
		respondStoreError(ctx, w, err, "user does not exist")
		return
	}
	if channels == nil {
		channels = []models.ChannelSummary{}
	}

	respondData(ctx, w, http.StatusOK, channels, "subscribed channels fetched successfully")
}

type toggleSubscriptionResponse struct {
	Subscribed bool `json:"subscribed"`
}

type channelSubscribersResponse struct {
	Channel     models.ChannelSummary   `json:"channel"`
	Subscribers []models.ChannelSummary `json:"subscribers"`
}
