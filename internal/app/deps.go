package app

import (
	"context"
	"time"

	"github.com/viewtube/backend/internal/auth"
	"github.com/viewtube/backend/internal/config"
	"github.com/viewtube/backend/internal/db"
	"github.com/viewtube/backend/internal/handlers"
	"github.com/viewtube/backend/internal/media"
	"github.com/viewtube/backend/internal/middleware"
	"github.com/viewtube/backend/internal/repositories"
	"github.com/viewtube/backend/internal/storage"
)

// buildDependencies wires together concrete implementations used by the HTTP handlers.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	users := repositories.NewPostgresUserRepository(pool)

	sessions := auth.NewManager(
		cfg.AccessTokenSecret, cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
		users,
	)

	store, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
	if err != nil {
		return handlers.Dependencies{}, err
	}
	uploader := storage.NewRetryUploader(store, cfg.UploadMaxRetries, cfg.UploadTimeout)

	prober := media.NewFFProbeProber(cfg.FFProbePath, cfg.FFProbeTimeout)

	return handlers.Dependencies{
		Users:         users,
		Sessions:      sessions,
		Subscriptions: repositories.NewPostgresSubscriptionRepository(pool),
		Videos:        repositories.NewPostgresVideoRepository(pool),
		History:       repositories.NewPostgresWatchHistoryRepository(pool),
		Media:         storage.NewMedia(uploader, store),
		Prober:        prober,
		Verifier:      sessions,
		AuthLimiter:   middleware.NewIPRateLimiter(cfg.AuthRatePerMinute, time.Minute, cfg.AuthRateBurst, 10*time.Minute),
		SecureCookies: cfg.SecureCookies,
	}, nil
}
