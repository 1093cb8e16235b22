package storage

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/viewtube/backend/internal/logging"
)

// Uploader stores a media asset and returns its public location. The body
// must be seekable so a failed attempt can be replayed from the start.
type Uploader interface {
	Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) (string, error)
}

const (
	uploadBaseBackoff = 200 * time.Millisecond
	uploadMaxBackoff  = 5 * time.Second
)

// RetryUploader wraps an Uploader with bounded exponential-backoff retries
// and a per-call timeout. Deletes are deliberately not retried; callers treat
// them as best-effort.
type RetryUploader struct {
	Base        Uploader
	MaxAttempts int
	Timeout     time.Duration
}

// NewRetryUploader constructs a retrying uploader around base.
func NewRetryUploader(base Uploader, maxAttempts int, timeout time.Duration) *RetryUploader {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &RetryUploader{Base: base, MaxAttempts: maxAttempts, Timeout: timeout}
}

// Upload attempts the upload, rewinding and retrying on failure until the
// attempt budget is spent or the context is done.
func (r *RetryUploader) Upload(ctx context.Context, key string, body io.ReadSeeker, contentType string) (string, error) {
	ctx, span := logging.StartSpan(ctx, "storage.upload")
	defer span.End()

	logger := logging.FromContext(ctx)

	var lastErr error
	for attempt := 0; attempt < r.MaxAttempts; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * uploadBaseBackoff
			if backoff > uploadMaxBackoff {
				backoff = uploadMaxBackoff
			}
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			case <-timer.C:
			}
			timer.Stop()

			if _, err := body.Seek(0, io.SeekStart); err != nil {
				return "", err
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, r.Timeout)
		location, err := r.Base.Upload(attemptCtx, key, body, contentType)
		cancel()
		if err == nil {
			return location, nil
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", lastErr
		}
		logger.Warn("upload attempt failed", "key", key, "attempt", attempt+1, "error", err)
	}

	return "", lastErr
}
