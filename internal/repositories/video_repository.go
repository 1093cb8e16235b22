package repositories

import (
	"context"

	"github.com/viewtube/backend/internal/models"
)

// VideoFilter is the allow-listed set of criteria for listing videos.
// Sort columns are mapped to schema columns inside the repository; anything
// else is rejected before a query is built.
type VideoFilter struct {
	OwnerID   string
	Published *bool
	Query     string

	SortBy   string
	SortDesc bool

	Limit  int
	Offset int
}

// VideoPatch carries the optional fields of a video metadata update. Nil
// means "leave unchanged".
type VideoPatch struct {
	Title        *string
	Description  *string
	ThumbnailURL *string
}

// VideoRepository defines the data access contract for videos.
type VideoRepository interface {
	Create(ctx context.Context, video models.Video) error
	FindByID(ctx context.Context, id string) (models.Video, error)
	List(ctx context.Context, filter VideoFilter) ([]models.Video, int64, error)
	Update(ctx context.Context, id string, patch VideoPatch) (models.Video, error)
	Delete(ctx context.Context, id string) (models.Video, error)
	TogglePublish(ctx context.Context, id string) (models.Video, error)
}
