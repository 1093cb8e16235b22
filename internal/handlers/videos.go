package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/viewtube/backend/internal/logging"
	"github.com/viewtube/backend/internal/middleware"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// VideoHandler implements the video catalog endpoints.
type VideoHandler struct {
	Videos  VideoStore
	History HistoryStore
	Media   MediaStore
	Prober  DurationProber
	NowFunc func() time.Time
}

// listQueryKeys is the allow-listed set of filter parameters. Anything else
// is rejected rather than silently ignored.
var listQueryKeys = map[string]struct{}{
	"owner":     {},
	"published": {},
	"query":     {},
	"sortBy":    {},
	"sortType":  {},
	"page":      {},
	"limit":     {},
}

// List handles GET /api/v1/videos.
func (h VideoHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	for key := range query {
		if _, ok := listQueryKeys[key]; !ok {
			respondError(ctx, w, http.StatusBadRequest, "unsupported filter parameter "+key)
			return
		}
	}

	page := 1
	pageProvided := false
	if raw := strings.TrimSpace(query.Get("page")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(ctx, w, http.StatusBadRequest, "page must be a positive integer")
			return
		}
		page = parsed
		pageProvided = true
	}

	limit := defaultPageSize
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			respondError(ctx, w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsed > maxPageSize {
			parsed = maxPageSize
		}
		limit = parsed
	}

	sortBy := strings.TrimSpace(query.Get("sortBy"))
	if sortBy != "" && !repositories.SortableVideoField(sortBy) {
		respondError(ctx, w, http.StatusBadRequest, "unsupported sort field")
		return
	}

	sortDesc := false
	switch strings.ToLower(strings.TrimSpace(query.Get("sortType"))) {
	case "", "asc":
	case "desc":
		sortDesc = true
	default:
		respondError(ctx, w, http.StatusBadRequest, "sortType must be asc or desc")
		return
	}

	// Unpublished videos stay hidden unless the filter asks for them.
	published := true
	if raw := strings.TrimSpace(query.Get("published")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			respondError(ctx, w, http.StatusBadRequest, "published must be a boolean")
			return
		}
		published = parsed
	}

	filter := repositories.VideoFilter{
		OwnerID:   strings.TrimSpace(query.Get("owner")),
		Published: &published,
		Query:     strings.TrimSpace(query.Get("query")),
		SortBy:    sortBy,
		SortDesc:  sortDesc,
		Limit:     limit,
		Offset:    (page - 1) * limit,
	}

	videos, total, err := h.Videos.List(ctx, filter)
	if err != nil {
		respondStoreError(ctx, w, err, "videos not found")
		return
	}

	// An explicit page pointing past the last result is an error, even page 1
	// of an empty result set.
	if pageProvided && int64(filter.Offset) >= total {
		respondError(ctx, w, http.StatusBadRequest, "page does not exist")
		return
	}
	if videos == nil {
		videos = []models.Video{}
	}

	totalPages := int64(0)
	if total > 0 {
		totalPages = (total + int64(limit) - 1) / int64(limit)
	}

	respondData(ctx, w, http.StatusOK, listVideosResponse{
		Videos:     videos,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages,
	}, "videos fetched successfully")
}

// Publish handles POST /api/v1/videos (multipart). The video asset and its
// thumbnail are uploaded before the catalog record is written.
func (h VideoHandler) Publish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	ownerID := middleware.UserIDFromContext(ctx)

	if err := parseUploadForm(r); err != nil {
		logger.Warn("invalid publish form", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		respondError(ctx, w, http.StatusBadRequest, "title is required")
		return
	}
	description := strings.TrimSpace(r.FormValue("description"))

	videoFile, videoHeader, err := formFile(r, "videoFile")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid video upload")
		return
	}
	if videoFile == nil {
		respondError(ctx, w, http.StatusBadRequest, "video file is required")
		return
	}
	defer videoFile.Close()

	thumbFile, thumbHeader, err := formFile(r, "thumbnail")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid thumbnail upload")
		return
	}
	if thumbFile == nil {
		respondError(ctx, w, http.StatusBadRequest, "thumbnail is required")
		return
	}
	defer thumbFile.Close()

	videoURL, err := h.Media.Upload(ctx, assetKey("videos", videoHeader.Filename), videoFile, headerContentType(videoHeader))
	if err != nil {
		logger.Error("video upload failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store video file")
		return
	}

	thumbURL, err := h.Media.Upload(ctx, assetKey("thumbnails", thumbHeader.Filename), thumbFile, headerContentType(thumbHeader))
	if err != nil {
		logger.Error("thumbnail upload failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store thumbnail")
		return
	}

	duration, err := h.Prober.Duration(ctx, videoURL)
	if err != nil {
		// A failed probe does not abort the publish, the duration stays zero.
		logger.Warn("duration probe failed", "error", err, "location", videoURL)
	}

	now := h.now()
	video := models.Video{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		Title:        title,
		Description:  description,
		VideoURL:     videoURL,
		ThumbnailURL: thumbURL,
		Duration:     duration,
		IsPublished:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.Videos.Create(ctx, video); err != nil {
		logger.Error("failed to create video record", "error", err)
		respondStoreError(ctx, w, err, "owner does not exist")
		return
	}

	respondData(ctx, w, http.StatusCreated, video, "video published successfully")
}

// Get handles GET /api/v1/videos/{videoId}. Fetching a published video
// records it in the viewer's watch history and bumps the view count.
func (h VideoHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	viewerID := middleware.UserIDFromContext(ctx)

	videoID := strings.TrimSpace(r.PathValue("videoId"))
	if videoID == "" {
		respondError(ctx, w, http.StatusBadRequest, "video id is required")
		return
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		respondStoreError(ctx, w, err, "video does not exist")
		return
	}
	if !video.IsPublished {
		respondError(ctx, w, http.StatusForbidden, "video is not published")
		return
	}

	if err := h.History.Add(ctx, viewerID, videoID); err != nil {
		// The fetch still succeeds when the history write fails.
		logging.FromContext(ctx).Error("failed to record watch history", "error", err,
			"userId", viewerID, "videoId", videoID)
	} else {
		video.Views++
	}

	respondData(ctx, w, http.StatusOK, video, "video fetched successfully")
}

// Update handles PATCH /api/v1/videos/{videoId} (multipart). Title,
// description and thumbnail are each optional but at least one must be given.
func (h VideoHandler) Update(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	if err := parseUploadForm(r); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	var patch repositories.VideoPatch
	if title := strings.TrimSpace(r.FormValue("title")); title != "" {
		patch.Title = &title
	}
	if description := strings.TrimSpace(r.FormValue("description")); description != "" {
		patch.Description = &description
	}

	thumbFile, thumbHeader, err := formFile(r, "thumbnail")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid thumbnail upload")
		return
	}
	if thumbFile != nil {
		defer thumbFile.Close()
		url, err := h.Media.Upload(ctx, assetKey("thumbnails", thumbHeader.Filename), thumbFile, headerContentType(thumbHeader))
		if err != nil {
			logger.Error("thumbnail upload failed", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "failed to store thumbnail")
			return
		}
		// The previous thumbnail object is left in the media store.
		patch.ThumbnailURL = &url
	}

	if patch.Title == nil && patch.Description == nil && patch.ThumbnailURL == nil {
		respondError(ctx, w, http.StatusBadRequest, "at least one of title, description or thumbnail is required")
		return
	}

	updated, err := h.Videos.Update(ctx, video.ID, patch)
	if err != nil {
		respondStoreError(ctx, w, err, "video does not exist")
		return
	}

	respondData(ctx, w, http.StatusOK, updated, "video updated successfully")
}

// Delete handles DELETE /api/v1/videos/{videoId}, removing the catalog
// record and its stored assets.
func (h VideoHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	deleted, err := h.Videos.Delete(ctx, video.ID)
	if err != nil {
		respondStoreError(ctx, w, err, "video does not exist")
		return
	}

	for _, location := range []string{deleted.VideoURL, deleted.ThumbnailURL} {
		if location == "" {
			continue
		}
		if err := h.Media.Delete(ctx, location); err != nil {
			logger.Error("failed to delete stored asset", "error", err, "location", location)
		}
	}

	respondData(ctx, w, http.StatusOK, struct{}{}, "video deleted successfully")
}

// TogglePublish handles PATCH /api/v1/videos/toggle/publish/{videoId}.
func (h VideoHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	video, ok := h.ownedVideo(w, r)
	if !ok {
		return
	}

	toggled, err := h.Videos.TogglePublish(ctx, video.ID)
	if err != nil {
		respondStoreError(ctx, w, err, "video does not exist")
		return
	}

	message := "video unpublished successfully"
	if toggled.IsPublished {
		message = "video published successfully"
	}
	respondData(ctx, w, http.StatusOK, toggled, message)
}

// ownedVideo loads the path video and verifies the caller owns it. It writes
// the error response itself when the check fails.
func (h VideoHandler) ownedVideo(w http.ResponseWriter, r *http.Request) (models.Video, bool) {
	ctx := r.Context()

	videoID := strings.TrimSpace(r.PathValue("videoId"))
	if videoID == "" {
		respondError(ctx, w, http.StatusBadRequest, "video id is required")
		return models.Video{}, false
	}

	video, err := h.Videos.FindByID(ctx, videoID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "video does not exist")
			return models.Video{}, false
		}
		respondStoreError(ctx, w, err, "video does not exist")
		return models.Video{}, false
	}

	if video.OwnerID != middleware.UserIDFromContext(ctx) {
		respondError(ctx, w, http.StatusForbidden, "you do not own this video")
		return models.Video{}, false
	}
	return video, true
}

func (h VideoHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type listVideosResponse struct {
	Videos     []models.Video `json:"videos"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	Limit      int            `json:"limit"`
	TotalPages int64          `json:"totalPages"`
}
