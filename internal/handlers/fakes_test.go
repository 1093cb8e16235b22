package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
)

type fakeUserStore struct {
	users    map[string]models.User
	profiles map[string]models.ChannelProfile

	createErr error
	findErr   error
	updateErr error
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{
		users:    make(map[string]models.User),
		profiles: make(map[string]models.ChannelProfile),
	}
}

func (s *fakeUserStore) add(user models.User) {
	s.users[user.ID] = user
}

func (s *fakeUserStore) Create(_ context.Context, user models.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	for _, existing := range s.users {
		if existing.Username == user.Username || existing.Email == user.Email {
			return repositories.ErrConflict
		}
	}
	s.users[user.ID] = user
	return nil
}

func (s *fakeUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	if s.findErr != nil {
		return models.User{}, s.findErr
	}
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *fakeUserStore) FindByLogin(_ context.Context, usernameOrEmail string) (models.User, error) {
	if s.findErr != nil {
		return models.User{}, s.findErr
	}
	for _, user := range s.users {
		if user.Username == usernameOrEmail || user.Email == usernameOrEmail {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

func (s *fakeUserStore) FindChannelProfile(_ context.Context, username, viewerID string) (models.ChannelProfile, error) {
	profile, ok := s.profiles[username]
	if !ok {
		return models.ChannelProfile{}, repositories.ErrNotFound
	}
	profile.ViewerSubscribed = viewerID != "" && strings.HasPrefix(viewerID, "subscribed-")
	return profile, nil
}

func (s *fakeUserStore) UpdateDetails(_ context.Context, id string, fullName, email *string) (models.User, error) {
	if s.updateErr != nil {
		return models.User{}, s.updateErr
	}
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	if email != nil {
		for otherID, other := range s.users {
			if otherID != id && other.Email == *email {
				return models.User{}, repositories.ErrConflict
			}
		}
		user.Email = *email
	}
	if fullName != nil {
		user.FullName = *fullName
	}
	s.users[id] = user
	return user, nil
}

func (s *fakeUserStore) UpdatePassword(_ context.Context, id, passwordHash string) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	user, ok := s.users[id]
	if !ok {
		return repositories.ErrNotFound
	}
	user.Password = passwordHash
	s.users[id] = user
	return nil
}

func (s *fakeUserStore) UpdateAvatar(_ context.Context, id, url string) (models.User, error) {
	return s.updateAsset(id, url, true)
}

func (s *fakeUserStore) UpdateCoverImage(_ context.Context, id, url string) (models.User, error) {
	return s.updateAsset(id, url, false)
}

func (s *fakeUserStore) updateAsset(id, url string, avatar bool) (models.User, error) {
	if s.updateErr != nil {
		return models.User{}, s.updateErr
	}
	user, ok := s.users[id]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	if avatar {
		user.AvatarURL = url
	} else {
		user.CoverImageURL = url
	}
	s.users[id] = user
	return user, nil
}

type fakeSessionManager struct {
	byRefresh map[string]string
	revoked   []string
	counter   int

	issueErr   error
	refreshErr error
	revokeErr  error
}

func newFakeSessionManager() *fakeSessionManager {
	return &fakeSessionManager{byRefresh: make(map[string]string)}
}

func (m *fakeSessionManager) Issue(_ context.Context, userID string) (models.TokenPair, error) {
	if m.issueErr != nil {
		return models.TokenPair{}, m.issueErr
	}
	m.counter++
	pair := models.TokenPair{
		AccessToken:      fmt.Sprintf("access-%s-%d", userID, m.counter),
		AccessExpiresAt:  time.Now().Add(15 * time.Minute),
		RefreshToken:     fmt.Sprintf("refresh-%s-%d", userID, m.counter),
		RefreshExpiresAt: time.Now().Add(7 * 24 * time.Hour),
	}
	m.byRefresh[pair.RefreshToken] = userID
	return pair, nil
}

func (m *fakeSessionManager) Refresh(ctx context.Context, refreshToken string) (models.TokenPair, error) {
	if m.refreshErr != nil {
		return models.TokenPair{}, m.refreshErr
	}
	userID, ok := m.byRefresh[refreshToken]
	if !ok {
		return models.TokenPair{}, fmt.Errorf("unknown refresh token")
	}
	delete(m.byRefresh, refreshToken)
	return m.Issue(ctx, userID)
}

func (m *fakeSessionManager) Revoke(_ context.Context, userID string) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	m.revoked = append(m.revoked, userID)
	return nil
}

type fakeMediaStore struct {
	uploads []string
	deletes []string

	uploadErr error
	deleteErr error
}

func (s *fakeMediaStore) Upload(_ context.Context, key string, body io.ReadSeeker, _ string) (string, error) {
	if s.uploadErr != nil {
		return "", s.uploadErr
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	s.uploads = append(s.uploads, key)
	return "https://cdn.test/" + key, nil
}

func (s *fakeMediaStore) Delete(_ context.Context, location string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deletes = append(s.deletes, location)
	return nil
}

type fakeProber struct {
	duration float64
	err      error
}

func (p *fakeProber) Duration(context.Context, string) (float64, error) {
	return p.duration, p.err
}

type fakeVideoStore struct {
	videos map[string]models.Video

	createErr error
	listErr   error
}

func newFakeVideoStore() *fakeVideoStore {
	return &fakeVideoStore{videos: make(map[string]models.Video)}
}

func (s *fakeVideoStore) add(video models.Video) {
	s.videos[video.ID] = video
}

func (s *fakeVideoStore) Create(_ context.Context, video models.Video) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.videos[video.ID] = video
	return nil
}

func (s *fakeVideoStore) FindByID(_ context.Context, id string) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	return video, nil
}

func (s *fakeVideoStore) List(_ context.Context, filter repositories.VideoFilter) ([]models.Video, int64, error) {
	if s.listErr != nil {
		return nil, 0, s.listErr
	}

	var matched []models.Video
	for _, video := range s.videos {
		if filter.Published != nil && video.IsPublished != *filter.Published {
			continue
		}
		if filter.OwnerID != "" && video.OwnerID != filter.OwnerID {
			continue
		}
		if filter.Query != "" && !strings.Contains(strings.ToLower(video.Title), strings.ToLower(filter.Query)) {
			continue
		}
		matched = append(matched, video)
	}

	sort.Slice(matched, func(i, j int) bool {
		if filter.SortDesc {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	if filter.Offset >= len(matched) {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

func (s *fakeVideoStore) Update(_ context.Context, id string, patch repositories.VideoPatch) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	if patch.Title != nil {
		video.Title = *patch.Title
	}
	if patch.Description != nil {
		video.Description = *patch.Description
	}
	if patch.ThumbnailURL != nil {
		video.ThumbnailURL = *patch.ThumbnailURL
	}
	video.UpdatedAt = time.Now().UTC()
	s.videos[id] = video
	return video, nil
}

func (s *fakeVideoStore) Delete(_ context.Context, id string) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	delete(s.videos, id)
	return video, nil
}

func (s *fakeVideoStore) TogglePublish(_ context.Context, id string) (models.Video, error) {
	video, ok := s.videos[id]
	if !ok {
		return models.Video{}, repositories.ErrNotFound
	}
	video.IsPublished = !video.IsPublished
	s.videos[id] = video
	return video, nil
}

type fakeHistoryStore struct {
	added   [][2]string
	entries []models.WatchHistoryEntry

	addErr  error
	listErr error
}

func (s *fakeHistoryStore) Add(_ context.Context, userID, videoID string) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.added = append(s.added, [2]string{userID, videoID})
	return nil
}

func (s *fakeHistoryStore) ListForUser(_ context.Context, _ string) ([]models.WatchHistoryEntry, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.entries, nil
}

type fakeSubscriptionStore struct {
	edges map[[2]string]bool

	toggleErr error
	listErr   error
}

func newFakeSubscriptionStore() *fakeSubscriptionStore {
	return &fakeSubscriptionStore{edges: make(map[[2]string]bool)}
}

func (s *fakeSubscriptionStore) Toggle(_ context.Context, subscriberID, channelID string) (bool, error) {
	if s.toggleErr != nil {
		return false, s.toggleErr
	}
	key := [2]string{subscriberID, channelID}
	if s.edges[key] {
		delete(s.edges, key)
		return false, nil
	}
	s.edges[key] = true
	return true, nil
}

func (s *fakeSubscriptionStore) ListSubscribers(_ context.Context, channelID string) ([]models.ChannelSummary, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.ChannelSummary
	for key := range s.edges {
		if key[1] == channelID {
			out = append(out, models.ChannelSummary{ID: key[0], Username: "user-" + key[0]})
		}
	}
	return out, nil
}

func (s *fakeSubscriptionStore) ListSubscribedChannels(_ context.Context, subscriberID string) ([]models.ChannelSummary, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var out []models.ChannelSummary
	for key := range s.edges {
		if key[0] == subscriberID {
			out = append(out, models.ChannelSummary{ID: key[1], Username: "user-" + key[1]})
		}
	}
	return out, nil
}

type denyAllLimiter struct{}

func (denyAllLimiter) Allow(string) bool { return false }

func hashPassword(password string) string {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		panic(err)
	}
	return string(hashed)
}

type testEnvelope struct {
	StatusCode int             `json:"statusCode"`
	Data       json.RawMessage `json:"data"`
	Message    string          `json:"message"`
	Success    bool            `json:"success"`
}

// decodeEnvelope unwraps the response envelope and optionally decodes its
// data payload into out.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, out any) testEnvelope {
	t.Helper()

	var envelope testEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode envelope data: %v", err)
		}
	}
	return envelope
}

type uploadFile struct {
	field    string
	filename string
	contents string
}

// multipartBody builds a multipart form body with the given text fields and files.
func multipartBody(fields map[string]string, files ...uploadFile) (*bytes.Buffer, string) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			panic(err)
		}
	}
	for _, file := range files {
		part, err := writer.CreateFormFile(file.field, file.filename)
		if err != nil {
			panic(err)
		}
		if _, err := part.Write([]byte(file.contents)); err != nil {
			panic(err)
		}
	}
	if err := writer.Close(); err != nil {
		panic(err)
	}
	return body, writer.FormDataContentType()
}
