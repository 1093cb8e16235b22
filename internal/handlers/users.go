package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/viewtube/backend/internal/logging"
	"github.com/viewtube/backend/internal/middleware"
	"github.com/viewtube/backend/internal/models"
	"github.com/viewtube/backend/internal/repositories"
)

// RefreshTokenCookie is the cookie carrying the refresh token.
const RefreshTokenCookie = "refreshToken"

// UserHandler implements account, authentication and channel profile endpoints.
type UserHandler struct {
	Users    UserStore
	Sessions SessionManager
	History  HistoryStore
	Media    MediaStore

	AuthLimiter   RateLimiter
	SecureCookies bool
	NowFunc       func() time.Time
}

// Register handles POST /api/v1/users/register (multipart).
func (h UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.AuthLimiter, r, "register") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many registration attempts")
		return
	}

	if err := parseUploadForm(r); err != nil {
		logger.Warn("invalid register form", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	username := strings.TrimSpace(strings.ToLower(r.FormValue("username")))
	email := strings.TrimSpace(strings.ToLower(r.FormValue("email")))
	password := strings.TrimSpace(r.FormValue("password"))
	fullName := strings.TrimSpace(r.FormValue("fullName"))

	if username == "" || email == "" || password == "" || fullName == "" {
		respondError(ctx, w, http.StatusBadRequest, "all fields are required")
		return
	}
	if _, err := mail.ParseAddress(email); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid email address")
		return
	}
	if len(password) < 8 {
		respondError(ctx, w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	for _, identifier := range []string{username, email} {
		if _, err := h.Users.FindByLogin(ctx, identifier); err == nil {
			respondError(ctx, w, http.StatusConflict, "username or email already exists")
			return
		} else if !errors.Is(err, repositories.ErrNotFound) {
			logger.Error("register lookup failed", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "unable to verify existing accounts")
			return
		}
	}

	avatarFile, avatarHeader, err := formFile(r, "avatar")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid avatar upload")
		return
	}
	if avatarFile == nil {
		respondError(ctx, w, http.StatusBadRequest, "avatar is required")
		return
	}
	defer avatarFile.Close()

	avatarURL, err := h.Media.Upload(ctx, assetKey("avatars", avatarHeader.Filename), avatarFile, headerContentType(avatarHeader))
	if err != nil {
		logger.Error("avatar upload failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	var coverURL string
	coverFile, coverHeader, err := formFile(r, "coverImage")
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid cover image upload")
		return
	}
	if coverFile != nil {
		defer coverFile.Close()
		coverURL, err = h.Media.Upload(ctx, assetKey("covers", coverHeader.Filename), coverFile, headerContentType(coverHeader))
		if err != nil {
			logger.Error("cover image upload failed", "error", err)
			respondError(ctx, w, http.StatusInternalServerError, "failed to store cover image")
			return
		}
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("register failed to hash password", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	now := h.now()
	user := models.User{
		ID:            uuid.NewString(),
		Username:      username,
		Email:         email,
		FullName:      fullName,
		Password:      string(hashed),
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, "username or email already exists")
			return
		}
		logger.Error("register failed to create user", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create account")
		return
	}

	respondData(ctx, w, http.StatusCreated, user.Sanitized(), "user registered successfully")
}

// Login handles POST /api/v1/users/login.
func (h UserHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.AuthLimiter, r, "login") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many login attempts")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	identifier := strings.TrimSpace(strings.ToLower(req.Username))
	if identifier == "" {
		identifier = strings.TrimSpace(strings.ToLower(req.Email))
	}
	if identifier == "" || req.Password == "" {
		respondError(ctx, w, http.StatusBadRequest, "username or email and password are required")
		return
	}

	user, err := h.Users.FindByLogin(ctx, identifier)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user does not exist")
			return
		}
		logger.Error("login lookup failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "unable to verify credentials")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)) != nil {
		logger.Warn("login password mismatch", "userId", user.ID)
		respondError(ctx, w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tokens, err := h.Sessions.Issue(ctx, user.ID)
	if err != nil {
		logger.Error("failed to issue session", "error", err, "userId", user.ID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to create session")
		return
	}

	h.setAuthCookies(w, tokens)
	respondData(ctx, w, http.StatusOK, loginResponse{
		User:         user.Sanitized(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "logged in successfully")
}

// Logout handles POST /api/v1/users/logout. Idempotent.
func (h UserHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	if err := h.Sessions.Revoke(ctx, userID); err != nil {
		logging.FromContext(ctx).Error("failed to revoke session", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to log out")
		return
	}

	h.clearAuthCookies(w)
	respondData(ctx, w, http.StatusOK, struct{}{}, "logged out successfully")
}

// RefreshToken handles POST /api/v1/users/refreshtoken, rotating the pair.
func (h UserHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		if cookie, err := r.Cookie(RefreshTokenCookie); err == nil {
			token = cookie.Value
		}
	}
	if token == "" {
		respondError(ctx, w, http.StatusUnauthorized, "refresh token is required")
		return
	}

	tokens, err := h.Sessions.Refresh(ctx, token)
	if err != nil {
		// Any verification or lookup failure is an authentication failure.
		logging.FromContext(ctx).Warn("refresh rejected", "error", err)
		respondError(ctx, w, http.StatusUnauthorized, "invalid refresh token")
		return
	}

	h.setAuthCookies(w, tokens)
	respondData(ctx, w, http.StatusOK, tokens, "token refreshed successfully")
}

// ChangePassword handles POST /api/v1/users/changepassword.
func (h UserHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	userID := middleware.UserIDFromContext(ctx)

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	newPassword := strings.TrimSpace(req.NewPassword)
	if req.OldPassword == "" || newPassword == "" {
		respondError(ctx, w, http.StatusBadRequest, "old and new passwords are required")
		return
	}

	user, err := h.Users.FindByID(ctx, userID)
	if err != nil {
		respondStoreError(ctx, w, err, "user does not exist")
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.OldPassword)) != nil {
		respondError(ctx, w, http.StatusUnauthorized, "old password is incorrect")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("change password failed to hash", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to secure password")
		return
	}

	if err := h.Users.UpdatePassword(ctx, userID, string(hashed)); err != nil {
		respondStoreError(ctx, w, err, "user does not exist")
		return
	}

	respondData(ctx, w, http.StatusOK, struct{}{}, "password changed successfully")
}

// CurrentUser handles GET /api/v1/users/currentuser.
func (h UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, err := h.Users.FindByID(ctx, middleware.UserIDFromContext(ctx))
	if err != nil {
		respondStoreError(ctx, w, err, "user does not exist")
		return
	}

	respondData(ctx, w, http.StatusOK, user.Sanitized(), "current user fetched successfully")
}

// UpdateAccountDetails handles PATCH /api/v1/users/updateaccountdetails.
func (h UserHandler) UpdateAccountDetails(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.UserIDFromContext(ctx)

	var req updateDetailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	var fullName, email *string
	if trimmed := strings.TrimSpace(req.FullName); trimmed != "" {
		fullName = &trimmed
	}
	if trimmed := strings.TrimSpace(strings.ToLower(req.Email)); trimmed != "" {
		if _, err := mail.ParseAddress(trimmed); err != nil {
			respondError(ctx, w, http.StatusBadRequest, "invalid email address")
			return
		}
		email = &trimmed
	}

	if fullName == nil && email == nil {
		respondError(ctx, w, http.StatusBadRequest, "at least one of fullName or email is required")
		return
	}

	user, err := h.Users.UpdateDetails(ctx, userID, fullName, email)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondError(ctx, w, http.StatusConflict, "email already in use")
			return
		}
		respondStoreError(ctx, w, err, "user does not exist")
		return
	}

	respondData(ctx, w, http.StatusOK, user.Sanitized(), "account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/updateuseravatar (multipart).
func (h UserHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.updateAsset(w, r, "avatar", "avatars", h.Users.UpdateAvatar)
}

// UpdateCoverImage handles PATCH /api/v1/users/updateusercoverimage (multipart).
func (h UserHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.updateAsset(w, r, "coverImage", "covers", h.Users.UpdateCoverImage)
}

func (h UserHandler) updateAsset(w http.ResponseWriter, r *http.Request, field, prefix string, persist func(ctx context.Context, id, url string) (models.User, error)) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)
	userID := middleware.UserIDFromContext(ctx)

	if err := parseUploadForm(r); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := formFile(r, field)
	if err != nil || file == nil {
		respondError(ctx, w, http.StatusBadRequest, field+" file is required")
		return
	}
	defer file.Close()

	url, err := h.Media.Upload(ctx, assetKey(prefix, header.Filename), file, headerContentType(header))
	if err != nil {
		logger.Error("asset upload failed", "field", field, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store "+field)
		return
	}

	// The replaced object is left in the media store.
	user, err := persist(ctx, userID, url)
	if err != nil {
		respondStoreError(ctx, w, err, "user does not exist")
		return
	}

	respondData(ctx, w, http.StatusOK, user.Sanitized(), field+" updated successfully")
}

// ChannelProfile handles GET /api/v1/users/c/{username}.
func (h UserHandler) ChannelProfile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	username := strings.TrimSpace(strings.ToLower(r.PathValue("username")))
	if username == "" {
		respondError(ctx, w, http.StatusBadRequest, "username is required")
		return
	}

	profile, err := h.Users.FindChannelProfile(ctx, username, middleware.UserIDFromContext(ctx))
	if err != nil {
		respondStoreError(ctx, w, err, "channel does not exist")
		return
	}

	respondData(ctx, w, http.StatusOK, profile, "channel profile fetched successfully")
}

// WatchHistory handles GET /api/v1/users/watchhistory.
func (h UserHandler) WatchHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	entries, err := h.History.ListForUser(ctx, middleware.UserIDFromContext(ctx))
	if err != nil {
		respondStoreError(ctx, w, err, "user does not exist")
		return
	}
	if entries == nil {
		entries = []models.WatchHistoryEntry{}
	}

	respondData(ctx, w, http.StatusOK, entries, "watch history fetched successfully")
}

func (h UserHandler) setAuthCookies(w http.ResponseWriter, tokens models.TokenPair) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    tokens.AccessToken,
		Path:     "/",
		Expires:  tokens.AccessExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshTokenCookie,
		Value:    tokens.RefreshToken,
		Path:     "/",
		Expires:  tokens.RefreshExpiresAt,
		HttpOnly: true,
		Secure:   h.SecureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h UserHandler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AccessTokenCookie, RefreshTokenCookie} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.SecureCookies,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func (h UserHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

type updateDetailsRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
}
