package handlers

import (
	"net/http"

	"github.com/viewtube/backend/internal/middleware"
)

// Dependencies bundles everything the HTTP routes need.
type Dependencies struct {
	Users         UserStore
	Sessions      SessionManager
	Subscriptions SubscriptionStore
	Videos        VideoStore
	History       HistoryStore
	Media         MediaStore
	Prober        DurationProber

	Verifier      middleware.TokenVerifier
	AuthLimiter   RateLimiter
	SecureCookies bool
}

// RegisterRoutes mounts every API endpoint on the mux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	users := UserHandler{
		Users:         deps.Users,
		Sessions:      deps.Sessions,
		History:       deps.History,
		Media:         deps.Media,
		AuthLimiter:   deps.AuthLimiter,
		SecureCookies: deps.SecureCookies,
	}
	subscriptions := SubscriptionHandler{
		Subscriptions: deps.Subscriptions,
		Users:         deps.Users,
	}
	videos := VideoHandler{
		Videos:  deps.Videos,
		History: deps.History,
		Media:   deps.Media,
		Prober:  deps.Prober,
	}

	authed := middleware.RequireAuth(deps.Verifier)

	mux.HandleFunc("GET /healthz", HealthHandler{}.Handle)

	mux.HandleFunc("POST /api/v1/users/register", users.Register)
	mux.HandleFunc("POST /api/v1/users/login", users.Login)
	mux.HandleFunc("POST /api/v1/users/refreshtoken", users.RefreshToken)

	mux.Handle("POST /api/v1/users/logout", authed(http.HandlerFunc(users.Logout)))
	mux.Handle("POST /api/v1/users/changepassword", authed(http.HandlerFunc(users.ChangePassword)))
	mux.Handle("GET /api/v1/users/currentuser", authed(http.HandlerFunc(users.CurrentUser)))
	mux.Handle("PATCH /api/v1/users/updateaccountdetails", authed(http.HandlerFunc(users.UpdateAccountDetails)))
	mux.Handle("PATCH /api/v1/users/updateuseravatar", authed(http.HandlerFunc(users.UpdateAvatar)))
	mux.Handle("PATCH /api/v1/users/updateusercoverimage", authed(http.HandlerFunc(users.UpdateCoverImage)))
	mux.Handle("GET /api/v1/users/c/{username}", authed(http.HandlerFunc(users.ChannelProfile)))
	mux.Handle("GET /api/v1/users/watchhistory", authed(http.HandlerFunc(users.WatchHistory)))

	mux.Handle("POST /api/v1/subscriptions/c/{channelId}", authed(http.HandlerFunc(subscriptions.Toggle)))
	mux.Handle("GET /api/v1/subscriptions/c/{channelId}", authed(http.HandlerFunc(subscriptions.Subscribers)))
	mux.Handle("GET /api/v1/subscriptions/u/{subscriberId}", authed(http.HandlerFunc(subscriptions.SubscribedChannels)))

	mux.Handle("GET /api/v1/videos", authed(http.HandlerFunc(videos.List)))
	mux.Handle("POST /api/v1/videos", authed(http.HandlerFunc(videos.Publish)))
	mux.Handle("GET /api/v1/videos/{videoId}", authed(http.HandlerFunc(videos.Get)))
	mux.Handle("PATCH /api/v1/videos/{videoId}", authed(http.HandlerFunc(videos.Update)))
	mux.Handle("DELETE /api/v1/videos/{videoId}", authed(http.HandlerFunc(videos.Delete)))
	mux.Handle("PATCH /api/v1/videos/toggle/publish/{videoId}", authed(http.HandlerFunc(videos.TogglePublish)))
}
