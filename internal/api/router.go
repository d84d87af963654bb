package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/roomchat/roomchat-backend/internal/cache"
	"github.com/roomchat/roomchat-backend/internal/chat"
	"github.com/roomchat/roomchat-backend/internal/config"
	"github.com/roomchat/roomchat-backend/internal/db"
	"github.com/roomchat/roomchat-backend/internal/middleware"
	"github.com/roomchat/roomchat-backend/internal/utils"
)

// Router wires the HTTP surface: /api resources behind cookie auth and
// rate limiting, plus healthz and metrics.
type Router struct {
	mux           *http.ServeMux
	cfg           *config.Config
	logger        *utils.Logger
	database      *db.Database
	redisCache    *cache.Cache
	users         *chat.UserService
	rooms         *chat.RoomService
	messages      *chat.MessageService
	notifications *chat.NotificationService
	websockets    *chat.WebSocketService
	analytics     *chat.AnalyticsService
	bus           *cache.Bus
}

// Deps carries everything the router needs from main.
type Deps struct {
	Config        *config.Config
	Logger        *utils.Logger
	Database      *db.Database
	Cache         *cache.Cache
	Users         *chat.UserService
	Rooms         *chat.RoomService
	Messages      *chat.MessageService
	Notifications *chat.NotificationService
	WebSockets    *chat.WebSocketService
	Analytics     *chat.AnalyticsService
	Bus           *cache.Bus
}

// NewRouter creates the HTTP router with configured handlers and middleware.
func NewRouter(deps Deps) http.Handler {
	r := &Router{
		mux:           http.NewServeMux(),
		cfg:           deps.Config,
		logger:        deps.Logger,
		database:      deps.Database,
		redisCache:    deps.Cache,
		users:         deps.Users,
		rooms:         deps.Rooms,
		messages:      deps.Messages,
		notifications: deps.Notifications,
		websockets:    deps.WebSockets,
		analytics:     deps.Analytics,
		bus:           deps.Bus,
	}

	rateLimiter := middleware.NewRateLimiter(deps.Cache.Client())

	// Public endpoints
	r.mux.HandleFunc("POST /api/users/register", r.RegisterHandler)
	r.mux.HandleFunc("POST /api/users/login", r.LoginHandler)
	r.mux.HandleFunc("GET /healthz", r.HealthzHandler)
	r.mux.Handle("GET /metrics", promhttp.Handler())

	// Protected endpoints
	protect := func(h http.HandlerFunc) http.Handler {
		return r.AuthMiddleware(rateLimiter.Middleware(h))
	}

	r.mux.Handle("POST /api/users/logout", protect(r.LogoutHandler))
	r.mux.Handle("GET /api/users/me", protect(r.MeHandler))
	r.mux.Handle("DELETE /api/users/me", protect(r.DeleteAccountHandler))
	r.mux.Handle("GET /api/users/me/messages", protect(r.MyMessagesHandler))

	r.mux.Handle("POST /api/rooms", protect(r.CreateRoomHandler))
	r.mux.Handle("GET /api/rooms/my", protect(r.MyRoomsHandler))
	r.mux.Handle("GET /api/rooms/top", protect(r.TopRoomsHandler))
	r.mux.Handle("GET /api/rooms/search", protect(r.SearchRoomsHandler))
	r.mux.Handle("GET /api/rooms/join-requests/my", protect(r.MyJoinRequestsHandler))
	r.mux.Handle("POST /api/rooms/join-requests/{id}/handle", protect(r.HandleJoinRequestHandler))
	r.mux.Handle("GET /api/rooms/{id}", protect(r.GetRoomHandler))
	r.mux.Handle("PATCH /api/rooms/{id}", protect(r.UpdateRoomHandler))
	r.mux.Handle("DELETE /api/rooms/{id}", protect(r.DeleteRoomHandler))
	r.mux.Handle("GET /api/rooms/{id}/users", protect(r.RoomUsersHandler))
	r.mux.Handle("POST /api/rooms/{id}/join", protect(r.JoinRoomHandler))
	r.mux.Handle("GET /api/rooms/{id}/join-requests", protect(r.RoomJoinRequestsHandler))
	r.mux.Handle("DELETE /api/rooms/{id}/users/{user_id}", protect(r.RemoveRoomUserHandler))
	r.mux.Handle("POST /api/rooms/{id}/leave", protect(r.LeaveRoomHandler))

	r.mux.Handle("POST /api/messages/{room_id}", protect(r.SendMessageHandler))
	r.mux.Handle("GET /api/messages/{room_id}", protect(r.RecentMessagesHandler))
	r.mux.Handle("PATCH /api/messages/{id}", protect(r.EditMessageHandler))
	r.mux.Handle("DELETE /api/messages/{id}", protect(r.DeleteMessageHandler))

	r.mux.Handle("GET /api/notifications", protect(r.ListNotificationsHandler))
	r.mux.Handle("GET /api/notifications/count", protect(r.CountUnreadHandler))
	r.mux.Handle("POST /api/notifications/read-all", protect(r.MarkAllReadHandler))
	r.mux.Handle("POST /api/notifications/{id}/read", protect(r.MarkReadHandler))
	r.mux.Handle("DELETE /api/notifications/{id}", protect(r.DeleteNotificationHandler))

	r.mux.Handle("GET /api/ws/active-users/{room_id}", protect(r.ActiveUsersHandler))
	r.mux.Handle("POST /api/ws/disconnect-user/{room_id}/{user_id}", protect(r.DisconnectUserHandler))
	r.mux.Handle("GET /api/ws/get-user-is-online/{user_id}", protect(r.UserIsOnlineHandler))

	r.mux.Handle("GET /api/analytics/room-stats/{room_id}", protect(r.RoomStatsHandler))
	r.mux.Handle("GET /api/analytics/user-activity/{user_id}", protect(r.UserActivityHandler))
	r.mux.Handle("GET /api/analytics/top-active-rooms", protect(r.TopActiveRoomsHandler))
	r.mux.Handle("GET /api/analytics/messages-per-minute/{room_id}", protect(r.MessagesPerMinuteHandler))

	// The upgrade handler authenticates from the cookie itself; rate
	// limiting does not apply to the long-lived stream.
	r.mux.HandleFunc("GET /api/ws/stream", r.StreamHandler)

	var handler http.Handler = r.mux
	handler = middleware.TracingMiddleware(handler)
	handler = middleware.RequestIDMiddleware(handler)
	return handler
}

func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	r.mux.ServeHTTP(w, req)
}

// HealthzHandler reports Postgres and Redis connectivity.
func (r *Router) HealthzHandler(w http.ResponseWriter, req *http.Request) {
	if err := r.database.Health(req.Context()); err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "database unhealthy")
		return
	}
	if err := r.redisCache.Health(req.Context()); err != nil {
		utils.RespondError(w, http.StatusServiceUnavailable, "redis unhealthy")
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
