package api

import (
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/utils"
	"github.com/roomchat/roomchat-backend/internal/ws"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The session cookie is the authentication; origin policy is the
	// edge proxy's concern.
	CheckOrigin: func(*http.Request) bool { return true },
}

// StreamHandler upgrades to WebSocket and runs the connection loop
// until the socket dies. Auth comes from the session cookie sent on the
// upgrade request.
func (r *Router) StreamHandler(w http.ResponseWriter, req *http.Request) {
	user, session, err := r.resolveSession(req)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	roomID, err := uuid.Parse(req.URL.Query().Get("room_id"))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid room_id")
		return
	}

	conn, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error(req.Context(), "websocket upgrade failed: %v", err)
		return
	}

	host, _, splitErr := net.SplitHostPort(req.RemoteAddr)
	if splitErr != nil {
		host = req.RemoteAddr
	}
	now := time.Now().UTC()
	wsSession := &models.WSSession{
		ID:            uuid.New(),
		UserID:        user.ID,
		RoomID:        roomID,
		UserSessionID: session.ID,
		ConnectedAt:   now,
		LastPingAt:    now,
		IPAddress:     host,
	}

	channels, err := r.websockets.ConnectToRoom(req.Context(), wsSession)
	if err != nil {
		r.logger.Error(req.Context(), "websocket connect failed: %v", err)
		conn.Close()
		return
	}

	sub, err := r.bus.Subscribe(req.Context(), channels...)
	if err != nil {
		r.logger.Error(req.Context(), "websocket subscribe failed: %v", err)
		if dErr := r.websockets.DisconnectFromRoom(req.Context(), wsSession.ID, user.ID); dErr != nil {
			r.logger.Error(req.Context(), "websocket rollback disconnect failed: %v", dErr)
		}
		conn.Close()
		return
	}

	// Blocks for the life of the connection; teardown is the loop's job.
	ws.NewConn(conn, wsSession, user, r.websockets, sub, r.logger).Run(req.Context())
}

func (r *Router) ActiveUsersHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, req, "room_id")
	if !ok {
		return
	}
	users, err := r.websockets.ActiveUsersInRoom(req.Context(), roomID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, users)
}

func (r *Router) DisconnectUserHandler(w http.ResponseWriter, req *http.Request) {
	by, ok := mustUserID(w, req)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, req, "room_id")
	if !ok {
		return
	}
	targetID, ok := pathUUID(w, req, "user_id")
	if !ok {
		return
	}
	if err := r.websockets.DisconnectUserFromRoom(req.Context(), targetID, roomID, by); err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "disconnected"})
}

func (r *Router) UserIsOnlineHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := pathUUID(w, req, "user_id")
	if !ok {
		return
	}
	online, err := r.websockets.IsUserOnline(req.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"online": online})
}
