package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/roomchat/roomchat-backend/internal/chat"
	"github.com/roomchat/roomchat-backend/internal/contextkey"
	"github.com/roomchat/roomchat-backend/internal/models"
	"github.com/roomchat/roomchat-backend/internal/utils"
)

const sessionCookieName = "session_id"

// AuthMiddleware resolves the session_id cookie into a user and stores
// user id and session id on the request context. The KV read slides the
// session TTL as a side effect.
func (r *Router) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		user, session, err := r.resolveSession(req)
		if err != nil {
			respondDomainError(w, err)
			return
		}

		ctx := context.WithValue(req.Context(), contextkey.ContextKeyUserID, user.ID)
		ctx = context.WithValue(ctx, contextkey.ContextKeySessionID, session.ID)
		next.ServeHTTP(w, req.WithContext(ctx))
	})
}

func (r *Router) resolveSession(req *http.Request) (*models.User, *models.UserSession, error) {
	cookie, err := req.Cookie(sessionCookieName)
	if err != nil {
		return nil, nil, chat.ErrNoSessionCookie
	}
	sessionID, err := uuid.Parse(cookie.Value)
	if err != nil {
		return nil, nil, chat.ErrInvalidSession
	}
	return r.users.ResolveSession(req.Context(), sessionID)
}

func authedUserID(req *http.Request) (uuid.UUID, bool) {
	userID, ok := req.Context().Value(contextkey.ContextKeyUserID).(uuid.UUID)
	return userID, ok
}

func authedSessionID(req *http.Request) (uuid.UUID, bool) {
	sessionID, ok := req.Context().Value(contextkey.ContextKeySessionID).(uuid.UUID)
	return sessionID, ok
}

// mustUserID is used inside authed handlers where the middleware has
// already run.
func mustUserID(w http.ResponseWriter, req *http.Request) (uuid.UUID, bool) {
	userID, ok := authedUserID(req)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "no session")
	}
	return userID, ok
}

func pathUUID(w http.ResponseWriter, req *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(req.PathValue(name))
	if err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
