package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/roomchat/roomchat-backend/internal/utils"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterHandler handles user registration
func (r *Router) RegisterHandler(w http.ResponseWriter, req *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(body.Username) < 3 || len(body.Password) < 8 {
		utils.RespondError(w, http.StatusBadRequest, "username must be at least 3 and password at least 8 characters")
		return
	}

	user, err := r.users.Register(req.Context(), body.Username, body.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, user)
}

// LoginHandler handles login and sets the session cookie.
func (r *Router) LoginHandler(w http.ResponseWriter, req *http.Request) {
	var body credentialsRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, session, err := r.users.Login(req.Context(), body.Username, body.Password)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.ID.String(),
		Path:     "/",
		MaxAge:   int(r.cfg.UserSessionTTL.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	utils.RespondJSON(w, http.StatusOK, user)
}

// LogoutHandler revokes the session and clears the cookie.
func (r *Router) LogoutHandler(w http.ResponseWriter, req *http.Request) {
	sessionID, ok := authedSessionID(req)
	if !ok {
		utils.RespondError(w, http.StatusUnauthorized, "no session")
		return
	}
	if err := r.users.Logout(req.Context(), sessionID); err != nil {
		respondDomainError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

// MeHandler returns the authenticated user.
func (r *Router) MeHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	user, err := r.users.GetUserByID(req.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, user)
}

// DeleteAccountHandler deletes the authenticated user's account.
func (r *Router) DeleteAccountHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	if err := r.users.DeleteUser(req.Context(), userID); err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// MyMessagesHandler returns the caller's recent messages across rooms.
func (r *Router) MyMessagesHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	messages, err := r.messages.GetRecentByUser(req.Context(), userID, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}
