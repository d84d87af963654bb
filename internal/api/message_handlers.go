package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/roomchat/roomchat-backend/internal/utils"
)

type messageRequest struct {
	Content string `json:"content"`
}

func (r *Router) SendMessageHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, req, "room_id")
	if !ok {
		return
	}
	var body messageRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := r.messages.Send(req.Context(), roomID, userID, body.Content)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, msg)
}

// RecentMessagesHandler returns the newest page of a room's messages.
// Query params: limit (clamped to [1,200]) and before (RFC3339).
func (r *Router) RecentMessagesHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, req, "room_id")
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	var before *time.Time
	if raw := req.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			utils.RespondError(w, http.StatusBadRequest, "invalid before timestamp")
			return
		}
		before = &t
	}

	messages, err := r.messages.GetRecent(req.Context(), roomID, userID, limit, before)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, messages)
}

func (r *Router) EditMessageHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	messageID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	var body messageRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := r.messages.Edit(req.Context(), messageID, userID, body.Content)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, msg)
}

func (r *Router) DeleteMessageHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	messageID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	if err := r.messages.Delete(req.Context(), messageID, userID); err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
