package api

import (
	"net/http"
	"strconv"

	"github.com/roomchat/roomchat-backend/internal/utils"
)

// ListNotificationsHandler returns the caller's notifications, newest
// first. Query params: unread=true, limit.
func (r *Router) ListNotificationsHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	unreadOnly := req.URL.Query().Get("unread") == "true"

	notifications, err := r.notifications.List(req.Context(), userID, unreadOnly, limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, notifications)
}

func (r *Router) CountUnreadHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	count, err := r.notifications.CountUnread(req.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int{"unread": count})
}

func (r *Router) MarkReadHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	notificationID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	if err := r.notifications.MarkRead(req.Context(), notificationID, userID); err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (r *Router) MarkAllReadHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	if err := r.notifications.MarkAllRead(req.Context(), userID); err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (r *Router) DeleteNotificationHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	notificationID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	if err := r.notifications.Delete(req.Context(), notificationID, userID); err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
