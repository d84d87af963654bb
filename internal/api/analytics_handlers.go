package api

import (
	"net/http"
	"strconv"

	"github.com/roomchat/roomchat-backend/internal/utils"
)

func (r *Router) RoomStatsHandler(w http.ResponseWriter, req *http.Request) {
	roomID, ok := pathUUID(w, req, "room_id")
	if !ok {
		return
	}
	stats, err := r.analytics.RoomStats(req.Context(), roomID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

func (r *Router) UserActivityHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := pathUUID(w, req, "user_id")
	if !ok {
		return
	}
	activity, err := r.analytics.UserActivity(req.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, activity)
}

func (r *Router) TopActiveRoomsHandler(w http.ResponseWriter, req *http.Request) {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	stats, err := r.analytics.TopActiveRooms(req.Context(), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, stats)
}

func (r *Router) MessagesPerMinuteHandler(w http.ResponseWriter, req *http.Request) {
	roomID, ok := pathUUID(w, req, "room_id")
	if !ok {
		return
	}
	minutes, _ := strconv.Atoi(req.URL.Query().Get("minutes"))
	rate, err := r.analytics.MessagesPerMinute(req.Context(), roomID, minutes)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]int64{"messages_per_minute": rate})
}
