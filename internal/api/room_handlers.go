package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/roomchat/roomchat-backend/internal/chat"
	"github.com/roomchat/roomchat-backend/internal/utils"
)

type createRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsPublic    bool   `json:"is_public"`
}

type updateRoomRequest struct {
	Description *string `json:"description"`
	IsPublic    *bool   `json:"is_public"`
}

type joinRoomRequest struct {
	Message string `json:"message"`
}

type handleJoinRequest struct {
	Accept bool `json:"accept"`
}

// CreateRoomHandler creates a room with the caller as owner.
func (r *Router) CreateRoomHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	var body createRoomRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := r.rooms.Create(req.Context(), body.Name, body.Description, body.IsPublic, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, room)
}

func (r *Router) GetRoomHandler(w http.ResponseWriter, req *http.Request) {
	roomID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	room, err := r.rooms.Get(req.Context(), roomID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, room)
}

func (r *Router) UpdateRoomHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	var body updateRoomRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := r.rooms.Update(req.Context(), roomID, chat.RoomUpdate{
		Description: body.Description,
		IsPublic:    body.IsPublic,
	}, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, room)
}

func (r *Router) DeleteRoomHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	if err := r.rooms.Delete(req.Context(), roomID, userID); err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (r *Router) MyRoomsHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	rooms, err := r.rooms.ListUserRooms(req.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, rooms)
}

func (r *Router) TopRoomsHandler(w http.ResponseWriter, req *http.Request) {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	onlyPublic := req.URL.Query().Get("public") != "false"
	rooms, err := r.rooms.ListTopRooms(req.Context(), limit, onlyPublic)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, rooms)
}

func (r *Router) SearchRoomsHandler(w http.ResponseWriter, req *http.Request) {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))
	rooms, err := r.rooms.Search(req.Context(), req.URL.Query().Get("q"), limit)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, rooms)
}

func (r *Router) RoomUsersHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	users, err := r.rooms.ListRoomUsers(req.Context(), roomID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, users)
}

// JoinRoomHandler joins a public room directly or files a join request
// on a private one.
func (r *Router) JoinRoomHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	var body joinRoomRequest
	// Body is optional for public rooms.
	_ = json.NewDecoder(req.Body).Decode(&body)

	request, err := r.rooms.RequestJoin(req.Context(), roomID, userID, body.Message)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if request == nil {
		utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "joined"})
		return
	}
	utils.RespondJSON(w, http.StatusOK, request)
}

func (r *Router) RoomJoinRequestsHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	requests, err := r.rooms.ListJoinRequestsByRoom(req.Context(), roomID, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, requests)
}

func (r *Router) MyJoinRequestsHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	requests, err := r.rooms.ListJoinRequestsByUser(req.Context(), userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, requests)
}

func (r *Router) HandleJoinRequestHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	requestID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	var body handleJoinRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	request, err := r.rooms.HandleJoinRequest(req.Context(), requestID, body.Accept, userID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, request)
}

// RemoveRoomUserHandler removes a member. Removing the creator deletes
// the room.
func (r *Router) RemoveRoomUserHandler(w http.ResponseWriter, req *http.Request) {
	by, ok := mustUserID(w, req)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	targetID, ok := pathUUID(w, req, "user_id")
	if !ok {
		return
	}
	if err := r.rooms.RemoveParticipant(req.Context(), roomID, targetID, by); err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

// LeaveRoomHandler is remove-participant on self.
func (r *Router) LeaveRoomHandler(w http.ResponseWriter, req *http.Request) {
	userID, ok := mustUserID(w, req)
	if !ok {
		return
	}
	roomID, ok := pathUUID(w, req, "id")
	if !ok {
		return
	}
	if err := r.rooms.RemoveParticipant(req.Context(), roomID, userID, userID); err != nil {
		respondDomainError(w, err)
		return
	}
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "left"})
}
