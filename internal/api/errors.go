package api

import (
	"errors"
	"net/http"

	"github.com/roomchat/roomchat-backend/internal/chat"
	"github.com/roomchat/roomchat-backend/internal/utils"
)

// statusFor maps domain errors onto HTTP statuses: 400 for
// conflict/validation, 401 for auth, 403 for permission, 404 for
// not-found, 500 otherwise.
func statusFor(err error) int {
	switch {
	case errors.Is(err, chat.ErrUserNotFound),
		errors.Is(err, chat.ErrRoomNotFound),
		errors.Is(err, chat.ErrMessageNotFound),
		errors.Is(err, chat.ErrNotificationNotFound),
		errors.Is(err, chat.ErrJoinRequestNotFound),
		errors.Is(err, chat.ErrWSSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, chat.ErrUserAlreadyExists),
		errors.Is(err, chat.ErrRoomAlreadyExists),
		errors.Is(err, chat.ErrJoinRequestAlreadyExists),
		errors.Is(err, chat.ErrNoChangesDetected),
		errors.Is(err, chat.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, chat.ErrInvalidCredentials),
		errors.Is(err, chat.ErrNoSessionCookie),
		errors.Is(err, chat.ErrInvalidSession),
		errors.Is(err, chat.ErrSessionNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, chat.ErrMessagePermission),
		errors.Is(err, chat.ErrRoomPermission),
		errors.Is(err, chat.ErrNotificationPermission),
		errors.Is(err, chat.ErrWSSessionPermission):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondDomainError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		message = "internal error"
	}
	utils.RespondError(w, status, message)
}
