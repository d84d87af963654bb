// Package chat holds the domain services: users, rooms, messages,
// notifications, websocket sessions and analytics reads.
package chat

import "errors"

// Not-found
var (
	ErrUserNotFound         = errors.New("user not found")
	ErrRoomNotFound         = errors.New("room not found")
	ErrMessageNotFound      = errors.New("message not found")
	ErrNotificationNotFound = errors.New("notification not found")
	ErrJoinRequestNotFound  = errors.New("join request not found")
	ErrSessionNotFound      = errors.New("session not found")
	ErrWSSessionNotFound    = errors.New("websocket session not found")
)

// Conflict
var (
	ErrUserAlreadyExists        = errors.New("user already exists")
	ErrRoomAlreadyExists        = errors.New("room already exists")
	ErrJoinRequestAlreadyExists = errors.New("join request already exists")
	ErrNoChangesDetected        = errors.New("no changes detected")
	ErrValidation               = errors.New("validation failed")
)

// Auth
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrNoSessionCookie    = errors.New("no session cookie")
	ErrInvalidSession     = errors.New("invalid session")
)

// Permission
var (
	ErrMessagePermission      = errors.New("not allowed to modify this message")
	ErrRoomPermission         = errors.New("not allowed to manage this room")
	ErrNotificationPermission = errors.New("not allowed to access this notification")
	ErrWSSessionPermission    = errors.New("not allowed to manage this websocket session")
)
