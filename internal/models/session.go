package models

import (
	"time"

	"github.com/google/uuid"
)

// Session is the server-side record behind a session cookie.
// Only the user ID is kept; the user itself is reloaded on every request.
type Session struct {
	SessionID string    `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"` // uuid.Nil for anonymous sessions
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Anonymous reports whether the session carries no identity.
func (s *Session) Anonymous() bool {
	return s == nil || s.UserID == uuid.Nil
}

// FlashKind distinguishes success and error notices.
type FlashKind string

const (
	FlashSuccess FlashKind = "success"
	FlashError   FlashKind = "error"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	Kind    FlashKind `json:"kind"`
	Message string    `json:"message"`
}

// FlashErr builds an error flash.
func FlashErr(msg string) Flash {
	return Flash{Kind: FlashError, Message: msg}
}

// FlashOK builds a success flash.
func FlashOK(msg string) Flash {
	return Flash{Kind: FlashSuccess, Message: msg}
}
