package ws

import "glxy/internal/domain"

// Envelope is every server frame; exactly one payload field is set
type Envelope struct {
	Type    string              `json:"type"`
	Profile *domain.UserProfile `json:"profile,omitempty"`
	Error   *ErrorPayload       `json:"error,omitempty"`
}

// client → server
type ClientMessage struct {
	Type string `json:"type"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}
