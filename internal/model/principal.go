package model

import "time"

// Principal is the authenticated identity attached to a request.
// UserID is the textual form handed out by the session layer.
type Principal struct {
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Image     *string   `json:"image,omitempty"`
	TokenID   string    `json:"-"`
	ExpiresAt time.Time `json:"-"`
}
