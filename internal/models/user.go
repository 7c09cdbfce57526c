package models

import "time"

type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	DisplayName  string    `json:"display_name"`
	AvatarURL    *string   `json:"avatar_url"`
	Online       bool      `json:"online"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Participant is the profile slice of a room member that the
// conversation list needs: identity plus display attributes.
type Participant struct {
	ID          int64   `json:"id"`
	Role        Role    `json:"role"`
	DisplayName string  `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
	Online      bool    `json:"online,omitempty"`
}
