package models

import "time"

type Room struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"user_id"`
	ProviderID int64     `json:"provider_id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ParticipantID returns the member of the room holding the given role.
func (r Room) ParticipantID(role Role) int64 {
	if role == RoleUser {
		return r.UserID
	}
	return r.ProviderID
}

type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
	KindVoice MessageKind = "voice"
	KindFile  MessageKind = "file"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindImage, KindVoice, KindFile:
		return true
	}
	return false
}

// Message is a single room message. IsRead is stored tri-state in the
// database (true / false / NULL); repositories normalize NULL to false
// on scan so everything downstream sees a plain boolean.
type Message struct {
	ID              int64       `json:"id"`
	RoomID          int64       `json:"room_id"`
	SenderID        int64       `json:"sender_id"`
	SenderRole      Role        `json:"sender_role"`
	Kind            MessageKind `json:"kind"`
	Content         string      `json:"content"`
	Filename        *string     `json:"filename,omitempty"`
	VoiceDurationMS int64       `json:"voice_duration_ms,omitempty"`
	IsRead          bool        `json:"is_read"`
	CreatedAt       time.Time   `json:"created_at"`
}

// ConversationView is one row of the inbox list. It is derived on every
// aggregation pass and never persisted.
type ConversationView struct {
	RoomID        int64       `json:"room_id"`
	Counterpart   Participant `json:"counterpart"`
	Preview       string      `json:"preview"`
	LastMessageAt *time.Time  `json:"last_message_at,omitempty"`
	UnreadCount   int         `json:"unread_count"`
	RoomCreatedAt time.Time   `json:"room_created_at"`
}

type PaginationMeta struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}
