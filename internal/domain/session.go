package domain

import "time"

type SessionID string

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// SessionSummary mirrors the service-side session record. Exactly one
// session is active at any time; the active id only changes through an
// explicit switch, create, or delete-and-replace operation.
type SessionSummary struct {
	ID           SessionID
	Title        string
	LastMessage  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
	MessageCount int
}

type Message struct {
	Role      Role
	Content   string
	CreatedAt time.Time
}

// SessionHistory is the transcript of one session. An empty Messages slice
// is a valid state distinct from "no session".
type SessionHistory struct {
	ID       SessionID
	Title    string
	Messages []Message
}
