package domain

// TurnState tracks one query turn through its lifecycle. A turn starts in
// TurnSending, moves to TurnStreaming or TurnAwaiting depending on transport,
// and always ends in exactly one terminal state before the in-flight slot is
// released.
type TurnState string

const (
	TurnIdle             TurnState = "idle"
	TurnSending          TurnState = "sending"
	TurnStreaming        TurnState = "streaming"
	TurnAwaiting         TurnState = "awaiting"
	TurnCompleted        TurnState = "completed"
	TurnCancelled        TurnState = "cancelled"
	TurnAuthExpired      TurnState = "auth_expired"
	TurnPasswordRequired TurnState = "password_required"
	TurnFailed           TurnState = "failed"
)

// Terminal reports whether the state ends a turn.
func (s TurnState) Terminal() bool {
	switch s {
	case TurnCompleted, TurnCancelled, TurnAuthExpired, TurnPasswordRequired, TurnFailed:
		return true
	}
	return false
}
