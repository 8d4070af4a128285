package domain

// ClientState is the locally persisted client state.
type ClientState struct {
	ActiveSessionID    SessionID
	MustChangePassword bool
	LastUsername       string
}
