// Package session tracks the operator's authentication session against the
// backend and drives the login and MFA exchange.
package session

// State is the position of the session in the login flow.
type State string

const (
	StateUnauthenticated State = "unauthenticated"
	StateValidating      State = "validating"
	StateAuthenticated   State = "authenticated"
	StateMFAPending      State = "mfa_pending"
)

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	switch s {
	case StateUnauthenticated, StateValidating, StateAuthenticated, StateMFAPending:
		return true
	}
	return false
}

// Session is a snapshot of the store.
type Session struct {
	State         State  `json:"state"`
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	// PendingUser is the user awaiting an MFA code.
	PendingUser string `json:"pending_user,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}
