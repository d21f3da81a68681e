package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/bulkedge/edgeadmin/internal/observability"
)

var (
	// ErrInvalidTransition is returned when an action is not allowed in the
	// current state.
	ErrInvalidTransition = errors.New("session: action not allowed in current state")
	// ErrMissingCredentials is returned for a blank username, password, or code.
	ErrMissingCredentials = errors.New("session: credentials required")
)

// Store owns the auth session. It is safe for concurrent use; actions are
// serialized so at most one auth request is outstanding.
type Store struct {
	client  AuthClient
	logger  *slog.Logger
	metrics *observability.Metrics

	op sync.Mutex

	mu        sync.RWMutex
	sess      Session
	observers []func(Session)
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMetrics sets the metric instruments.
func WithMetrics(m *observability.Metrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// NewStore returns a store in the validating state. Call Validate to settle it.
func NewStore(client AuthClient, logger *slog.Logger, opts ...StoreOption) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{
		client: client,
		logger: logger,
		sess:   Session{State: StateValidating},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current session.
func (s *Store) Snapshot() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sess
}

// OnChange registers fn to be called with the new session after every transition.
func (s *Store) OnChange(fn func(Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observers = append(s.observers, fn)
}

// Validate checks the existing cookie with the backend.
func (s *Store) Validate(ctx context.Context) Session {
	s.op.Lock()
	defer s.op.Unlock()

	if s.Snapshot().State != StateValidating {
		s.transition(ctx, Session{State: StateValidating})
	}
	username, err := s.client.Validate(ctx)
	if err != nil {
		s.logger.Debug("session not valid", "error", err)
		return s.transition(ctx, Session{State: StateUnauthenticated})
	}
	return s.transition(ctx, authenticated(username))
}

// Login submits credentials. It is allowed while unauthenticated or while an
// MFA code is pending, in which case the pending login is abandoned.
func (s *Store) Login(ctx context.Context, username, password string) (Session, error) {
	s.op.Lock()
	defer s.op.Unlock()

	cur := s.Snapshot().State
	if cur != StateUnauthenticated && cur != StateMFAPending {
		return s.Snapshot(), fmt.Errorf("%w: login from %s", ErrInvalidTransition, cur)
	}
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return s.fail(ctx, StateUnauthenticated, "", ErrMissingCredentials)
	}

	res, err := s.client.Login(ctx, username, password)
	if err != nil {
		s.logger.Warn("login failed", "username", username, "error", err)
		return s.fail(ctx, StateUnauthenticated, "", err)
	}
	if res.RequireMFA {
		s.logger.Info("mfa required", "username", res.Username)
		return s.transition(ctx, Session{State: StateMFAPending, PendingUser: res.Username}), nil
	}
	s.logger.Info("logged in", "username", res.Username)
	return s.transition(ctx, authenticated(res.Username)), nil
}

// SubmitMFA sends the one-time code for the pending user. A rejected code
// leaves the session pending so the code can be entered again.
func (s *Store) SubmitMFA(ctx context.Context, code string) (Session, error) {
	s.op.Lock()
	defer s.op.Unlock()

	cur := s.Snapshot()
	if cur.State != StateMFAPending {
		return cur, fmt.Errorf("%w: mfa from %s", ErrInvalidTransition, cur.State)
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return s.fail(ctx, StateMFAPending, cur.PendingUser, ErrMissingCredentials)
	}

	res, err := s.client.VerifyMFA(ctx, cur.PendingUser, code)
	if err != nil {
		s.logger.Warn("mfa rejected", "username", cur.PendingUser, "error", err)
		return s.fail(ctx, StateMFAPending, cur.PendingUser, err)
	}
	s.logger.Info("logged in", "username", res.Username, "mfa", true)
	return s.transition(ctx, authenticated(res.Username)), nil
}

// Logout ends the session. The local session is always cleared; a backend
// failure is only logged.
func (s *Store) Logout(ctx context.Context) Session {
	s.op.Lock()
	defer s.op.Unlock()

	if err := s.client.Logout(ctx); err != nil {
		s.logger.Warn("logout request failed", "error", err)
	}
	return s.transition(ctx, Session{State: StateUnauthenticated})
}

func (s *Store) fail(ctx context.Context, state State, pending string, err error) (Session, error) {
	return s.transition(ctx, Session{State: state, PendingUser: pending, LastError: err.Error()}), err
}

func (s *Store) transition(ctx context.Context, next Session) Session {
	next.Authenticated = next.State == StateAuthenticated

	s.mu.Lock()
	prev := s.sess.State
	s.sess = next
	observers := make([]func(Session), len(s.observers))
	copy(observers, s.observers)
	s.mu.Unlock()

	s.metrics.RecordSessionTransition(ctx, string(prev), string(next.State))
	s.logger.Debug("session transition", "from", prev, "to", next.State)
	for _, fn := range observers {
		fn(next)
	}
	return next
}

func authenticated(username string) Session {
	return Session{State: StateAuthenticated, Username: username}
}
