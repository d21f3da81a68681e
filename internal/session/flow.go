package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MaxMFAAttempts bounds how many codes a Flow asks for before giving up.
const MaxMFAAttempts = 3

// ErrAborted is returned when the operator declines to enter a value.
var ErrAborted = errors.New("session: login aborted")

// Prompter asks the operator for login values.
type Prompter interface {
	Username(ctx context.Context) (string, error)
	Password(ctx context.Context, username string) (string, error)
	MFACode(ctx context.Context, username string, attempt int) (string, error)
}

// Flow takes a store from wherever it is to authenticated.
type Flow struct {
	Store    *Store
	Prompter Prompter
}

// Ensure validates the existing session and, if needed, prompts for
// credentials and an MFA code.
func (f Flow) Ensure(ctx context.Context) (Session, error) {
	sess := f.Store.Snapshot()
	if sess.State == StateValidating {
		sess = f.Store.Validate(ctx)
	}
	if sess.Authenticated {
		return sess, nil
	}
	if sess.State == StateUnauthenticated {
		var err error
		if sess, err = f.login(ctx); err != nil {
			return sess, err
		}
	}
	if sess.State == StateMFAPending {
		return f.mfa(ctx, sess)
	}
	return sess, nil
}

func (f Flow) login(ctx context.Context) (Session, error) {
	username, err := f.Prompter.Username(ctx)
	if err != nil {
		return f.Store.Snapshot(), err
	}
	if strings.TrimSpace(username) == "" {
		return f.Store.Snapshot(), ErrAborted
	}
	password, err := f.Prompter.Password(ctx, username)
	if err != nil {
		return f.Store.Snapshot(), err
	}
	return f.Store.Login(ctx, username, password)
}

func (f Flow) mfa(ctx context.Context, sess Session) (Session, error) {
	var lastErr error
	for attempt := 1; attempt <= MaxMFAAttempts; attempt++ {
		code, err := f.Prompter.MFACode(ctx, sess.PendingUser, attempt)
		if err != nil {
			return f.Store.Snapshot(), err
		}
		if strings.TrimSpace(code) == "" {
			return f.Store.Snapshot(), ErrAborted
		}
		sess, lastErr = f.Store.SubmitMFA(ctx, code)
		if lastErr == nil {
			return sess, nil
		}
		if ctx.Err() != nil {
			return sess, ctx.Err()
		}
	}
	return sess, fmt.Errorf("session: mfa failed after %d attempts: %w", MaxMFAAttempts, lastErr)
}
