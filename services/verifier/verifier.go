// Package verifier confirms that a user's claimed action on a social post is
// observable on the platform.
package verifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

type ActionKind string

const (
	Like   ActionKind = "like"
	Repost ActionKind = "repost"
	Reply  ActionKind = "reply"
)

// Priority is the order in which a task's recorded actions are picked for
// verification. Exactly one kind is verified per claim.
var Priority = []ActionKind{Like, Repost, Reply}

func ParseActionKind(s string) (ActionKind, error) {
	switch k := ActionKind(strings.ToLower(strings.TrimSpace(s))); k {
	case Like, Repost, Reply:
		return k, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, s)
	}
}

func (k ActionKind) Valid() bool {
	_, err := ParseActionKind(string(k))
	return err == nil
}

// Credential is the delegated platform credential of an authenticated user,
// as supplied by the session provider.
type Credential struct {
	AccessToken string
	UserID      string
	Handle      string
}

type Result struct {
	Confirmed      bool
	Kind           ActionKind
	PostID         string
	PlatformUserID string
	Scanned        int
}

var (
	ErrUnauthorized  = errors.New("platform credential invalid or expired")
	ErrRateLimited   = errors.New("platform rate limit reached")
	ErrTransient     = errors.New("platform temporarily unavailable")
	ErrUnknownAction = errors.New("unknown action type")
)

// RateLimitError is returned when the platform, or the local token bucket in
// front of it, refuses a call. It matches ErrRateLimited.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s, retry after %s", ErrRateLimited, e.RetryAfter.Round(time.Second))
	}
	return ErrRateLimited.Error()
}

func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}

// Verifier answers whether an action of the given kind on postID is currently
// observable for the credential's owner. A negative answer is a Result with
// Confirmed=false, never an error.
type Verifier interface {
	Verify(ctx context.Context, cred Credential, kind ActionKind, postID string) (Result, error)
}

// Func adapts an ordinary function to the Verifier interface.
type Func func(ctx context.Context, cred Credential, kind ActionKind, postID string) (Result, error)

func (f Func) Verify(ctx context.Context, cred Credential, kind ActionKind, postID string) (Result, error) {
	return f(ctx, cred, kind, postID)
}
