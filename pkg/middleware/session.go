package middleware

import (
	"context"
	"strings"

	"boostfix/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const (
	HeaderUserID     = "X-User-ID"
	HeaderUserHandle = "X-User-Handle"
)

// Session is the caller identity supplied by the upstream session provider.
type Session struct {
	UserID      string
	Handle      string
	AccessToken string
}

func (s Session) Valid() bool {
	return s.UserID != "" && s.AccessToken != ""
}

type sessionKey struct{}

var SessionContextKey = sessionKey{}

func bearer(header string) string {
	const prefix = "bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return strings.TrimSpace(header[len(prefix):])
	}
	return ""
}

// Sessions reads the session headers into the request context. It never
// rejects a request; see RequireSession.
func Sessions() gin.HandlerFunc {
	return func(c *gin.Context) {
		s := Session{
			UserID:      strings.TrimSpace(c.GetHeader(HeaderUserID)),
			Handle:      strings.TrimPrefix(strings.TrimSpace(c.GetHeader(HeaderUserHandle)), "@"),
			AccessToken: bearer(c.GetHeader("Authorization")),
		}
		c.Request = c.Request.WithContext(WithSession(c.Request.Context(), s))
		c.Next()
	}
}

// RequireSession aborts with 401 when the caller has no usable session.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !GetSession(c.Request.Context()).Valid() {
			_ = c.Error(errutil.Unauthorized("not connected, reconnect your account", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}

func WithSession(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, SessionContextKey, s)
}

func GetSession(ctx context.Context) Session {
	s, _ := ctx.Value(SessionContextKey).(Session)
	return s
}
