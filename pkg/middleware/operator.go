package middleware

import (
	"crypto/subtle"
	"strings"

	"boostfix/pkg/errutil"

	"github.com/gin-gonic/gin"
)

const HeaderAdminToken = "X-Admin-Token"

// RequireOperator admits only callers presenting token in X-Admin-Token. An
// empty token disables the guarded routes entirely.
func RequireOperator(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := strings.TrimSpace(c.GetHeader(HeaderAdminToken))
		if token == "" || got == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			_ = c.Error(errutil.Forbidden("operator credential required", nil))
			c.Abort()
			return
		}
		c.Next()
	}
}
