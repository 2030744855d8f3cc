package middleware

import (
	"errors"
	"net/http"

	"boostfix/pkg/errutil"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error renders the last error attached to the context. BaseErrors keep their
// code and message; anything else is reported by its status with an opaque
// message for internal failures.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if errors.As(last.Err, &be) {
			if be.Code == errutil.StatusInternal {
				zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(last.Err))
			}
			c.JSON(be.Code.HTTPStatus(), be.JSON())
			return
		}

		status := errutil.StatusOf(last.Err)
		msg := last.Err.Error()
		if status == errutil.StatusInternal {
			zap.L().Error("request failed", zap.String("path", c.FullPath()), zap.Error(last.Err))
			msg = http.StatusText(http.StatusInternalServerError)
		}
		c.JSON(status.HTTPStatus(), errutil.BaseError{Code: status, Message: msg}.JSON())
	}
}
