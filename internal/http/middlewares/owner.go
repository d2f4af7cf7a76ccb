package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireOwnerParam lets the request through only when the path parameter
// names the authenticated subject.
func RequireOwnerParam(param string) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, ok := SubjectIDFromContext(c)

		if !ok {
			abortError(c, http.StatusUnauthorized, "unauthorized", "Missing identity context")
			return
		}

		if c.Param(param) != subject {
			abortError(c, http.StatusForbidden, "forbidden", "You can only access your own expenses")
			return
		}
		c.Next()
	}
}
