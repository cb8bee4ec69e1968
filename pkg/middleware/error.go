package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"loyaltyhub/pkg/errutil"
)

// Error renders the last error pushed onto the gin context as a JSON body
// with the status mapped from its CoreStatus. Unclassified errors become 500.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if errors.As(last.Err, &be) {
			c.JSON(be.Code.HTTPStatus(), be.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, errutil.BaseError{
			Code:    errutil.StatusInternal,
			Message: "internal error",
		}.JSON())
	}
}
