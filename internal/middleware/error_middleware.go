package middleware

import (
	"ballot-engine/internal/services"
	"ballot-engine/internal/transport/httpdto"
	"ballot-engine/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// ErrorHandler renders errors attached with c.Error when the handler wrote nothing.
func ErrorHandler(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if l != nil {
			l.FromContext(c.Request.Context()).Logger.Error("request error", zap.Error(err))
		}
		c.JSON(services.HTTPStatus(err), httpdto.NewErrorResponse(err.Error(), services.ErrorCode(err)))
	}
}

// Recovery turns panics into a 500 response and logs them.
func Recovery(l *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		if l != nil {
			l.FromContext(c.Request.Context()).Logger.Error("panic recovered", zap.Any("panic", recovered))
		}
		c.AbortWithStatusJSON(500, httpdto.NewErrorResponse("internal error", "INTERNAL_ERROR"))
	})
}
