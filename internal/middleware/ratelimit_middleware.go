package middleware

import (
	"net/http"
	"strconv"

	"ballot-engine/internal/redis"
	"ballot-engine/internal/services"
	"ballot-engine/internal/transport/httpdto"
	"ballot-engine/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// VoteRateLimitMiddleware caps vote attempts per participant. Must run after AuthMiddleware.
// A limiter outage lets the request through: the ledger still enforces one ballot per poll.
func VoteRateLimitMiddleware(limiter *redis.RateLimiter, l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		participantID, ok := services.ParticipantIDFromContext(c.Request.Context())
		if !ok || limiter == nil {
			c.Next()
			return
		}

		result, err := limiter.AllowVote(c.Request.Context(), participantID.String())
		if err != nil {
			if l != nil {
				l.FromContext(c.Request.Context()).Logger.Warn("vote rate limit check failed", zap.Error(err))
			}
			c.Next()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("vote rate limit exceeded", "RATE_LIMITED"))
			return
		}

		c.Next()
	}
}

func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
