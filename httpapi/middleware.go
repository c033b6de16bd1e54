package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// userIDKey is the gin context key the authenticated user id is stored under.
const userIDKey = "user_id"

// TokenVerifier checks a bearer token and returns the user it was issued for.
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// requireAuth rejects requests without a valid Bearer token and stores the
// authenticated user id on the context.
func requireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		userID, err := verifier.VerifyToken(token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// actorID returns the authenticated user id placed by requireAuth.
func actorID(c *gin.Context) string {
	return c.GetString(userIDKey)
}

// requestLogger logs one line per request with latency and status.
func requestLogger(logger *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Infow("http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}
