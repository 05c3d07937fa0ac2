package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const userIDKey = "user_id"

// TokenVerifier проверяет bearer токен и возвращает id пользователя
type TokenVerifier interface {
	VerifyToken(token string) (string, error)
}

// RequireUser пропускает запрос дальше только с валидным Bearer токеном
func RequireUser(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			unauthorized(c, "Not authorized, no token")
			return
		}

		userID, err := verifier.VerifyToken(parts[1])
		if err != nil {
			unauthorized(c, "Not authorized, token failed")
			return
		}

		c.Set(userIDKey, userID)
		c.Next()
	}
}

// CurrentUser id пользователя, установленный RequireUser
func CurrentUser(c *gin.Context) string {
	return c.GetString(userIDKey)
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, errorResponse{
		Message: message,
		Error:   message,
		Code:    "UNAUTHORIZED",
	})
}

// AccessLog пишет одну строку лога на запрос
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		}
		if userID := CurrentUser(c); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}

		if c.Writer.Status() >= http.StatusInternalServerError {
			logger.Warn("HTTP request", fields...)
			return
		}
		logger.Info("HTTP request", fields...)
	}
}
