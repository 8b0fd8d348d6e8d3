// Package http provides the operator API authentication and rate limiting middleware.
package http

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	authService "github.com/allisson/marketsync/internal/auth/service"
	apperrors "github.com/allisson/marketsync/internal/errors"
	"github.com/allisson/marketsync/internal/httputil"
)

// OperatorAuthMiddleware requires a Bearer token matching the configured operator token hash.
//
// An empty tokenHash disables the operator API: every request is rejected with 403 so that
// a missing configuration never exposes the outbox controls.
//
// Error handling:
//   - Operator API disabled → 403 Forbidden
//   - Missing or malformed Authorization header → 401 Unauthorized
//   - Token does not match → 401 Unauthorized
func OperatorAuthMiddleware(
	tokenService authService.OperatorTokenService,
	tokenHash string,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		if tokenHash == "" {
			logger.Warn("operator request rejected: operator API is disabled")
			httputil.HandleErrorGin(c, apperrors.ErrForbidden, logger)
			c.Abort()
			return
		}

		plainToken, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			logger.Debug("operator authentication failed: missing or malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		if !tokenService.VerifyToken(plainToken, tokenHash) {
			logger.Warn("operator authentication failed: invalid token",
				slog.String("client_ip", c.ClientIP()))
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}

// bearerToken extracts the token of a "Bearer <token>" header. The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	const bearerPrefix = "bearer "
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(bearerPrefix):])
	return token, token != ""
}
