package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminKeyRequired guards the admin group with the bearer admin key. Without a
// configured key hash the whole group answers 404.
func (s *Server) AdminKeyRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.adminKey.Enabled() {
			AbortWithError(c, ErrNotFound)
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		parts := strings.Fields(header)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.Header("WWW-Authenticate", `Bearer realm="admin"`)
			AbortWithError(c, ErrUnauthorized)
			return
		}

		if !s.adminKey.Verify(parts[1]) {
			s.log.Warn("admin key rejected", zap.String("client_ip", c.ClientIP()))
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Next()
	}
}
