package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt"
	"go.uber.org/zap"

	"github.com/fatflowers/posbridge/pkg/logctx"
)

// DeviceIDKey holds the authenticated device id in gin.Context.
const DeviceIDKey = "deviceID"

// DeviceClaims identify a POS device. The subject is the device id.
type DeviceClaims struct {
	jwt.StandardClaims
	Merchant string `json:"merchant,omitempty"`
}

// DeviceAuthMiddleware requires an HS256 bearer token signed with secret. An
// empty secret disables the check.
func DeviceAuthMiddleware(secret string, base *zap.SugaredLogger) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		if secret == "" {
			c.Next()
			return
		}

		raw := strings.TrimSpace(c.GetHeader("Authorization"))
		if len(raw) < 7 || !strings.EqualFold(raw[:7], "bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims := &DeviceClaims{}
		token, err := jwt.ParseWithClaims(strings.TrimSpace(raw[7:]), claims, func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return key, nil
		})
		if err != nil || !token.Valid || claims.Subject == "" {
			logctx.FromGin(c, base).Infow("device_auth_rejected", "error", err)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		c.Set(DeviceIDKey, claims.Subject)
		devLogger := logctx.FromGin(c, base).With("device_id", claims.Subject)
		c.Set(logctx.LoggerKey, devLogger)
		c.Request = c.Request.WithContext(context.WithValue(c.Request.Context(), logctx.LoggerKey, devLogger))
		c.Next()
	}
}
