// internal/middleware/helpers.go
package middleware

import (
	"fleetdesk-service/internal/domain/auth"
	"fleetdesk-service/internal/pkg/session"

	"github.com/gin-gonic/gin"
)

const (
	ctxUser      = "user"
	ctxRole      = "role"
	ctxCarrier   = "cookie_carrier"
	ctxRequestID = "request_id"
)

// GetUser gets the signed-in user set by the gate.
func GetUser(c *gin.Context) (*auth.User, bool) {
	v, exists := c.Get(ctxUser)
	if !exists {
		return nil, false
	}
	user, ok := v.(*auth.User)
	return user, ok && user != nil
}

// GetRole returns the resolved role, or "" for anonymous requests.
func GetRole(c *gin.Context) auth.Role {
	v, exists := c.Get(ctxRole)
	if !exists {
		return ""
	}
	role, _ := v.(auth.Role)
	return role
}

func IsDriver(c *gin.Context) bool {
	return GetRole(c).IsDriver()
}

// CarrierFrom returns the request's cookie carrier. Requests that skipped
// the gate get a fresh one, stored for later handlers.
func CarrierFrom(c *gin.Context) *session.Carrier {
	if v, exists := c.Get(ctxCarrier); exists {
		if carrier, ok := v.(*session.Carrier); ok {
			return carrier
		}
	}
	carrier := session.NewCarrier(c.Request)
	c.Set(ctxCarrier, carrier)
	return carrier
}

// GetRequestID returns the id assigned by LoggingMiddleware.
func GetRequestID(c *gin.Context) string {
	return c.GetString(ctxRequestID)
}
