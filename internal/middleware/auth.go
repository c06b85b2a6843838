// Package middleware provides authentication, authorization, validation and
// recovery middleware for the Gin web framework.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"metronix/internal/models"
	"metronix/internal/services"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// Session and context keys for the authenticated identity
const (
	// UserIDKey is the key used to store user ID in session
	UserIDKey = "user_id"
	// UsernameKey is the key used to store the display name in session
	UsernameKey = "username"
	// RoleKey is the key used to store the role in session
	RoleKey = "role"
	// AuthMethodKey records whether the request used the session or a bearer token
	AuthMethodKey = "auth_method"
)

// Authentication methods
const (
	AuthMethodSession = "session"
	AuthMethodBearer  = "bearer"
)

// TokenParser verifies bearer tokens
type TokenParser interface {
	ParseToken(ctx context.Context, token string) (*services.Claims, error)
}

// RequireAuth accepts either a cookie session or, when tokens is non-nil,
// an "Authorization: Bearer <jwt>" header. The identity is stored on the gin context.
func RequireAuth(tokens TokenParser) gin.HandlerFunc {
	return func(c *gin.Context) {
		if header := c.GetHeader("Authorization"); header != "" && tokens != nil {
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				abortUnauthorized(c)
				return
			}
			claims, err := tokens.ParseToken(c.Request.Context(), strings.TrimSpace(raw))
			if err != nil {
				abortUnauthorized(c)
				return
			}
			actor := claims.Actor()
			if actor.UserID <= 0 || !actor.Role.IsValid() {
				abortUnauthorized(c)
				return
			}
			setIdentity(c, actor, AuthMethodBearer)
			c.Next()
			return
		}

		session := sessions.Default(c)
		userID, ok := sessionUserID(session.Get(UserIDKey))
		if !ok {
			abortUnauthorized(c)
			return
		}
		roleStr, _ := session.Get(RoleKey).(string)
		role := models.Role(roleStr)
		if !role.IsValid() {
			abortUnauthorized(c)
			return
		}
		if name, ok := session.Get(UsernameKey).(string); ok {
			c.Set(UsernameKey, name)
		}

		setIdentity(c, models.Actor{UserID: userID, Role: role}, AuthMethodSession)
		c.Next()
	}
}

// RequireRole allows the request only when the authenticated role is one of roles.
// It must run after RequireAuth.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFromContext(c)
		if !ok {
			abortUnauthorized(c)
			return
		}
		for _, r := range roles {
			if actor.Role == r {
				c.Next()
				return
			}
		}
		StandardizeHTTPError(c, http.StatusForbidden, "Insufficient permissions", "")
		c.Abort()
	}
}

// ActorFromContext returns the identity set by RequireAuth
func ActorFromContext(c *gin.Context) (models.Actor, bool) {
	userID := c.GetInt(UserIDKey)
	role, _ := c.Get(RoleKey)
	r, ok := role.(models.Role)
	if userID <= 0 || !ok {
		return models.Actor{}, false
	}
	return models.Actor{UserID: userID, Role: r}, true
}

func setIdentity(c *gin.Context, actor models.Actor, method string) {
	c.Set(UserIDKey, actor.UserID)
	c.Set(RoleKey, actor.Role)
	c.Set(AuthMethodKey, method)
}

func sessionUserID(v interface{}) (int, bool) {
	switch id := v.(type) {
	case int:
		return id, id > 0
	case int64:
		return int(id), id > 0
	case float64:
		// JSON-backed stores decode numbers as float64
		return int(id), id > 0
	}
	return 0, false
}

func abortUnauthorized(c *gin.Context) {
	StandardizeHTTPError(c, http.StatusUnauthorized, "Authentication required", "")
	c.Abort()
}
