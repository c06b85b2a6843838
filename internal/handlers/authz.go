package handlers

import (
	"metronix/internal/middleware"
	"metronix/internal/models"
	contextutils "metronix/internal/utils"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
)

// currentActor returns the identity set by RequireAuth. It writes a 401 and
// returns false when the request is not authenticated.
func currentActor(c *gin.Context) (models.Actor, bool) {
	actor, ok := middleware.ActorFromContext(c)
	if !ok {
		HandleAppError(c, contextutils.ErrUnauthorized)
		return models.Actor{}, false
	}
	return actor, true
}

// sessionUserID reads the user id stored by Login without requiring auth
func sessionUserID(c *gin.Context) (int, bool) {
	id, ok := sessions.Default(c).Get(middleware.UserIDKey).(int)
	if !ok || id <= 0 {
		return 0, false
	}
	return id, true
}
