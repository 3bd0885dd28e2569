package router

import (
	"net/http"

	"psyeval/internal/models"
	"psyeval/internal/repository"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// UserLoader resolves the session's userID into a *models.User on the
// context. Sessions pointing at deleted users are cleared so they don't
// linger as zombies.
func UserLoader(log *zap.Logger, users *repository.UserRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := sessions.Default(c)
		raw, ok := session.Get("userID").(string)
		if !ok {
			c.Next()
			return
		}
		userID, err := uuid.Parse(raw)
		if err != nil {
			c.Next()
			return
		}

		user, err := users.ByID(c.Request.Context(), userID)
		if err != nil {
			log.Debug("Clearing session for unknown user", zap.String("user_id", raw))
			session.Clear()
			session.Options(sessions.Options{Path: "/", MaxAge: -1})
			_ = session.Save()
			c.Next()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// AuthRequired rejects guests with a JSON 401.
func AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get("user"); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		c.Next()
	}
}

// RequireRoles rejects users outside the given role set with a JSON 403.
// Mount after AuthRequired.
func RequireRoles(roles ...models.Rol) gin.HandlerFunc {
	allowed := make(map[models.Rol]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(c *gin.Context) {
		v, exists := c.Get("user")
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}
		user, ok := v.(*models.User)
		if !ok || !allowed[user.Rol] {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			return
		}
		c.Next()
	}
}
