// internal/middleware/auth.go
package middleware

import (
	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/services"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

const contextKeyUser = "user"

// AuthRequired loads the signed-in back-office user from the session. Sessions of users that were
// deleted or deactivated are destroyed.
func AuthRequired(sm *scs.SessionManager, authService *services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		userID, err := uuid.Parse(sm.GetString(ctx, SessionKeyUserID))
		if err != nil {
			utils.UnauthorizedResponse(c, "")
			c.Abort()
			return
		}

		user, err := authService.GetUserByID(ctx, userID)
		if err != nil || !user.IsActive {
			if derr := sm.Destroy(ctx); derr != nil {
				logrus.WithError(derr).Warn("Failed to destroy stale session")
			}
			utils.UnauthorizedResponse(c, "")
			c.Abort()
			return
		}

		// Set user info in context
		c.Set("user_id", user.ID.String())
		c.Set("user_role", string(user.Role))
		c.Set(contextKeyUser, user)
		c.Next()
	}
}

// RoleRequired must run after AuthRequired.
func RoleRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, _ := utils.GetUserRoleFromContext(c)
		for _, allowed := range roles {
			if role == string(allowed) {
				c.Next()
				return
			}
		}

		utils.ForbiddenResponse(c, "Admin access required")
		c.Abort()
	}
}

func AdminRequired() gin.HandlerFunc {
	return RoleRequired(models.UserRoleAdmin)
}

// CurrentUser returns the user set by AuthRequired.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	v, ok := c.Get(contextKeyUser)
	if !ok {
		return nil, false
	}
	user, ok := v.(*models.User)
	return user, ok
}
