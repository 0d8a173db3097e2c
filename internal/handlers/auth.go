// internal/handlers/auth.go
package handlers

import (
	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/saptechnologies/sap-backend/internal/middleware"
	"github.com/saptechnologies/sap-backend/internal/services"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
	sessions    *scs.SessionManager
}

func NewAuthHandler(authService *services.AuthService, sessions *scs.SessionManager) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		sessions:    sessions,
	}
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req services.LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := h.authService.Login(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	// New token on privilege change
	ctx := c.Request.Context()
	if err := h.sessions.RenewToken(ctx); err != nil {
		utils.InternalErrorResponse(c, "Failed to start session", err)
		return
	}
	h.sessions.Put(ctx, middleware.SessionKeyUserID, user.ID.String())

	logrus.WithField("user_id", user.ID.String()).Info("Admin signed in")

	utils.SuccessResponse(c, gin.H{
		"user": user,
	})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.sessions.Destroy(c.Request.Context()); err != nil {
		utils.InternalErrorResponse(c, "Failed to end session", err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Signed out",
	})
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"user": user,
	})
}
