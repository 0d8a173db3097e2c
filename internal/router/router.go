// internal/router/router.go
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/saptechnologies/sap-backend/internal/config"
	"github.com/saptechnologies/sap-backend/internal/handlers"
	"github.com/saptechnologies/sap-backend/internal/middleware"
	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/services"
)

const version = "1.0.0"

// Router is the HTTP entry point. Sessions are loaded and saved around the whole gin engine so the
// session cookie is written before gin flushes the response.
type Router struct {
	engine   *gin.Engine
	handler  http.Handler
	limiters *middleware.RateLimiters
}

func Initialize(db *gorm.DB, cfg *config.Config, svcs *services.Services, sessions *scs.SessionManager) *Router {
	// Initialize handlers
	authHandler := handlers.NewAuthHandler(svcs.Auth, sessions)
	userHandler := handlers.NewUserHandler(svcs.Users)
	categoryHandler := handlers.NewCategoryHandler(svcs.Categories)
	nominationHandler := handlers.NewNominationHandler(svcs.Nominations, svcs.Votes, svcs.Admin, cfg.Server.MaxUploadMB)
	adminHandler := handlers.NewAdminHandler(svcs.Admin, svcs.Outbox)
	contactHandler := handlers.NewContactHandler(svcs.Contacts)
	newsletterHandler := handlers.NewNewsletterHandler(svcs.Newsletter)
	softwareHandler := handlers.NewSoftwareHandler(svcs.Software)

	limiters := middleware.NewRateLimiters(cfg.RateLimit)

	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.SecurityHeaders(cfg.IsProduction()))
	r.Use(middleware.CORS(cfg.Frontend.AllowedOrigins))
	r.Use(limiters.General())

	r.GET("/health", healthHandler(db))
	r.Static(cfg.Storage.PublicPath, cfg.Storage.LocalPath)

	csrf := middleware.CSRF([]byte(cfg.Session.Secret), cfg.Frontend.AllowedOrigins)
	authRequired := middleware.AuthRequired(sessions, svcs.Auth)
	staff := middleware.RoleRequired(models.UserRoleAdmin, models.UserRoleEditor)
	audit := middleware.AuditLogMiddleware(db)

	api := r.Group("/api")
	{
		auth := api.Group("/auth")
		auth.Use(csrf)
		{
			auth.POST("/login", limiters.Auth(), authHandler.Login)
			auth.POST("/logout", authRequired, authHandler.Logout)
			auth.GET("/me", authRequired, authHandler.Me)
			auth.PUT("/password", authRequired, userHandler.ChangePassword)
		}

		awards := api.Group("/awards")
		{
			awards.GET("/categories", categoryHandler.ListCategories)
			awards.GET("/categories/:id", categoryHandler.GetCategory)

			awards.POST("/nominations", limiters.Submit(), nominationHandler.SubmitNomination)
			awards.GET("/nominations", nominationHandler.ListNominations)
			awards.GET("/nominations/:id", nominationHandler.GetNomination)
			awards.POST("/nominations/:id/vote", limiters.Vote(), nominationHandler.Vote)
			awards.GET("/nominations/:id/vote-status", nominationHandler.VoteStatus)
		}

		// Moderation shares the public nomination paths
		moderation := api.Group("/awards/nominations")
		moderation.Use(csrf, authRequired, staff, audit)
		{
			moderation.PATCH("/:id/status", nominationHandler.UpdateNominationStatus)
			moderation.PUT("/:id", nominationHandler.UpdateNomination)
			moderation.DELETE("/:id", middleware.AdminRequired(), nominationHandler.DeleteNomination)
		}

		api.POST("/contact", limiters.Submit(), contactHandler.CreateContact)

		newsletter := api.Group("/newsletter")
		{
			newsletter.POST("/subscribe", limiters.Submit(), newsletterHandler.Subscribe)
			newsletter.GET("/unsubscribe", newsletterHandler.Unsubscribe)
			newsletter.POST("/unsubscribe", newsletterHandler.Unsubscribe)
		}

		software := api.Group("/software")
		{
			software.GET("", softwareHandler.ListSoftware)
			software.GET("/:slug", softwareHandler.GetSoftware)
		}

		admin := api.Group("/admin")
		admin.Use(csrf, authRequired, staff, audit)
		{
			admin.GET("/dashboard/stats", adminHandler.GetDashboardStats)

			admin.GET("/nominations", nominationHandler.AdminListNominations)
			admin.GET("/nominations/:id", nominationHandler.AdminGetNomination)

			admin.GET("/categories", categoryHandler.AdminListCategories)
			admin.POST("/categories", middleware.AdminRequired(), categoryHandler.CreateCategory)
			admin.PUT("/categories/:id", middleware.AdminRequired(), categoryHandler.UpdateCategory)
			admin.DELETE("/categories/:id", middleware.AdminRequired(), categoryHandler.DeleteCategory)

			admin.GET("/tasks", adminHandler.GetTasks)
			admin.POST("/tasks/:id/retry", middleware.AdminRequired(), adminHandler.RetryTask)

			admin.GET("/contacts", contactHandler.ListContacts)
			admin.PATCH("/contacts/:id/status", contactHandler.UpdateContactStatus)

			admin.GET("/subscribers", newsletterHandler.ListSubscribers)

			admin.GET("/users", middleware.AdminRequired(), userHandler.ListUsers)
			admin.POST("/users", middleware.AdminRequired(), userHandler.CreateUser)
			admin.PATCH("/users/:id", middleware.AdminRequired(), userHandler.UpdateUser)

			admin.POST("/software", softwareHandler.CreateSoftware)
			admin.PUT("/software/:id", softwareHandler.UpdateSoftware)
			admin.DELETE("/software/:id", middleware.AdminRequired(), softwareHandler.DeleteSoftware)
		}
	}

	return &Router{
		engine:   r,
		handler:  sessions.LoadAndSave(r),
		limiters: limiters,
	}
}

func (rt *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	rt.handler.ServeHTTP(w, req)
}

// Close stops the rate limiter janitors.
func (rt *Router) Close() {
	rt.limiters.Stop()
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status, code := "healthy", http.StatusOK
		if sqlDB, err := db.DB(); err != nil || sqlDB.PingContext(ctx) != nil {
			status, code = "degraded", http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":  status,
			"version": version,
		})
	}
}
