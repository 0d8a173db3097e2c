// internal/handlers/newsletter.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/services"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type NewsletterHandler struct {
	newsletterService *services.NewsletterService
}

func NewNewsletterHandler(newsletterService *services.NewsletterService) *NewsletterHandler {
	return &NewsletterHandler{
		newsletterService: newsletterService,
	}
}

// POST /api/newsletter/subscribe
func (h *NewsletterHandler) Subscribe(c *gin.Context) {
	var req services.SubscribeRequest
	if !bindJSON(c, &req) {
		return
	}

	subscriber, err := h.newsletterService.Subscribe(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Subscribed to the newsletter",
		"email":   subscriber.Email,
		"status":  subscriber.Status,
	})
}

// GET|POST /api/newsletter/unsubscribe?token=
func (h *NewsletterHandler) Unsubscribe(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = c.PostForm("token")
	}

	subscriber, err := h.newsletterService.Unsubscribe(c.Request.Context(), strings.TrimSpace(token))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "You have been unsubscribed",
		"email":   subscriber.Email,
	})
}

// GET /api/admin/subscribers
func (h *NewsletterHandler) ListSubscribers(c *gin.Context) {
	filter := services.SubscriberFilter{
		PaginationParams: utils.GetPaginationParams(c),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		subscriberStatus := models.SubscriberStatus(status)
		filter.Status = &subscriberStatus
	}

	subscribers, total, err := h.newsletterService.List(c.Request.Context(), &filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, subscribers, utils.NewPageMeta(total, utils.NormalizePagination(filter.PaginationParams)))
}
