// internal/handlers/contact.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/services"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type ContactHandler struct {
	contactService *services.ContactService
}

func NewContactHandler(contactService *services.ContactService) *ContactHandler {
	return &ContactHandler{
		contactService: contactService,
	}
}

// POST /api/contact
func (h *ContactHandler) CreateContact(c *gin.Context) {
	var req services.ContactRequest
	if !bindJSON(c, &req) {
		return
	}

	contact, err := h.contactService.Create(c.Request.Context(), &req, c.ClientIP())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": "Thank you for contacting us. We will get back to you soon.",
		"id":      contact.ID,
	})
}

// GET /api/admin/contacts
func (h *ContactHandler) ListContacts(c *gin.Context) {
	filter := services.ContactFilter{
		PaginationParams: utils.GetPaginationParams(c),
	}
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		contactStatus := models.ContactStatus(status)
		filter.Status = &contactStatus
	}

	contacts, total, err := h.contactService.List(c.Request.Context(), &filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, contacts, utils.NewPageMeta(total, utils.NormalizePagination(filter.PaginationParams)))
}

type contactStatusRequest struct {
	Status models.ContactStatus `json:"status"`
}

// PATCH /api/admin/contacts/:id/status
func (h *ContactHandler) UpdateContactStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req contactStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	contact, err := h.contactService.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, contact)
}
