// internal/handlers/software.go
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/saptechnologies/sap-backend/internal/services"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type SoftwareHandler struct {
	softwareService *services.SoftwareService
}

func NewSoftwareHandler(softwareService *services.SoftwareService) *SoftwareHandler {
	return &SoftwareHandler{
		softwareService: softwareService,
	}
}

// GET /api/software?category=
func (h *SoftwareHandler) ListSoftware(c *gin.Context) {
	items, err := h.softwareService.ListActive(c.Request.Context(), c.Query("category"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, items)
}

// GET /api/software/:slug
func (h *SoftwareHandler) GetSoftware(c *gin.Context) {
	item, err := h.softwareService.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, item)
}

// POST /api/admin/software
func (h *SoftwareHandler) CreateSoftware(c *gin.Context) {
	var req services.SoftwareRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.softwareService.Create(c.Request.Context(), &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, item)
}

// PUT /api/admin/software/:id
func (h *SoftwareHandler) UpdateSoftware(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.SoftwareRequest
	if !bindJSON(c, &req) {
		return
	}

	item, err := h.softwareService.Update(c.Request.Context(), id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, item)
}

// DELETE /api/admin/software/:id
func (h *SoftwareHandler) DeleteSoftware(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.softwareService.Delete(c.Request.Context(), id); err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": "Software deleted",
	})
}
