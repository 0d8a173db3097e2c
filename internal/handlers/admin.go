// internal/handlers/admin.go
package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/services"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type AdminHandler struct {
	adminService  *services.AdminService
	outboxService *services.OutboxService
}

func NewAdminHandler(adminService *services.AdminService, outboxService *services.OutboxService) *AdminHandler {
	return &AdminHandler{
		adminService:  adminService,
		outboxService: outboxService,
	}
}

// GET /api/admin/dashboard/stats
func (h *AdminHandler) GetDashboardStats(c *gin.Context) {
	stats, err := h.adminService.GetDashboardStats(c.Request.Context())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"stats": stats,
	})
}

// GET /api/admin/tasks
func (h *AdminHandler) GetTasks(c *gin.Context) {
	filter := services.TaskFilter{
		PaginationParams: utils.GetPaginationParams(c),
	}

	// Parse filters
	if status := strings.TrimSpace(c.Query("status")); status != "" {
		taskStatus := models.TaskStatus(status)
		filter.Status = &taskStatus
	}

	if kind := strings.TrimSpace(c.Query("kind")); kind != "" {
		taskKind := models.TaskKind(kind)
		filter.Kind = &taskKind
	}

	tasks, total, err := h.outboxService.ListTasks(c.Request.Context(), &filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, tasks, utils.NewPageMeta(total, utils.NormalizePagination(filter.PaginationParams)))
}

// POST /api/admin/tasks/:id/retry
func (h *AdminHandler) RetryTask(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	task, err := h.outboxService.RetryTask(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, task)
}
