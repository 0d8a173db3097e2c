// internal/handlers/nomination.go
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/saptechnologies/sap-backend/internal/models"
	"github.com/saptechnologies/sap-backend/internal/services"
	"github.com/saptechnologies/sap-backend/internal/utils"
)

type NominationHandler struct {
	nominationService *services.NominationService
	voteService       *services.VoteService
	adminService      *services.AdminService
	maxUploadBytes    int64
}

func NewNominationHandler(nominationService *services.NominationService, voteService *services.VoteService, adminService *services.AdminService, maxUploadMB int) *NominationHandler {
	if maxUploadMB < 1 {
		maxUploadMB = 8
	}
	return &NominationHandler{
		nominationService: nominationService,
		voteService:       voteService,
		adminService:      adminService,
		maxUploadBytes:    int64(maxUploadMB) << 20,
	}
}

// POST /api/awards/nominations takes multipart form fields plus an optional "photo" file. JSON
// bodies without a photo are accepted too.
func (h *NominationHandler) SubmitNomination(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	var req services.NominationRequest
	if err := c.ShouldBind(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.ErrorResponse(c, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE", "Upload is too large", nil)
			return
		}
		utils.BadRequestResponse(c, "Invalid nomination form", nil)
		return
	}

	var photo *services.PhotoUpload
	if strings.HasPrefix(c.ContentType(), "multipart/") {
		fileHeader, err := c.FormFile("photo")
		switch {
		case err == nil:
			file, err := fileHeader.Open()
			if err != nil {
				utils.BadRequestResponse(c, "Failed to read photo", nil)
				return
			}
			defer file.Close()
			photo = &services.PhotoUpload{Reader: file, Filename: fileHeader.Filename}
		case errors.Is(err, http.ErrMissingFile):
		default:
			utils.BadRequestResponse(c, "Failed to read photo", nil)
			return
		}
	}

	nomination, err := h.nominationService.Submit(c.Request.Context(), &req, photo)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.CreatedResponse(c, nomination)
}

// GET /api/awards/nominations
func (h *NominationHandler) ListNominations(c *gin.Context) {
	filter := nominationFilterFromQuery(c)

	page, err := h.nominationService.List(c.Request.Context(), &filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, page.Items, page.Meta)
}

// GET /api/awards/nominations/:id
func (h *NominationHandler) GetNomination(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	nomination, err := h.nominationService.Get(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, nomination)
}

// POST /api/awards/nominations/:id/vote
func (h *NominationHandler) Vote(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.VoteRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.voteService.Vote(c.Request.Context(), id, &req, c.ClientIP())
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":     "Vote recorded",
		"total_votes": result.TotalVotes,
	})
}

// GET /api/awards/nominations/:id/vote-status?email=
func (h *NominationHandler) VoteStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	status, err := h.voteService.VoteStatus(c.Request.Context(), id, c.Query("email"))
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, status)
}

// GET /api/admin/nominations
func (h *NominationHandler) AdminListNominations(c *gin.Context) {
	filter := nominationFilterFromQuery(c)

	nominations, meta, err := h.nominationService.AdminList(c.Request.Context(), &filter)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.PaginatedResponse(c, nominations, meta)
}

// GET /api/admin/nominations/:id
func (h *NominationHandler) AdminGetNomination(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	nomination, err := h.nominationService.AdminGet(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, nomination)
}

// PUT /api/awards/nominations/:id
func (h *NominationHandler) UpdateNomination(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req services.NominationRequest
	if !bindJSON(c, &req) {
		return
	}

	nomination, err := h.nominationService.Update(c.Request.Context(), id, &req)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, nomination)
}

// PATCH /api/awards/nominations/:id/status
func (h *NominationHandler) UpdateNominationStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	adminID, ok := currentUserID(c)
	if !ok {
		return
	}

	var req services.NominationStatusRequest
	if !bindJSON(c, &req) {
		return
	}

	nomination, err := h.adminService.UpdateNominationStatus(c.Request.Context(), id, &req, adminID)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, nomination)
}

// DELETE /api/awards/nominations/:id
func (h *NominationHandler) DeleteNomination(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	snapshot, err := h.adminService.DeleteNomination(c.Request.Context(), id)
	if err != nil {
		utils.HandleError(c, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":    "Nomination deleted",
		"nomination": snapshot,
	})
}

func nominationFilterFromQuery(c *gin.Context) services.NominationFilter {
	return services.NominationFilter{
		PaginationParams: utils.GetPaginationParams(c),
		CategoryID:       strings.TrimSpace(c.Query("category")),
		Status:           models.NominationStatus(strings.ToLower(strings.TrimSpace(c.Query("status")))),
		Country:          strings.TrimSpace(c.Query("country")),
		Search:           strings.TrimSpace(c.Query("search")),
	}
}
