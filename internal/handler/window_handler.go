package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teg-intake-api/internal/dto"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
	"github.com/noah-isme/teg-intake-api/pkg/response"
)

type windowService interface {
	Status(ctx context.Context) dto.EnrollmentStatusResponse
	List(ctx context.Context) dto.WindowsResponse
	Update(ctx context.Context, req dto.UpdateWindowsRequest) (*dto.WindowsResponse, error)
}

// WindowHandler exposes enrollment window endpoints.
type WindowHandler struct {
	service windowService
}

// NewWindowHandler builds a new handler.
func NewWindowHandler(service windowService) *WindowHandler {
	return &WindowHandler{service: service}
}

// Status godoc
// @Summary Enrollment status
// @Description Procedures open today, accepted programs and modalities
// @Tags Enrollment
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /enrollment/status [get]
func (h *WindowHandler) Status(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.Status(c.Request.Context()), nil)
}

// List godoc
// @Summary List enrollment windows
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /admin/windows [get]
func (h *WindowHandler) List(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.service.List(c.Request.Context()), nil)
}

// Update godoc
// @Summary Replace enrollment windows
// @Description Both windows are replaced at once. A start after the end is stored and reported as a warning.
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.UpdateWindowsRequest true "Windows payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /admin/windows [put]
func (h *WindowHandler) Update(c *gin.Context) {
	var req dto.UpdateWindowsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid enrollment windows payload"))
		return
	}
	resp, err := h.service.Update(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, resp, nil)
}
