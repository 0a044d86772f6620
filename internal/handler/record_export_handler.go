package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teg-intake-api/internal/dto"
	"github.com/noah-isme/teg-intake-api/internal/service"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
	"github.com/noah-isme/teg-intake-api/pkg/response"
)

type recordExporter interface {
	Export(ctx context.Context, query dto.RecordExportQuery) (*service.RecordExport, error)
}

// RecordExportHandler lets the coordinator download the record table.
type RecordExportHandler struct {
	service recordExporter
}

// NewRecordExportHandler constructs a RecordExportHandler.
func NewRecordExportHandler(svc recordExporter) *RecordExportHandler {
	return &RecordExportHandler{service: svc}
}

// Export godoc
// @Summary Download the record table
// @Tags Admin
// @Produce octet-stream
// @Security BearerAuth
// @Param format query string false "xlsx (default), csv or pdf"
// @Success 200 {file} binary
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/records/export [get]
func (h *RecordExportHandler) Export(c *gin.Context) {
	var query dto.RecordExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	out, err := h.service.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, out.Filename, out.ContentType, out.Content)
}
