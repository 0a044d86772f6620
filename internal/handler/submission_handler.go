package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/teg-intake-api/internal/dto"
	"github.com/noah-isme/teg-intake-api/internal/models"
	"github.com/noah-isme/teg-intake-api/internal/service"
	appErrors "github.com/noah-isme/teg-intake-api/pkg/errors"
	"github.com/noah-isme/teg-intake-api/pkg/response"
)

type intakeService interface {
	EnsureOpen(ctx context.Context) error
	Submit(ctx context.Context, sub service.IntakeSubmission) (*dto.SubmissionResponse, error)
}

type receiptDownloader interface {
	ResolveDownload(token string) (*service.ReceiptDownload, error)
}

// UploadLimits bounds what a single submission may carry.
type UploadLimits struct {
	MaxFileSize     int64
	MaxRequestBytes int64
}

// SubmissionHandler receives the student form and serves receipts.
type SubmissionHandler struct {
	intake   intakeService
	receipts receiptDownloader
	limits   UploadLimits
}

// NewSubmissionHandler constructs a SubmissionHandler.
func NewSubmissionHandler(intake intakeService, receipts receiptDownloader, limits UploadLimits) *SubmissionHandler {
	return &SubmissionHandler{intake: intake, receipts: receipts, limits: limits}
}

// Submit godoc
// @Summary Submit an enrollment
// @Description Multipart form with the submission data, supporting images and the final document
// @Tags Enrollment
// @Accept multipart/form-data
// @Produce json
// @Param tramite formData string true "Proyecto or TEG"
// @Param programa formData string true "Academic program"
// @Param modalidad formData string true "Individual or Pareja"
// @Param titulo formData string true "Work title"
// @Param autor1_cedula formData string true "Author 1 national ID"
// @Param documento_final formData file true "Final document (doc/docx)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /submissions [post]
func (h *SubmissionHandler) Submit(c *gin.Context) {
	if err := h.intake.EnsureOpen(c.Request.Context()); err != nil {
		response.Error(c, err)
		return
	}
	if h.limits.MaxRequestBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.limits.MaxRequestBytes)
	}

	var form dto.SubmissionForm
	if err := c.ShouldBind(&form); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, appErrors.WrapAs(appErrors.ErrPayloadTooLarge, err, ""))
			return
		}
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid submission form"))
		return
	}
	if c.Request.MultipartForm != nil {
		defer c.Request.MultipartForm.RemoveAll() //nolint:errcheck
	}

	sub, err := h.buildSubmission(form)
	if err != nil {
		response.Error(c, err)
		return
	}

	res, err := h.intake.Submit(c.Request.Context(), sub)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res, nil)
}

// DownloadReceipt godoc
// @Summary Download a submission receipt
// @Tags Enrollment
// @Produce application/pdf
// @Param token path string true "Signed receipt token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /receipts/{token} [get]
func (h *SubmissionHandler) DownloadReceipt(c *gin.Context) {
	token := strings.TrimSpace(c.Param("token"))
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	download, err := h.receipts.ResolveDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	size := int64(-1)
	if info, statErr := download.File.Stat(); statErr == nil {
		size = info.Size()
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", download.Filename))
	c.Header("Cache-Control", "no-store")
	c.DataFromReader(http.StatusOK, size, "application/pdf", download.File, nil)
}

func (h *SubmissionHandler) buildSubmission(form dto.SubmissionForm) (service.IntakeSubmission, error) {
	sub := service.IntakeSubmission{
		Procedure:    form.Procedure,
		Program:      form.Program,
		Modality:     form.Modality,
		Title:        form.Title,
		ResearchLine: form.ResearchLine,
		Author1:      models.Person{NationalID: form.Author1ID, Name: form.Author1Name, Phone: form.Author1Phone, Email: form.Author1Email},
		Author2:      models.Person{NationalID: form.Author2ID, Name: form.Author2Name, Phone: form.Author2Phone, Email: form.Author2Email},
		Tutor:        models.Person{NationalID: form.TutorID, Name: form.TutorName, Phone: form.TutorPhone, Email: form.TutorEmail},
	}

	slots := []struct {
		header *multipart.FileHeader
		dst    **models.UploadedFile
	}{
		{form.Author1EnrollmentForm, &sub.Author1Form},
		{form.Author1IDCopy, &sub.Author1IDCopy},
		{form.Author1CommunityProof, &sub.Author1Community},
		{form.Author1CommunityService, &sub.Author1CommunityService},
		{form.Author1AcademicRecord, &sub.Author1AcademicRecord},
		{form.Author2EnrollmentForm, &sub.Author2Form},
		{form.Author2IDCopy, &sub.Author2IDCopy},
		{form.Author2CommunityProof, &sub.Author2Community},
		{form.Author2CommunityService, &sub.Author2CommunityService},
		{form.Author2AcademicRecord, &sub.Author2AcademicRecord},
		{form.TutorAcceptanceLetter, &sub.TutorLetter},
		{form.TutorIDCopy, &sub.TutorIDCopy},
		{form.FitnessLetter, &sub.FitnessLetter},
		{form.FinalDocument, &sub.FinalDocument},
	}
	for _, slot := range slots {
		file, err := readUpload(slot.header, h.limits.MaxFileSize)
		if err != nil {
			return service.IntakeSubmission{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload")
		}
		*slot.dst = file
	}
	return sub, nil
}

// readUpload loads an upload into memory. Reading stops one byte past limit
// so oversize files are still reported as such without being fully read.
func readUpload(header *multipart.FileHeader, limit int64) (*models.UploadedFile, error) {
	if header == nil || header.Filename == "" || header.Size == 0 {
		return nil, nil
	}
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close() //nolint:errcheck

	var r io.Reader = f
	if limit > 0 {
		r = io.LimitReader(f, limit+1)
	}
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &models.UploadedFile{Name: header.Filename, Content: content}, nil
}
