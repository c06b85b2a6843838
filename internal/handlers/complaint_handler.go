package handlers

import (
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"metronix/internal/api"
	"metronix/internal/config"
	"metronix/internal/observability"
	"metronix/internal/services"
	contextutils "metronix/internal/utils"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
)

// attachmentField is the multipart field carrying complaint images
const attachmentField = "images"

// multipartOverhead covers the form fields and part headers around the files
const multipartOverhead = 1 << 20

// ComplaintHandler serves the complaint endpoints shared by all roles
type ComplaintHandler struct {
	complaintService services.ComplaintServiceInterface
	config           *config.Config
	logger           *observability.Logger
}

// NewComplaintHandler creates a new ComplaintHandler instance
func NewComplaintHandler(complaintService services.ComplaintServiceInterface, cfg *config.Config, logger *observability.Logger) *ComplaintHandler {
	return &ComplaintHandler{
		complaintService: complaintService,
		config:           cfg,
		logger:           logger,
	}
}

// SubmitComplaint accepts a multipart form with the complaint fields and up
// to the configured number of image files.
func (h *ComplaintHandler) SubmitComplaint(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "submit_complaint")
	defer observability.FinishSpan(span, nil)

	actor, ok := currentActor(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxRequestBytes())
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrFileTooLarge, "request exceeds %d bytes", tooLarge.Limit))
			return
		}
		HandleAppError(c, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "expected a multipart form: %v", err))
		return
	}

	input := services.SubmitComplaintInput{
		Title:       formValue(form, "title"),
		Description: formValue(form, "description"),
		Category:    formValue(form, "category"),
		Priority:    formValue(form, "priority"),
		Location:    formValue(form, "location"),
	}
	if input.Lat, ok = parseCoordinate(c, form, "lat"); !ok {
		return
	}
	if input.Lng, ok = parseCoordinate(c, form, "lng"); !ok {
		return
	}

	input.Attachments, err = h.readAttachments(form.File[attachmentField])
	if err != nil {
		HandleAppError(c, err)
		return
	}
	span.SetAttributes(
		observability.AttributeUserID(actor.UserID),
		attribute.Int("complaint.attachments", len(input.Attachments)),
	)

	complaint, err := h.complaintService.Submit(ctx, actor.UserID, input)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to submit complaint", err, map[string]interface{}{"user_id": actor.UserID})
		return
	}

	c.JSON(http.StatusCreated, complaint)
}

// ListMyComplaints returns the caller's complaints, newest first
func (h *ComplaintHandler) ListMyComplaints(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "list_my_complaints")
	defer observability.FinishSpan(span, nil)

	actor, ok := currentActor(c)
	if !ok {
		return
	}

	complaints, err := h.complaintService.ListForCitizen(ctx, actor.UserID)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to list complaints", err, map[string]interface{}{"user_id": actor.UserID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"complaints": complaints})
}

// GetComplaint returns a complaint with its progress log. The service decides
// whether the caller may see it.
func (h *ComplaintHandler) GetComplaint(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "get_complaint")
	defer observability.FinishSpan(span, nil)

	actor, ok := currentActor(c)
	if !ok {
		return
	}
	complaintID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	span.SetAttributes(observability.AttributeComplaintID(complaintID))

	detail, err := h.complaintService.GetComplaintDetail(ctx, complaintID, actor)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to load complaint", err, map[string]interface{}{"complaint_id": complaintID})
		return
	}

	c.JSON(http.StatusOK, detail)
}

// AddNote appends a note to the progress log without changing status
func (h *ComplaintHandler) AddNote(c *gin.Context) {
	ctx, span := observability.TraceHandlerFunction(c.Request.Context(), "add_note")
	defer observability.FinishSpan(span, nil)

	actor, ok := currentActor(c)
	if !ok {
		return
	}
	complaintID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req api.NoteRequest
	if !bindJSON(c, &req) {
		return
	}

	entry, err := h.complaintService.AddNote(ctx, complaintID, actor, req.Note)
	if err != nil {
		respondError(ctx, c, h.logger, "Failed to add note", err, map[string]interface{}{"complaint_id": complaintID})
		return
	}

	c.JSON(http.StatusCreated, entry)
}

func (h *ComplaintHandler) maxRequestBytes() int64 {
	maxFiles := int64(h.config.Uploads.MaxFiles)
	if maxFiles <= 0 {
		maxFiles = config.MaxAttachmentsPerComplaint
	}
	maxBytes := h.config.Uploads.MaxFileBytes
	if maxBytes <= 0 {
		maxBytes = config.MaxAttachmentBytes
	}
	// One extra file's worth so an over-count reaches the service and gets its error
	return (maxFiles+1)*(maxBytes+1) + multipartOverhead
}

// readAttachments reads each file up to one byte past the limit so the
// service can reject oversized files without buffering them whole.
func (h *ComplaintHandler) readAttachments(files []*multipart.FileHeader) ([]services.Attachment, error) {
	limit := h.config.Uploads.MaxFileBytes
	if limit <= 0 {
		limit = config.MaxAttachmentBytes
	}

	attachments := make([]services.Attachment, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to open upload %s: %v", fh.Filename, err)
		}
		data, err := io.ReadAll(io.LimitReader(f, limit+1))
		_ = f.Close()
		if err != nil {
			return nil, contextutils.WrapErrorf(contextutils.ErrInvalidInput, "failed to read upload %s: %v", fh.Filename, err)
		}
		attachments = append(attachments, services.Attachment{Filename: fh.Filename, Data: data})
	}
	return attachments, nil
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

func parseCoordinate(c *gin.Context, form *multipart.Form, key string) (*float64, bool) {
	raw := formValue(form, key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		HandleValidationError(c, key, raw, "must be a number")
		return nil, false
	}
	return &v, true
}
