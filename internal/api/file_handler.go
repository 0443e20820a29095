package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/fileserver-api/internal/api/shared"
	"github.com/phrazzld/fileserver-api/internal/domain"
	"github.com/phrazzld/fileserver-api/internal/service"
)

// Multipart form fields read by the upload endpoints.
const (
	FormFieldFile  = "file"
	FormFieldFiles = "files"
)

// TaskStatusResolver resolves the status of a processing job.
// *service.TaskStatusService implements it.
type TaskStatusResolver interface {
	Resolve(ctx context.Context, taskID string) (*domain.TaskStatus, error)
}

// FileHandler serves the upload, listing and task status endpoints.
type FileHandler struct {
	uploads  service.UploadService
	statuses TaskStatusResolver
	maxSize  int64
}

// NewFileHandler creates a new FileHandler. maxSize is only used for the
// oversize error message; the limit itself is enforced by the upload service.
func NewFileHandler(
	uploads service.UploadService,
	statuses TaskStatusResolver,
	maxSize int64,
) *FileHandler {
	if uploads == nil {
		panic("uploads cannot be nil")
	}
	if statuses == nil {
		panic("statuses cannot be nil")
	}
	return &FileHandler{
		uploads:  uploads,
		statuses: statuses,
		maxSize:  maxSize,
	}
}

// Upload handles POST /files/upload with a single multipart "file" part.
// The part is streamed to the upload service without buffering the whole
// request.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.UserFromContext(r.Context())
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "Not authenticated")
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}
	src := newMultipartSource(mr, FormFieldFile)

	name, content, err := src.Next()
	if errors.Is(err, io.EOF) {
		HandleAPIError(w, r, domain.NewValidationError(FormFieldFile, "is required", nil), "")
		return
	}
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	result, err := h.uploads.UploadFile(r.Context(), user.ID, name, content)
	if err != nil {
		h.handleUploadError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

// UploadMultiple handles POST /files/upload-multiple with repeated
// multipart "files" parts. All files share one batch task ID.
func (h *FileHandler) UploadMultiple(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.UserFromContext(r.Context())
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "Not authenticated")
		return
	}

	mr, err := r.MultipartReader()
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request format", err)
		return
	}

	results, err := h.uploads.UploadFiles(r.Context(), user.ID, newMultipartSource(mr, FormFieldFiles))
	if err != nil {
		h.handleUploadError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, results)
}

func (h *FileHandler) handleUploadError(w http.ResponseWriter, r *http.Request, err error) {
	switch status := MapErrorToStatusCode(err); status {
	case http.StatusRequestEntityTooLarge:
		HandleAPIError(w, r, err, fmt.Sprintf("File size exceeds the limit of %d bytes", h.maxSize))
	case http.StatusInternalServerError:
		HandleAPIError(w, r, err, "Error uploading file")
	default:
		HandleAPIError(w, r, err, "")
	}
}

// TaskStatus handles GET /files/task-status/{task_id}.
func (h *FileHandler) TaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	if taskID == "" {
		HandleAPIError(w, r, domain.NewValidationError("task_id", "is required", nil), "")
		return
	}

	ts, err := h.statuses.Resolve(r.Context(), taskID)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, newTaskStatusResponse(ts))
}

// ListFiles handles GET /files?skip=&limit=.
func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	user, ok := shared.UserFromContext(r.Context())
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized, "Not authenticated")
		return
	}

	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	limit, err := queryInt(r, "limit", service.DefaultListLimit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	files, err := h.uploads.ListFiles(r.Context(), user.ID, skip, limit)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	resp := make([]FileResponse, 0, len(files))
	for _, f := range files {
		resp = append(resp, newFileResponse(f))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// multipartSource adapts a multipart stream to service.FileSource, yielding
// only file parts of the given form field.
type multipartSource struct {
	reader *multipart.Reader
	field  string
	part   *multipart.Part
}

var _ service.FileSource = (*multipartSource)(nil)

func newMultipartSource(reader *multipart.Reader, field string) *multipartSource {
	return &multipartSource{reader: reader, field: field}
}

// Next implements service.FileSource.
func (s *multipartSource) Next() (string, io.Reader, error) {
	for {
		if s.part != nil {
			_ = s.part.Close()
			s.part = nil
		}

		part, err := s.reader.NextPart()
		if err != nil {
			return "", nil, err
		}
		if part.FormName() != s.field || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		s.part = part
		return part.FileName(), part, nil
	}
}
