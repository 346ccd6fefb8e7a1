package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apimw "github.com/deskwise/deskwise/internal/api/middleware"
	"github.com/deskwise/deskwise/internal/errs"
	"github.com/deskwise/deskwise/internal/worker"
	"github.com/deskwise/deskwise/pkg/models"
)

// processDocumentJob is the worker.Job payload for JobTypeProcessDocument,
// keyed by file id per §5's "background task... identified by the owning
// entity" scheduling model.
type processDocumentJob struct {
	ProjectID string `json:"project_id"`
	FileID    string `json:"file_id"`
	Path      string `json:"path"`
}

func (h *Handlers) allowedContentType(ct string) bool {
	for _, t := range h.Cfg.Storage.AllowedFileTypes {
		if t == ct {
			return true
		}
	}
	return false
}

func (h *Handlers) storeUpload(projectID string, fileHeader *multipartFile) (string, int64, error) {
	dir := filepath.Join(h.Cfg.Storage.UploadDir, projectID, "files")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", 0, fmt.Errorf("create upload dir: %w", err)
	}
	id := uuid.NewString()
	destPath := filepath.Join(dir, id+filepath.Ext(fileHeader.Filename))

	dst, err := os.Create(destPath)
	if err != nil {
		return "", 0, fmt.Errorf("create upload file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, io.LimitReader(fileHeader.Reader, h.Cfg.Storage.MaxFileSize+1))
	if err != nil {
		return "", 0, fmt.Errorf("write upload file: %w", err)
	}
	if n > h.Cfg.Storage.MaxFileSize {
		os.Remove(destPath)
		return "", 0, errs.Newf(errs.InvalidPayload, "file exceeds max size of %d bytes", h.Cfg.Storage.MaxFileSize)
	}
	return destPath, n, nil
}

// multipartFile narrows *multipart.FileHeader plus its opened reader to
// what storeUpload needs, so it is easy to construct per-part in
// UploadFile/BatchUploadFiles.
type multipartFile struct {
	Filename string
	Reader   io.Reader
}

func (h *Handlers) createFileRow(projectID, collectionID, originalFilename, contentType, storagePath, description, language string, tags []string, size int64) *models.File {
	now := time.Now()
	f := &models.File{
		ID:               uuid.NewString(),
		ProjectID:        projectID,
		CollectionID:     collectionID,
		OriginalFilename: originalFilename,
		Size:             size,
		ContentType:      contentType,
		StorageProvider:  "local",
		StoragePath:      storagePath,
		Status:           models.FileStatusPending,
		Language:         language,
		Description:      description,
		Tags:             tags,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	return f
}

// UploadFile handles POST /v1/files?project_id=… — a multipart upload of
// one file (spec §6).
func (h *Handlers) UploadFile(w http.ResponseWriter, r *http.Request) {
	projectID, ok := requireProjectID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(h.Cfg.Storage.MaxFileSize + 1024); err != nil {
		badRequest(w, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, "missing \"file\" part")
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if !h.allowedContentType(contentType) {
		writeError(w, errs.Newf(errs.InvalidPayload, "content type %q is not allowed", contentType))
		return
	}
	if header.Size > h.Cfg.Storage.MaxFileSize {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: errorBody{
			Code:    string(errs.InvalidPayload),
			Message: fmt.Sprintf("file exceeds max size of %d bytes", h.Cfg.Storage.MaxFileSize),
		}})
		return
	}

	storagePath, size, err := h.storeUpload(projectID, &multipartFile{Filename: header.Filename, Reader: file})
	if err != nil {
		writeError(w, err)
		return
	}

	collectionID := r.FormValue("collection_id")
	f := h.createFileRow(projectID, collectionID, header.Filename, contentType, storagePath,
		r.FormValue("description"), r.FormValue("language"), splitCSV(r.FormValue("tags")), size)
	if err := h.Store.CreateFile(r.Context(), f); err != nil {
		writeError(w, err)
		return
	}

	h.enqueueProcessDocument(r.Context(), projectID, f.ID, storagePath)
	writeJSON(w, http.StatusCreated, f)
}

// BatchUploadFiles handles POST /v1/files/batch?project_id=… — multiple
// files under one collection; the response enumerates successes and
// failures individually rather than failing the whole batch on one bad
// file (spec §6).
func (h *Handlers) BatchUploadFiles(w http.ResponseWriter, r *http.Request) {
	projectID, ok := requireProjectID(w, r)
	if !ok {
		return
	}
	if err := r.ParseMultipartForm(h.Cfg.Storage.MaxFileSize*10 + 1024); err != nil {
		badRequest(w, "invalid multipart form")
		return
	}
	collectionID := r.FormValue("collection_id")
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		badRequest(w, "no files provided under \"files\"")
		return
	}

	type batchResult struct {
		Filename string      `json:"filename"`
		File     *models.File `json:"file,omitempty"`
		Error    string      `json:"error,omitempty"`
	}
	results := make([]batchResult, 0, len(headers))

	for _, header := range headers {
		res := batchResult{Filename: header.Filename}
		file, err := header.Open()
		if err != nil {
			res.Error = err.Error()
			results = append(results, res)
			continue
		}

		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		switch {
		case !h.allowedContentType(contentType):
			res.Error = fmt.Sprintf("content type %q is not allowed", contentType)
		case header.Size > h.Cfg.Storage.MaxFileSize:
			res.Error = fmt.Sprintf("file exceeds max size of %d bytes", h.Cfg.Storage.MaxFileSize)
		default:
			storagePath, size, err := h.storeUpload(projectID, &multipartFile{Filename: header.Filename, Reader: file})
			if err != nil {
				res.Error = err.Error()
			} else {
				f := h.createFileRow(projectID, collectionID, header.Filename, contentType, storagePath, "", "", nil, size)
				if err := h.Store.CreateFile(r.Context(), f); err != nil {
					res.Error = err.Error()
				} else {
					h.enqueueProcessDocument(r.Context(), projectID, f.ID, storagePath)
					res.File = f
				}
			}
		}
		file.Close()
		results = append(results, res)
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// GetFile handles GET /v1/files/{id}?project_id=….
func (h *Handlers) GetFile(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	id := chi.URLParam(r, "id")
	f, err := h.Store.GetFile(r.Context(), projectID, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// ListFiles handles GET /v1/files?project_id=…&collection_id=….
func (h *Handlers) ListFiles(w http.ResponseWriter, r *http.Request) {
	projectID, ok := requireProjectID(w, r)
	if !ok {
		return
	}
	filter := parseListFilter(r, projectID)
	files, err := h.Store.ListFiles(r.Context(), filter, r.URL.Query().Get("collection_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// DownloadFile handles GET /v1/files/{id}/download?project_id=… — must
// validate the resolved storage path stays inside the configured upload
// root before serving it (spec §5 "anti-traversal check at download
// time").
func (h *Handlers) DownloadFile(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	id := chi.URLParam(r, "id")
	f, err := h.Store.GetFile(r.Context(), projectID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	root, err := filepath.Abs(h.Cfg.Storage.UploadDir)
	if err != nil {
		writeError(w, errs.Wrap(errs.InternalError, "resolve upload root", err))
		return
	}
	resolved, err := filepath.Abs(f.StoragePath)
	if err != nil {
		writeError(w, errs.Wrap(errs.InternalError, "resolve storage path", err))
		return
	}
	rel, err := filepath.Rel(root, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		writeError(w, errs.New(errs.Forbidden, "resolved path escapes upload root"))
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", f.OriginalFilename))
	http.ServeFile(w, r, resolved)
}

// DeleteFile handles DELETE /v1/files/{id}?project_id=….
func (h *Handlers) DeleteFile(w http.ResponseWriter, r *http.Request) {
	projectID := apimw.GetProjectID(r)
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteFile(r.Context(), projectID, id); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) enqueueProcessDocument(ctx context.Context, projectID, fileID, path string) {
	payload, _ := json.Marshal(processDocumentJob{ProjectID: projectID, FileID: fileID, Path: path})
	_ = h.Jobs.Enqueue(ctx, worker.Job{Type: worker.JobTypeProcessDocument, Payload: payload, CreatedAt: time.Now()})
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
