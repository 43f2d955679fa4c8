package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/koopa0/chatbot-rag/internal/loader"
	"github.com/koopa0/chatbot-rag/internal/log"
	"github.com/koopa0/chatbot-rag/internal/registry"
)

// Ingester runs the ingestion pipeline for an uploaded file.
type Ingester interface {
	Ingest(ctx context.Context, data []byte, fileName, mimeType string) (registry.File, error)
}

// FileStore is the slice of the file registry the handler needs.
type FileStore interface {
	List(ctx context.Context) ([]registry.File, error)
	GetByID(ctx context.Context, id int64) (registry.File, error)
	DeleteByID(ctx context.Context, id int64) error
}

// RecordDeleter removes vector records from the index.
type RecordDeleter interface {
	DeleteMany(ctx context.Context, namespace string, ids []string) error
}

// FilesHandler handles upload and file management endpoints.
type FilesHandler struct {
	pipeline  Ingester
	store     FileStore
	deleter   RecordDeleter
	namespace string
	maxBytes  int64
	logger    log.Logger
}

// NewFilesHandler creates a files handler.
func NewFilesHandler(pipeline Ingester, store FileStore, deleter RecordDeleter, namespace string, maxBytes int64, logger log.Logger) *FilesHandler {
	return &FilesHandler{
		pipeline:  pipeline,
		store:     store,
		deleter:   deleter,
		namespace: namespace,
		maxBytes:  maxBytes,
		logger:    logger,
	}
}

// RegisterRoutes registers file routes on the given mux.
func (h *FilesHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/upload", h.upload)
	mux.HandleFunc("GET /api/files", h.list)
	mux.HandleFunc("DELETE /api/files/{id}", h.delete)
}

// upload accepts a multipart form with a single "file" field and runs the
// ingestion pipeline on it.
func (h *FilesHandler) upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				"uploaded file exceeds the size limit")
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD",
			"multipart form with a \"file\" field is required")
		return
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
				"uploaded file exceeds the size limit")
			return
		}
		h.logger.Error("reading upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "UPLOAD_READ_FAILED", "could not read upload")
		return
	}

	mimeType := header.Header.Get("Content-Type")
	result, err := h.pipeline.Ingest(r.Context(), data, header.Filename, mimeType)
	if err != nil {
		if errors.Is(err, loader.ErrUnsupportedFormat) {
			writeError(w, http.StatusBadRequest, "UNSUPPORTED_FORMAT",
				"file format is not supported")
			return
		}
		if errors.Is(err, loader.ErrDecode) {
			writeError(w, http.StatusBadRequest, "DECODE_FAILED",
				"file content could not be decoded")
			return
		}
		h.logger.Error("ingestion failed", "file_name", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "INGEST_FAILED", "could not ingest file")
		return
	}

	h.logger.Info("file uploaded", "id", result.ID, "file_name", result.FileName,
		"records", len(result.RecordIDs), "request_id", RequestID(r.Context()))
	writeJSON(w, http.StatusOK, result)
}

// list returns all ingested files in insertion order.
func (h *FilesHandler) list(w http.ResponseWriter, r *http.Request) {
	files, err := h.store.List(r.Context())
	if err != nil {
		h.logger.Error("listing files failed", "error", err)
		writeError(w, http.StatusInternalServerError, "LIST_FAILED", "could not list files")
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// delete removes a file: its vector records first, then the registry row.
// If the record delete fails the row stays, so a retry can finish the job.
func (h *FilesHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", "file id must be an integer")
		return
	}

	file, err := h.store.GetByID(r.Context(), id)
	if errors.Is(err, registry.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "file does not exist")
		return
	}
	if err != nil {
		h.logger.Error("loading file for delete failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "DELETE_FAILED", "could not delete file")
		return
	}

	if err := h.deleter.DeleteMany(r.Context(), h.namespace, file.RecordIDs); err != nil {
		h.logger.Error("deleting vector records failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "DELETE_FAILED", "could not delete vector records")
		return
	}

	if err := h.store.DeleteByID(r.Context(), id); err != nil && !errors.Is(err, registry.ErrNotFound) {
		h.logger.Error("deleting file row failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "DELETE_FAILED", "could not delete file")
		return
	}

	h.logger.Info("file deleted", "id", id, "records", len(file.RecordIDs))
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}
