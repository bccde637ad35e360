package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
)

// ListFiles handles GET /api/files
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.svc.List(r.Context(), sessionFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

// Download handles GET /api/download/{fileId}. The blob is streamed back
// with its stored mime type and the original name as the suggested
// download filename.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	fileID := mux.Vars(r)["fileId"]

	record, data, err := h.svc.Download(r.Context(), sess, fileID)
	if err != nil {
		writeError(w, err)
		return
	}

	mimeType := record.MimeType
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}

	w.Header().Set("Content-Type", mimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", record.OriginalName))
	w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// UserInfo handles GET /api/user
func (h *Handler) UserInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.UserInfo(r.Context(), sessionFrom(r))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}
