package handlers

import (
	"io"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/maneesh/filevault/internal/multipart"
)

// Upload handles POST /api/upload. The multipart body is buffered whole
// and decoded by the boundary-scanning parser; size limits are the
// service's responsibility, not the parser's.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Printf("Failed to read upload body: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request"})
		return
	}
	defer r.Body.Close()

	boundary := multipart.ExtractBoundary(r.Header.Get("Content-Type"))
	parts := multipart.Parse(body, boundary)

	record, err := h.svc.Upload(r.Context(), sess, parts)
	if err != nil {
		writeError(w, err)
		return
	}

	log.Printf("File uploaded: %s (ID: %s) by %s", record.OriginalName, record.ID, sess.Username)

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "File uploaded successfully",
		"file":    record,
	})
}

// DeleteFile handles DELETE /api/files/{fileId}
func (h *Handler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	fileID := mux.Vars(r)["fileId"]

	if err := h.svc.Delete(r.Context(), sess, fileID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "File deleted successfully"})
}
