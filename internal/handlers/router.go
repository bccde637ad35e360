package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// NewRouter wires every API route. File operations are wrapped with
// otelhttp so their server spans carry the request context.
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()

	// Health check endpoint (no auth, no tracing)
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/register", h.Register).Methods("POST")
	api.HandleFunc("/login", h.Login).Methods("POST")
	api.HandleFunc("/logout", h.Logout).Methods("POST")

	protected := api.PathPrefix("").Subrouter()
	protected.Use(h.Authenticate)
	protected.Handle("/upload",
		otelhttp.NewHandler(http.HandlerFunc(h.Upload), "POST /api/upload")).Methods("POST")
	protected.HandleFunc("/files", h.ListFiles).Methods("GET")
	protected.Handle("/download/{fileId}",
		otelhttp.NewHandler(http.HandlerFunc(h.Download), "GET /api/download/{fileId}")).Methods("GET")
	protected.HandleFunc("/files/{fileId}", h.DeleteFile).Methods("DELETE")
	protected.HandleFunc("/user", h.UserInfo).Methods("GET")

	return router
}
