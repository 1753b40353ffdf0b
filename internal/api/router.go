package api

import (
	"net/http"

	"collab-editor/internal/middleware"

	"github.com/gorilla/mux"
)

func SetupRoutes(h *Handler, staticDir string) *mux.Router {
	r := mux.NewRouter()

	// Apply global middleware
	// Learning: Middleware runs in order - tracing first, then recovery, then CORS
	r.Use(middleware.TracingMiddleware)       // Add tracing spans to all requests
	r.Use(middleware.ErrorRecoveryMiddleware) // Catch panics
	r.Use(middleware.CORSMiddleware)          // Handle CORS

	// Auth endpoints
	r.HandleFunc("/signup", h.SignUp).Methods("POST", "OPTIONS")
	r.HandleFunc("/login", h.Login).Methods("POST", "OPTIONS")
	r.HandleFunc("/checkAuth", h.CheckAuth).Methods("GET", "OPTIONS")

	// API routes
	api := r.PathPrefix("/api").Subrouter()

	// Document endpoints (read-only; edits go through the WebSocket)
	// Learning: Grouped on a subrouter so they share the auth middleware
	private := api.NewRoute().Subrouter()
	private.Use(h.RequireAuth)
	private.HandleFunc("/documents", h.ListDocuments).Methods("GET")
	private.HandleFunc("/documents/{id}", h.GetDocument).Methods("GET")
	private.HandleFunc("/documents/{id}/presence", h.GetPresence).Methods("GET")
	private.HandleFunc("/presence", h.ListActiveDocuments).Methods("GET")

	// Health check endpoint
	api.HandleFunc("/health", h.Health).Methods("GET")

	// WebSocket route
	r.HandleFunc("/ws", h.HandleWebSocket)

	// Serve the client
	r.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login.html", http.StatusFound)
	})
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))

	return r
}
