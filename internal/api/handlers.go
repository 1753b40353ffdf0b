package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"collab-editor/internal/auth"
	"collab-editor/internal/models"
	"collab-editor/internal/repository"

	"github.com/gorilla/mux"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// Handler handles HTTP requests
// Learning: Uses INTERFACES defined in this package (consumer-driven)
type Handler struct {
	docs        DocumentReader
	auth        AuthService
	sessions    CollaborationService
	persistence PersistenceService
	presence    PresenceSource   // nil when the Redis mirror is disabled
	wsHandler   http.HandlerFunc // WebSocket for real-time collab
}

func NewHandler(
	docs DocumentReader,
	authService AuthService,
	sessions CollaborationService,
	persistence PersistenceService,
	presence PresenceSource,
	wsHandler http.HandlerFunc,
) *Handler {
	return &Handler{
		docs:        docs,
		auth:        authService,
		sessions:    sessions,
		persistence: persistence,
		presence:    presence,
		wsHandler:   wsHandler,
	}
}

type messageResponse struct {
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("⚠️  Failed to write response: %v", err)
	}
}

// Auth handlers

type signUpRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
		return
	}

	token, err := h.auth.SignUp(r.Context(), req.Username, req.Email, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "All fields are required (password: at least 6 characters)"})
	case errors.Is(err, auth.ErrUserExists):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "User already exists"})
	case err != nil:
		log.Printf("⚠️  Signup failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Server error"})
	default:
		writeJSON(w, http.StatusCreated, messageResponse{Message: "User registered successfully", Token: token})
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid request body"})
		return
	}

	token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Username and password are required"})
	case errors.Is(err, auth.ErrAuthFailure):
		writeJSON(w, http.StatusBadRequest, messageResponse{Message: "Invalid credentials"})
	case err != nil:
		log.Printf("⚠️  Login failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, messageResponse{Message: "Server error"})
	default:
		writeJSON(w, http.StatusOK, messageResponse{Message: "Logged in successfully", Token: token})
	}
}

// CheckAuth answers 401 without a token and 403 for an invalid one
func (h *Handler) CheckAuth(w http.ResponseWriter, r *http.Request) {
	claims, status := h.verifyRequest(r)
	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Authenticated",
		"user": map[string]string{
			"userId":   claims.Subject,
			"username": claims.Username,
		},
	})
}

// Document handlers

func (h *Handler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", defaultPageSize)
	offset := queryInt(r, "offset", 0)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	if offset < 0 {
		offset = 0
	}

	documents, err := h.docs.List(r.Context(), limit, offset)
	if err != nil {
		log.Printf("⚠️  Failed to list documents: %v", err)
		http.Error(w, "Failed to list documents", http.StatusServiceUnavailable)
		return
	}

	summaries := make([]models.DocumentSummary, 0, len(documents))
	for _, doc := range documents {
		summaries = append(summaries, doc.Summary())
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": summaries,
		"limit":     limit,
		"offset":    offset,
	})
}

func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	doc, err := h.docs.GetByID(r.Context(), id)
	if errors.Is(err, repository.ErrNotFound) {
		http.Error(w, "Document not found", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Printf("⚠️  Failed to get document %s: %v", id, err)
		http.Error(w, "Failed to load document", http.StatusServiceUnavailable)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

// GetPresence prefers the Redis mirror (all instances) and falls back to this process
func (h *Handler) GetPresence(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if h.presence != nil {
		members, err := h.presence.Members(r.Context(), id)
		if err == nil {
			writeJSON(w, http.StatusOK, models.PresenceSnapshot{
				DocumentID: id,
				Identities: members,
				Source:     "redis",
			})
			return
		}
		log.Printf("⚠️  Presence mirror unavailable, using local view: %v", err)
	}

	writeJSON(w, http.StatusOK, h.sessions.Presence(id))
}

// ListActiveDocuments lists documents that currently have collaborators
func (h *Handler) ListActiveDocuments(w http.ResponseWriter, r *http.Request) {
	if h.presence != nil {
		docs, err := h.presence.Documents(r.Context())
		if err == nil {
			writeJSON(w, http.StatusOK, map[string]any{"documents": docs, "source": "redis"})
			return
		}
		log.Printf("⚠️  Presence mirror unavailable, using local view: %v", err)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"documents": h.sessions.ActiveDocuments(),
		"source":    "local",
	})
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status, mirror := "ok", "disabled"
	if h.presence != nil {
		mirror = "ok"
		if err := h.presence.Ping(r.Context()); err != nil {
			log.Printf("⚠️  Presence mirror ping failed: %v", err)
			status, mirror = "degraded", "unreachable"
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":          status,
		"connections":     h.sessions.ConnectionCount(),
		"pending_writes":  h.persistence.QueueLength(),
		"presence_mirror": mirror,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}
