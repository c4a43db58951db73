package project

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
)

type Handler struct {
	repo Repository
	// maxBytes bounds request bodies; project files embed their rasters.
	maxBytes int64
}

func NewHandler(repo Repository, maxBytes int64) *Handler {
	return &Handler{repo: repo, maxBytes: maxBytes}
}

type createRequest struct {
	Name     string          `json:"name"`
	Document json.RawMessage `json:"document"`
}

type saveRequest struct {
	Document json.RawMessage `json:"document"`
}

type projectResponse struct {
	Project
	Document json.RawMessage `json:"document,omitempty"`
}

// Register mounts the project routes on r.
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/projects", h.List).Methods("GET")
	r.HandleFunc("/projects", h.Create).Methods("POST")
	r.HandleFunc("/projects/{projectId}", h.Get).Methods("GET")
	r.HandleFunc("/projects/{projectId}", h.Save).Methods("PUT")
	r.HandleFunc("/projects/{projectId}", h.Delete).Methods("DELETE")
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	projects, err := h.repo.List(r.Context())
	if err != nil {
		slog.Error("list projects failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, projects)
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}
	if !validDocument(w, req.Document) {
		return
	}

	p, err := h.repo.Create(r.Context(), req.Name, req.Document)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	slog.Info("project created", "project", p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	p, doc, err := h.repo.Get(r.Context(), projectID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, projectResponse{Project: p, Document: doc})
}

func (h *Handler) Save(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	var req saveRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !validDocument(w, req.Document) {
		return
	}

	p, err := h.repo.Save(r.Context(), projectID, req.Document)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	projectID := mux.Vars(r)["projectId"]

	if err := h.repo.Delete(r.Context(), projectID); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if h.maxBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return false
	}
	return true
}

func validDocument(w http.ResponseWriter, doc json.RawMessage) bool {
	if len(doc) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document is required"})
		return false
	}
	if err := Validate(doc); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.Is(err, ErrUnsupportedVersion), errors.Is(err, ErrInvalidDocument):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		slog.Error("service error", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
