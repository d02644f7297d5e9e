package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/cfraser/adventure-engine/pkg/storage"
)

// WorldListResponse maps world names to their template filenames.
type WorldListResponse struct {
	Worlds map[string]string `json:"worlds"`
}

// WorldsHandler serves the world templates available for new sessions.
type WorldsHandler struct {
	log     *slog.Logger
	storage storage.Storage
}

func NewWorldsHandler(log *slog.Logger, storage storage.Storage) *WorldsHandler {
	return &WorldsHandler{
		log:     log,
		storage: storage,
	}
}

func (h *WorldsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *WorldsHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/v1/worlds")
	filename := strings.Trim(path, "/")

	if filename == "" {
		h.handleList(w, r)
		return
	}

	if strings.Contains(filename, "..") || strings.Contains(filename, "/") {
		http.Error(w, "Invalid filename", http.StatusBadRequest)
		return
	}

	world, err := h.storage.GetWorldTemplate(r.Context(), filename)
	if err != nil {
		if strings.Contains(err.Error(), "not found") {
			http.Error(w, "World not found", http.StatusNotFound)
			return
		}
		h.log.Error("Failed to get world template", "error", err, "filename", filename)
		http.Error(w, "Failed to retrieve world", http.StatusInternalServerError)
		return
	}

	data, err := json.Marshal(world)
	if err != nil {
		h.log.Error("Failed to marshal world template", "error", err, "filename", filename)
		http.Error(w, "Failed to process world", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *WorldsHandler) handleList(w http.ResponseWriter, r *http.Request) {
	templates, err := h.storage.ListWorldTemplates(r.Context())
	if err != nil {
		h.log.Error("Failed to list world templates", "error", err)
		http.Error(w, "Failed to list worlds", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(WorldListResponse{Worlds: templates}); err != nil {
		h.log.Error("Failed to encode world list", "error", err)
	}
}
