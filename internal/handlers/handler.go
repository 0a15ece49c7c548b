package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/courierchat/courier/internal/crypto"
	"github.com/courierchat/courier/internal/store"
)

// Handler contains shared dependencies for all HTTP handlers.
type Handler struct {
	store  store.MessageStore
	redis  *store.RedisStore
	cipher *crypto.Cipher
	logger zerolog.Logger
}

// NewHandler creates a new Handler with the given dependencies.
func NewHandler(st store.MessageStore, redis *store.RedisStore, cipher *crypto.Cipher, logger zerolog.Logger) *Handler {
	return &Handler{store: st, redis: redis, cipher: cipher, logger: logger}
}

// JSON sends a JSON response with the given status code.
func (h *Handler) JSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// Error sends a JSON error response with the given status code.
func (h *Handler) Error(w http.ResponseWriter, status int, message string) {
	h.JSON(w, status, map[string]string{"error": message})
}
