package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/courierchat/courier/internal/api/middleware"
	"github.com/courierchat/courier/internal/crypto"
)

// MessageResponse is one decrypted message in the history response.
type MessageResponse struct {
	ID        string    `json:"_id"`
	Sender    string    `json:"sender"`
	Recipient string    `json:"recipient"`
	Text      string    `json:"text"`
	File      *string   `json:"file"`
	CreatedAt time.Time `json:"createdAt"`
}

// GetMessages returns the full conversation between the authenticated
// caller and the user in the URL, oldest first, decrypted. A record that
// fails decryption is skipped and logged; one corrupt row never aborts
// the batch.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	otherID := chi.URLParam(r, "userId")
	if otherID == "" {
		h.Error(w, http.StatusBadRequest, "userId is required")
		return
	}

	messages, err := h.store.Conversation(r.Context(), claims.UserID, otherID)
	if err != nil {
		h.logger.Error().Err(err).Msg("conversation query failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	out := make([]MessageResponse, 0, len(messages))
	for _, msg := range messages {
		text, err := h.cipher.Decrypt(msg.Ciphertext, msg.IV)
		if err != nil {
			if errors.Is(err, crypto.ErrDecrypt) {
				h.logger.Warn().Str("message_id", msg.ID).Msg("skipping undecryptable record")
				continue
			}
			h.Error(w, http.StatusInternalServerError, "failed to decrypt messages")
			return
		}
		out = append(out, MessageResponse{
			ID:        msg.ID,
			Sender:    msg.Sender,
			Recipient: msg.Recipient,
			Text:      text,
			File:      msg.File,
			CreatedAt: msg.CreatedAt,
		})
	}

	h.JSON(w, http.StatusOK, out)
}
