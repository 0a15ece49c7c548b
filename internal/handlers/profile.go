package handlers

import (
	"net/http"

	"github.com/courierchat/courier/internal/api/middleware"
)

// ProfileResponse echoes the authenticated caller's identity.
type ProfileResponse struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

// GetProfile returns the identity claims of the calling session token.
func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		h.Error(w, http.StatusUnauthorized, "authentication required")
		return
	}

	h.JSON(w, http.StatusOK, ProfileResponse{
		UserID:   claims.UserID,
		Username: claims.Username,
	})
}
