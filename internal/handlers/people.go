package handlers

import "net/http"

// PersonResponse is one known user in the roster response.
type PersonResponse struct {
	ID       string `json:"_id"`
	Username string `json:"username"`
}

// GetPeople returns all known user identities.
func (h *Handler) GetPeople(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("user list query failed")
		h.Error(w, http.StatusInternalServerError, "failed to fetch users")
		return
	}

	out := make([]PersonResponse, 0, len(users))
	for _, u := range users {
		out = append(out, PersonResponse{ID: u.ID, Username: u.Username})
	}

	h.JSON(w, http.StatusOK, out)
}
