package httpapi

import (
	"net/http"
	"strings"
	"time"

	"mintgate.org/internal/audit"
	"mintgate.org/internal/auth"
)

type tokenRequest struct {
	Address string `json:"address"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

const tokenTTL = 15 * time.Minute

func (a *API) handleAuthToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}

	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	address := strings.ToLower(strings.TrimSpace(req.Address))
	if address == "" {
		writeError(w, r, http.StatusBadRequest, "address is required")
		return
	}

	token, err := auth.GenerateToken(address, tokenTTL)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "token generation failed")
		return
	}

	expiresAt := time.Now().UTC().Add(tokenTTL)
	_ = audit.LogEvent(r.Context(), "auth.token.issued", map[string]any{
		"address":    address,
		"expires_at": expiresAt.Format(time.RFC3339),
	})

	writeJSON(w, http.StatusOK, tokenResponse{
		Token:     token,
		ExpiresAt: expiresAt,
	})
}
