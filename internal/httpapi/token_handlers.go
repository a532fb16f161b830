package httpapi

import (
	"net/http"
	"strconv"
	"strings"
)

type tokenInfoResponse struct {
	ID    uint64 `json:"id"`
	Owner string `json:"owner"`
	URI   string `json:"uri,omitempty"`
}

type balanceResponse struct {
	Address string `json:"address"`
	Balance uint64 `json:"balance"`
}

// handleTokenResource serves /v1/tokens/{id}.
func (a *API) handleTokenResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	raw := strings.TrimPrefix(r.URL.Path, "/v1/tokens/")
	if raw == "" || strings.Contains(raw, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "token id must be a non-negative integer")
		return
	}

	owner, err := a.tokens.OwnerOf(id)
	if err != nil {
		handleSaleError(w, r, err)
		return
	}

	resp := tokenInfoResponse{ID: id, Owner: owner}
	if a.metadata != nil {
		resp.URI = a.metadata.ResolveURI(id)
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleAddressResource serves /v1/addresses/{address}/balance.
func (a *API) handleAddressResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, "/v1/addresses/")
	if !strings.HasSuffix(path, "/balance") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	address := strings.ToLower(strings.TrimSuffix(path, "/balance"))
	address = strings.TrimSuffix(address, "/")
	if address == "" || strings.Contains(address, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	writeJSON(w, http.StatusOK, balanceResponse{
		Address: address,
		Balance: a.tokens.BalanceOf(address),
	})
}
