package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"mintgate.org/internal/authz"
	"mintgate.org/internal/stream"
)

type rotateAuthorityRequest struct {
	PublicKey string `json:"public_key"` // hex ed25519 public key
}

type baseURIRequest struct {
	BaseURI string `json:"base_uri"`
}

type withdrawRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount,omitempty"` // decimal; empty drains the vault
}

type withdrawResponse struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
}

type airdropRequest struct {
	Recipient string `json:"recipient"`
	Units     uint64 `json:"units"`
}

type transferOwnershipRequest struct {
	NewOwner string `json:"new_owner"`
}

func (a *API) handleRotateAuthority(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := a.callerAddress(w, r)
	if !ok {
		return
	}

	var req rotateAuthorityRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	key, err := authz.ParsePublicKey(req.PublicKey)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "public_key must be a hex ed25519 public key")
		return
	}

	if err := a.engine.RotateAuthority(r.Context(), caller, key); err != nil {
		handleSaleError(w, r, err)
		return
	}

	a.audit(r.Context(), "admin.authority.rotate", "authority", req.PublicKey, nil)
	writeJSON(w, http.StatusOK, map[string]any{"authority_key": req.PublicKey})
}

func (a *API) handleSetBaseURI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := a.callerAddress(w, r)
	if !ok {
		return
	}

	var req baseURIRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	uri := strings.TrimSpace(req.BaseURI)

	if err := a.engine.SetBaseURI(r.Context(), caller, uri); err != nil {
		handleSaleError(w, r, err)
		return
	}

	a.audit(r.Context(), "admin.base_uri.set", "metadata", uri, nil)
	writeJSON(w, http.StatusOK, map[string]any{"base_uri": uri})
}

func (a *API) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := a.callerAddress(w, r)
	if !ok {
		return
	}

	var req withdrawRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	recipient := strings.ToLower(strings.TrimSpace(req.Recipient))
	if recipient == "" {
		writeError(w, r, http.StatusBadRequest, "recipient is required")
		return
	}
	var amount *uint256.Int
	if strings.TrimSpace(req.Amount) != "" {
		v, err := parseAmount(req.Amount)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		amount = v
	}

	paid, err := a.engine.Withdraw(r.Context(), caller, recipient, amount)
	if err != nil {
		handleSaleError(w, r, err)
		return
	}

	a.audit(r.Context(), "admin.withdraw", "vault", recipient, map[string]string{
		"amount": paid.Dec(),
	})
	writeJSON(w, http.StatusOK, withdrawResponse{Recipient: recipient, Amount: paid.Dec()})
}

func (a *API) handleAirdrop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := a.callerAddress(w, r)
	if !ok {
		return
	}

	var req airdropRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	recipient := strings.ToLower(strings.TrimSpace(req.Recipient))
	if recipient == "" {
		writeError(w, r, http.StatusBadRequest, "recipient is required")
		return
	}

	receipt, err := a.engine.Airdrop(r.Context(), caller, recipient, req.Units)
	if err != nil {
		handleSaleError(w, r, err)
		return
	}

	if a.stream != nil {
		a.stream.Publish(stream.PurchaseEvent{
			Receipt:   receipt.ID,
			Buyer:     receipt.Buyer,
			Units:     receipt.Units,
			TokenIDs:  receipt.TokenIDs(),
			Timestamp: time.Now().UTC(),
		})
	}

	a.audit(r.Context(), "admin.airdrop", "receipt", receipt.ID, map[string]string{
		"recipient":      recipient,
		"units":          strconv.FormatUint(receipt.Units, 10),
		"first_token_id": strconv.FormatUint(receipt.FirstTokenID, 10),
	})
	writeJSON(w, http.StatusCreated, receipt)
}

func (a *API) handleTransferOwnership(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	caller, ok := a.callerAddress(w, r)
	if !ok {
		return
	}

	var req transferOwnershipRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	newOwner := strings.ToLower(strings.TrimSpace(req.NewOwner))
	if newOwner == "" {
		writeError(w, r, http.StatusBadRequest, "new_owner is required")
		return
	}

	if err := a.engine.TransferOwnership(r.Context(), caller, newOwner); err != nil {
		handleSaleError(w, r, err)
		return
	}

	a.audit(r.Context(), "admin.owner.transfer", "owner", newOwner, nil)
	writeJSON(w, http.StatusOK, map[string]any{"owner": newOwner})
}
