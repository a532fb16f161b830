package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"mintgate.org/internal/audit"
	"mintgate.org/internal/authz"
	"mintgate.org/internal/sale"
	"mintgate.org/internal/stream"
	"mintgate.org/internal/token"
)

type buyRequest struct {
	PaidAmount string `json:"paid_amount"` // decimal, smallest currency unit
	Proof      string `json:"proof"`       // base64 authorization proof
}

type phasesResponse struct {
	Phases []sale.PhaseStatus `json:"phases"`
	AsOf   time.Time          `json:"as_of"`
}

type buyerResponse struct {
	Phase   sale.PhaseKind `json:"phase"`
	Address string         `json:"address"`
	Buys    uint64         `json:"buys"`
}

func (a *API) handleWhitelistBuy(w http.ResponseWriter, r *http.Request) {
	a.buy(w, r, sale.PhaseWhitelist)
}

func (a *API) handlePublicBuy(w http.ResponseWriter, r *http.Request) {
	a.buy(w, r, sale.PhasePublic)
}

func (a *API) buy(w http.ResponseWriter, r *http.Request, kind sale.PhaseKind) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	buyer, ok := a.callerAddress(w, r)
	if !ok {
		return
	}

	var req buyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	paid, err := parseAmount(req.PaidAmount)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	proof, err := authz.DecodeProof(req.Proof)
	if err != nil {
		writeError(w, r, http.StatusForbidden, sale.ErrUnauthorized.Error())
		return
	}

	var receipt sale.Receipt
	switch kind {
	case sale.PhaseWhitelist:
		receipt, err = a.engine.BuyWhitelist(r.Context(), buyer, paid, proof)
	default:
		receipt, err = a.engine.BuyPublic(r.Context(), buyer, paid, proof)
	}
	if err != nil {
		handleSaleError(w, r, err)
		return
	}

	if a.stream != nil {
		a.stream.Publish(stream.PurchaseEvent{
			Receipt:   receipt.ID,
			Buyer:     receipt.Buyer,
			Phase:     string(receipt.Kind),
			Units:     receipt.Units,
			TokenIDs:  receipt.TokenIDs(),
			Paid:      receipt.Paid.Dec(),
			Timestamp: time.Now().UTC(),
		})
	}

	a.audit(r.Context(), "sale.buy."+string(kind), "receipt", receipt.ID, map[string]string{
		"buyer":          receipt.Buyer,
		"units":          strconv.FormatUint(receipt.Units, 10),
		"first_token_id": strconv.FormatUint(receipt.FirstTokenID, 10),
		"paid":           receipt.Paid.Dec(),
	})

	writeJSON(w, http.StatusCreated, receipt)
}

func (a *API) handlePhases(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	phases := make([]sale.PhaseStatus, 0, 2)
	for _, kind := range []sale.PhaseKind{sale.PhaseWhitelist, sale.PhasePublic} {
		st, err := a.engine.PhaseStatus(kind)
		if err != nil {
			handleSaleError(w, r, err)
			return
		}
		phases = append(phases, st)
	}
	writeJSON(w, http.StatusOK, phasesResponse{Phases: phases, AsOf: time.Now().UTC()})
}

// handlePhaseResource serves /v1/sale/phases/{phase}/buyers/{address}.
func (a *API) handlePhaseResource(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	rest := strings.TrimPrefix(r.URL.Path, "/v1/sale/phases/")
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "buyers" || parts[2] == "" {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	kind, err := sale.ParsePhaseKind(parts[0])
	if err != nil {
		writeError(w, r, http.StatusNotFound, "unknown phase")
		return
	}
	address := strings.ToLower(parts[2])
	buys, err := a.engine.BuysOf(kind, address)
	if err != nil {
		handleSaleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buyerResponse{Phase: kind, Address: address, Buys: buys})
}

func (a *API) handleSupply(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, a.engine.Supply())
}

// --- helpers ---

func parseAmount(raw string) (*uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, errors.New("paid_amount is required")
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, errors.New("paid_amount must be a non-negative decimal integer")
	}
	return v, nil
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

func handleSaleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, sale.ErrInvalidInput), errors.Is(err, sale.ErrBelowMinimum):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, sale.ErrUnauthorized), errors.Is(err, sale.ErrPermissionDenied):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, sale.ErrOutsideWindow),
		errors.Is(err, sale.ErrUserCapExceeded),
		errors.Is(err, sale.ErrPhaseSoldOut),
		errors.Is(err, sale.ErrCapacityExceeded),
		errors.Is(err, sale.ErrInsufficientProceeds):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, sale.ErrReentrant):
		w.Header().Set("Retry-After", "1")
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, token.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func (a *API) audit(ctx context.Context, event, objectType, objectID string, meta map[string]string) {
	fields := map[string]any{
		"object_type": objectType,
		"object_id":   objectID,
	}
	for k, v := range meta {
		fields[k] = v
	}
	_ = audit.LogEvent(ctx, event, fields)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}
