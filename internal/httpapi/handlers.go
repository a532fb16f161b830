package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"mintgate.org/api/spec"
	"mintgate.org/internal/obs"
	"mintgate.org/internal/sale"
	"mintgate.org/internal/stream"
	"mintgate.org/internal/token"
)

// ReadyProbe reports whether downstream dependencies are reachable.
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// API is the HTTP layer over the sale engine and token ledger.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	engine   *sale.Engine
	tokens   token.Ledger
	metadata *token.Metadata
	stream   *stream.Stream

	rateBurst  int
	ratePerSec int
	maxBody    int64
}

func New(rp ReadyProbe, version string, engine *sale.Engine, tokens token.Ledger, metadata *token.Metadata, st *stream.Stream) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		engine:     engine,
		tokens:     tokens,
		metadata:   metadata,
		stream:     st,
		rateBurst:  20,
		ratePerSec: 10,
		maxBody:    1 << 20,
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	// OpenAPI YAML
	a.mux.HandleFunc("/openapi.yaml", a.OpenAPISpec)

	// Prometheus metrics
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/v1/auth/token", a.handleAuthToken)

	// sale
	a.mux.HandleFunc("/v1/sale/whitelist/buy", a.handleWhitelistBuy)
	a.mux.HandleFunc("/v1/sale/public/buy", a.handlePublicBuy)
	a.mux.HandleFunc("/v1/sale/phases", a.handlePhases)
	a.mux.HandleFunc("/v1/sale/phases/", a.handlePhaseResource)
	a.mux.HandleFunc("/v1/sale/supply", a.handleSupply)
	a.mux.HandleFunc("/v1/sale/stream", a.Stream)

	// tokens
	a.mux.HandleFunc("/v1/tokens/", a.handleTokenResource)
	a.mux.HandleFunc("/v1/addresses/", a.handleAddressResource)

	// owner administration
	a.mux.HandleFunc("/v1/admin/authority", a.handleRotateAuthority)
	a.mux.HandleFunc("/v1/admin/base-uri", a.handleSetBaseURI)
	a.mux.HandleFunc("/v1/admin/withdraw", a.handleWithdraw)
	a.mux.HandleFunc("/v1/admin/airdrop", a.handleAirdrop)
	a.mux.HandleFunc("/v1/admin/owner", a.handleTransferOwnership)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the full middleware chain around the mux.
func (a *API) Handler() http.Handler {
	h := a.withAuth(a.mux)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = MaxBodyBytes(h, a.maxBody)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "mintgate-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "mintgate-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	_, _ = w.Write(spec.OpenAPI)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
