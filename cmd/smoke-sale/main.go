// Command smoke-sale runs an end-to-end purchase against a live API
// instance: issue a proof, obtain a bearer token, buy in the public phase,
// then check that supply and balance moved together.
package main

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"mintgate.org/internal/authz"
)

func main() {
	base := os.Getenv("MINTGATE_SMOKE_ADDR")
	if base == "" {
		base = "http://localhost:8080"
	}
	buyer := os.Getenv("MINTGATE_SMOKE_BUYER")
	if buyer == "" {
		buyer = "0xsmoke"
	}
	privHex := os.Getenv("MINTGATE_AUTHORITY_PRIVATE_KEY")
	if privHex == "" {
		log.Fatal("MINTGATE_AUTHORITY_PRIVATE_KEY is required to sign the proof")
	}
	raw, err := hex.DecodeString(privHex)
	if err != nil || len(raw) != ed25519.PrivateKeySize {
		log.Fatalf("invalid authority private key")
	}
	issuer, err := authz.NewIssuer(ed25519.PrivateKey(raw))
	if err != nil {
		log.Fatalf("issuer: %v", err)
	}
	proof := authz.EncodeProof(issuer.Issue(authz.RoleCaptchaSolved, buyer))

	client := &http.Client{Timeout: 5 * time.Second}

	var tok struct {
		Token string `json:"token"`
	}
	post(client, base+"/v1/auth/token", "", map[string]any{"address": buyer}, &tok)

	var supplyBefore struct {
		TotalIssued uint64 `json:"total_issued"`
	}
	get(client, base+"/v1/sale/supply", &supplyBefore)

	price := os.Getenv("MINTGATE_SMOKE_PRICE")
	if price == "" {
		price = "1000"
	}
	var receipt struct {
		ID    string `json:"id"`
		Units uint64 `json:"units"`
		First uint64 `json:"first_token_id"`
		Buyer string `json:"buyer"`
		Paid  string `json:"paid"`
		Phase string `json:"phase"`
	}
	post(client, base+"/v1/sale/public/buy", tok.Token, map[string]any{
		"paid_amount": price,
		"proof":       proof,
	}, &receipt)
	if receipt.Units == 0 {
		log.Fatalf("purchase yielded zero units")
	}

	var supplyAfter struct {
		TotalIssued uint64 `json:"total_issued"`
	}
	get(client, base+"/v1/sale/supply", &supplyAfter)
	if supplyAfter.TotalIssued != supplyBefore.TotalIssued+receipt.Units {
		log.Fatalf("issuance mismatch: %d -> %d for %d units",
			supplyBefore.TotalIssued, supplyAfter.TotalIssued, receipt.Units)
	}

	var bal struct {
		Balance uint64 `json:"balance"`
	}
	get(client, base+"/v1/addresses/"+receipt.Buyer+"/balance", &bal)
	if bal.Balance < receipt.Units {
		log.Fatalf("balance %d below purchased units %d", bal.Balance, receipt.Units)
	}

	fmt.Printf("SMOKE OK: receipt=%s units=%d first_token=%d issued=%d\n",
		receipt.ID, receipt.Units, receipt.First, supplyAfter.TotalIssued)
}

func post(client *http.Client, url, token string, body map[string]any, out any) {
	payload, _ := json.Marshal(body)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		log.Fatalf("build request %s: %v", url, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	do(client, req, out)
}

func get(client *http.Client, url string, out any) {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		log.Fatalf("build request %s: %v", url, err)
	}
	do(client, req, out)
}

func do(client *http.Client, req *http.Request, out any) {
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", req.Method, req.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		log.Fatalf("%s %s: HTTP %d %s", req.Method, req.URL, resp.StatusCode, e.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		log.Fatalf("%s %s: decode: %v", req.Method, req.URL, err)
	}
}
