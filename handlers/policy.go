package handlers

import (
	"net/http"

	"github.com/kevinaaaquil/unilib/service"
)

type PolicyHandler struct {
	Policy *service.PolicyProvider
}

func (h *PolicyHandler) Get(w http.ResponseWriter, r *http.Request) {
	policy, err := h.Policy.Current(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, policy)
}

type PolicyRequest struct {
	LateFeePerDay   int64   `json:"lateFeePerDay"`
	DamageFeeRate   float64 `json:"damageFeeRate"`
	LostBookFeeRate float64 `json:"lostBookFeeRate"`
	Currency        string  `json:"currency"`
}

// Put replaces the active fine policy. Loans already returned keep the fees they were charged.
func (h *PolicyHandler) Put(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req PolicyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	policy, err := h.Policy.SetActive(r.Context(), p, service.PolicyInput(req))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, policy)
}
