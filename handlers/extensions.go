package handlers

import (
	"net/http"
	"strings"

	"github.com/kevinaaaquil/unilib/service"
)

type ExtensionsHandler struct {
	Extensions *service.ExtensionService
}

type ReviewRequest struct {
	Note string `json:"note"`
}

func (h *ExtensionsHandler) review(w http.ResponseWriter, r *http.Request, approve bool) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	var req ReviewRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	note := strings.TrimSpace(req.Note)
	review := h.Extensions.Reject
	if approve {
		review = h.Extensions.Approve
	}
	ext, err := review(r.Context(), p, id, note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, ext)
}

// Approve moves the loan's due date to the requested date.
func (h *ExtensionsHandler) Approve(w http.ResponseWriter, r *http.Request) { h.review(w, r, true) }

func (h *ExtensionsHandler) Reject(w http.ResponseWriter, r *http.Request) { h.review(w, r, false) }
