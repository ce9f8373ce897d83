package handlers

import (
	"net/http"
	"strings"

	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FinesHandler struct {
	Fines *service.FineService
}

func (h *FinesHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	var (
		pg           page
		user, loanID primitive.ObjectID
	)
	status := models.FineStatus(strings.ToUpper(q.Get("status")))
	rules := append(pagination(r, &pg),
		optional(string(status), oneOf("status", status, models.ValidFineStatuses)),
		optional(q.Get("userId"), objectID("userId", q.Get("userId"), &user)),
		optional(q.Get("loanId"), objectID("loanId", q.Get("loanId"), &loanID)),
	)
	if err := validate(rules...); err != nil {
		writeError(w, r, err)
		return
	}
	f := models.FineFilter{Status: status, Page: pg.Page, Limit: pg.Limit}
	if !user.IsZero() {
		f.UserID = &user
	}
	if !loanID.IsZero() {
		f.LoanID = &loanID
	}
	fines, total, err := h.Fines.List(r.Context(), p, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, fines, pg, total)
}

func (h *FinesHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	fine, err := h.Fines.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, fine)
}

func (h *FinesHandler) Pay(w http.ResponseWriter, r *http.Request) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	fine, err := h.Fines.Pay(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, fine)
}

func (h *FinesHandler) Waive(w http.ResponseWriter, r *http.Request) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	var req ReasonRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate(required("reason", req.Reason)); err != nil {
		writeError(w, r, err)
		return
	}
	fine, err := h.Fines.Waive(r.Context(), p, id, strings.TrimSpace(req.Reason))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, fine)
}

type OutstandingResponse struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
}

// Outstanding sums a reader's pending fines. Without ?userId it reports the caller's own.
func (h *FinesHandler) Outstanding(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	user := p.UserID
	raw := r.URL.Query().Get("userId")
	if err := validate(optional(raw, objectID("userId", raw, &user))); err != nil {
		writeError(w, r, err)
		return
	}
	owed, err := h.Fines.Outstanding(r.Context(), p, user)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, OutstandingResponse{UserID: user.Hex(), Amount: owed})
}
