package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxCopiesPerItem = 1000

type LoansHandler struct {
	Loans      *service.LoanService
	Returns    *service.ReturnService
	Extensions *service.ExtensionService
	Now        func() time.Time
}

func (h *LoansHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now().UTC()
}

type LoanItemRequest struct {
	BookID string `json:"bookId"`
	Qty    int    `json:"qty"`
}

type CreateLoanRequest struct {
	ReaderUserID string            `json:"readerUserId"`
	DueDate      string            `json:"dueDate"`
	Items        []LoanItemRequest `json:"items"`
	Notes        string            `json:"notes"`
}

// loanInput validates the shared part of both create endpoints.
func (h *LoansHandler) loanInput(req CreateLoanRequest, extra ...rule) (service.CreateLoanInput, error) {
	in := service.CreateLoanInput{Notes: strings.TrimSpace(req.Notes)}
	rules := append(extra, required("dueDate", req.DueDate), futureTime("dueDate", req.DueDate, h.now(), &in.DueDate))
	rules = append(rules, rule{"items", func() string {
		if len(req.Items) == 0 {
			return "at least one item is required"
		}
		return ""
	}})
	in.Items = make([]service.ItemRequest, len(req.Items))
	for i, it := range req.Items {
		rules = append(rules,
			objectID(fmt.Sprintf("items[%d].bookId", i), it.BookID, &in.Items[i].BookID),
			intRange(fmt.Sprintf("items[%d].qty", i), it.Qty, 1, maxCopiesPerItem),
		)
		in.Items[i].Qty = it.Qty
	}
	if err := validate(rules...); err != nil {
		return in, err
	}
	return in, nil
}

// CreateSelf records a borrow request for the caller. Stock is reserved on approval.
func (h *LoansHandler) CreateSelf(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req CreateLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	in, err := h.loanInput(req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	loan, err := h.Loans.CreateSelfService(r.Context(), p, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, loan)
}

// Create lends books to a reader at the desk. The loan starts BORROWED.
func (h *LoansHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req CreateLoanRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	var reader primitive.ObjectID
	in, err := h.loanInput(req, required("readerUserId", req.ReaderUserID), objectID("readerUserId", req.ReaderUserID, &reader))
	if err != nil {
		writeError(w, r, err)
		return
	}
	in.ReaderUserID = reader
	loan, err := h.Loans.CreateByLibrarian(r.Context(), p, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, loan)
}

var loanStatusFilters = []models.LoanStatus{
	models.LoanPending, models.LoanBorrowed, models.LoanPartialReturn,
	models.LoanReturned, models.LoanCancelled, models.LoanOverdue,
}

func (h *LoansHandler) List(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	var (
		pg     page
		reader primitive.ObjectID
	)
	status := models.LoanStatus(strings.ToUpper(q.Get("status")))
	if overdue, _ := strconv.ParseBool(q.Get("overdue")); overdue {
		status = models.LoanOverdue
	}
	rules := append(pagination(r, &pg),
		optional(string(status), oneOf("status", status, loanStatusFilters)),
		optional(q.Get("readerUserId"), objectID("readerUserId", q.Get("readerUserId"), &reader)),
	)
	if err := validate(rules...); err != nil {
		writeError(w, r, err)
		return
	}
	f := models.LoanFilter{Status: status, Page: pg.Page, Limit: pg.Limit}
	if !reader.IsZero() {
		f.ReaderUserID = &reader
	}
	loans, total, err := h.Loans.List(r.Context(), p, f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, loans, pg, total)
}

// withPathID resolves the caller and the {id} path parameter.
func withPathID(w http.ResponseWriter, r *http.Request) (models.Principal, primitive.ObjectID, bool) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return p, primitive.NilObjectID, false
	}
	var id primitive.ObjectID
	if err := pathID(r, "id", &id); err != nil {
		writeError(w, r, err)
		return p, id, false
	}
	return p, id, true
}

func (h *LoansHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	loan, err := h.Loans.Get(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, loan)
}

func (h *LoansHandler) Approve(w http.ResponseWriter, r *http.Request) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	loan, err := h.Loans.Approve(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, loan)
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) error {
	if r.ContentLength == 0 {
		return nil
	}
	return decodeJSON(w, r, dst)
}

func (h *LoansHandler) Reject(w http.ResponseWriter, r *http.Request) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	var req ReasonRequest
	if err := decodeOptional(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	loan, err := h.Loans.Reject(r.Context(), p, id, strings.TrimSpace(req.Reason))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, loan)
}

func (h *LoansHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	loan, err := h.Loans.Cancel(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, loan)
}

type ReturnItemRequest struct {
	BookID      string `json:"bookId"`
	Qty         int    `json:"qty"`
	Condition   string `json:"condition"`
	DamageLevel int    `json:"damageLevel"`
	OtherFee    int64  `json:"otherFee"`
	Notes       string `json:"notes"`
}

type ReturnRequest struct {
	ReturnedItems []ReturnItemRequest `json:"returnedItems"`
}

func (h *LoansHandler) Return(w http.ResponseWriter, r *http.Request) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	var req ReturnRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	rules := []rule{{"returnedItems", func() string {
		if len(req.ReturnedItems) == 0 {
			return "at least one item is required"
		}
		return ""
	}}}
	items := make([]service.ReturnItemInput, len(req.ReturnedItems))
	for i, it := range req.ReturnedItems {
		prefix := fmt.Sprintf("returnedItems[%d].", i)
		cond := models.ItemCondition(strings.ToUpper(strings.TrimSpace(it.Condition)))
		rules = append(rules,
			objectID(prefix+"bookId", it.BookID, &items[i].BookID),
			intRange(prefix+"qty", it.Qty, 1, maxCopiesPerItem),
			optional(string(cond), oneOf(prefix+"condition", cond, models.ValidConditions)),
			intRange(prefix+"damageLevel", it.DamageLevel, 0, 100),
		)
		items[i].Qty = it.Qty
		items[i].Condition = cond
		items[i].DamageLevel = it.DamageLevel
		items[i].OtherFee = it.OtherFee
		items[i].Notes = strings.TrimSpace(it.Notes)
	}
	if err := validate(rules...); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.Loans.Return(r.Context(), p, id, items)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, res)
}

func (h *LoansHandler) ListReturns(w http.ResponseWriter, r *http.Request) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	returns, err := h.Returns.ListForLoan(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, returns)
}

func (h *LoansHandler) ListExtensions(w http.ResponseWriter, r *http.Request) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	exts, err := h.Extensions.ListForLoan(r.Context(), p, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, exts)
}

type ExtendRequest struct {
	Days   int    `json:"days"`
	Reason string `json:"reason"`
}

func (h *LoansHandler) Extend(w http.ResponseWriter, r *http.Request) {
	p, id, ok := withPathID(w, r)
	if !ok {
		return
	}
	var req ExtendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate(intRange("days", req.Days, service.MinExtensionDays, service.MaxExtensionDays)); err != nil {
		writeError(w, r, err)
		return
	}
	ext, err := h.Loans.Extend(r.Context(), p, id, req.Days, req.Reason)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, ext)
}
