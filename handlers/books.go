package handlers

import (
	"net/http"
	"strings"

	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/service"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BooksHandler struct {
	Catalog *service.CatalogService
}

func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	var pg page
	status := models.BookStatus(strings.ToUpper(r.URL.Query().Get("status")))
	rules := append(pagination(r, &pg), optional(string(status), oneOf("status", status, models.ValidBookStatuses)))
	if err := validate(rules...); err != nil {
		writeError(w, r, err)
		return
	}
	books, total, err := h.Catalog.List(r.Context(), models.BookFilter{
		Status: status,
		Query:  strings.TrimSpace(r.URL.Query().Get("q")),
		Page:   pg.Page,
		Limit:  pg.Limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeList(w, books, pg, total)
}

func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	var id primitive.ObjectID
	if err := pathID(r, "id", &id); err != nil {
		writeError(w, r, err)
		return
	}
	book, err := h.Catalog.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, book)
}

type CreateBookRequest struct {
	Title     string   `json:"title"`
	Authors   []string `json:"authors"`
	Publisher string   `json:"publisher"`
	ISBN      string   `json:"isbn"`
	Price     int64    `json:"price"`
	Quantity  int      `json:"quantity"`
}

// Create adds a title to the catalog. With only an ISBN the metadata lookup fills the rest.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req CreateBookRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate(
		rule{"title", func() string {
			if strings.TrimSpace(req.Title) == "" && strings.TrimSpace(req.ISBN) == "" {
				return "title or isbn is required"
			}
			return ""
		}},
		intRange("quantity", req.Quantity, 0, 100_000),
	); err != nil {
		writeError(w, r, err)
		return
	}
	book, err := h.Catalog.Create(r.Context(), p, service.BookInput{
		Title:     req.Title,
		Authors:   req.Authors,
		Publisher: req.Publisher,
		ISBN:      req.ISBN,
		Price:     req.Price,
		Quantity:  req.Quantity,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, book)
}

// AdjustStockRequest adds or removes shelf copies. Copies on loan are not affected.
type AdjustStockRequest struct {
	Delta int `json:"delta"`
}

func (h *BooksHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var id primitive.ObjectID
	if err := pathID(r, "id", &id); err != nil {
		writeError(w, r, err)
		return
	}
	var req AdjustStockRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := validate(rule{"delta", func() string {
		if req.Delta == 0 {
			return "a non-zero change is required"
		}
		return ""
	}}); err != nil {
		writeError(w, r, err)
		return
	}
	book, err := h.Catalog.AdjustStock(r.Context(), p, id, req.Delta)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, book)
}

type SetBookStatusRequest struct {
	Status string `json:"status"`
}

func (h *BooksHandler) SetStatus(w http.ResponseWriter, r *http.Request) {
	p, err := principal(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var id primitive.ObjectID
	if err := pathID(r, "id", &id); err != nil {
		writeError(w, r, err)
		return
	}
	var req SetBookStatusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	status := models.BookStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if err := validate(oneOf("status", status, models.ValidBookStatuses)); err != nil {
		writeError(w, r, err)
		return
	}
	book, err := h.Catalog.SetStatus(r.Context(), p, id, status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, book)
}
