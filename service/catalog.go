package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/kevinaaaquil/unilib/models"
	"github.com/kevinaaaquil/unilib/store"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookInput struct {
	Title     string
	Authors   []string
	Publisher string
	ISBN      string
	Price     int64
	Quantity  int
}

// CatalogService maintains books and their stock counters outside of the loan workflow.
type CatalogService struct {
	base
	metadata *MetadataClient
}

// NewCatalogService takes an optional metadata client used to fill in missing fields from the ISBN.
func NewCatalogService(st Store, metadata *MetadataClient, opts ...Option) *CatalogService {
	return &CatalogService{base: newBase(st, nil, opts), metadata: metadata}
}

func (s *CatalogService) Create(ctx context.Context, staff models.Principal, in BookInput) (*models.Book, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" && in.ISBN != "" && s.metadata != nil {
		s.enrich(ctx, &in)
	}
	fields := map[string]string{}
	if in.Title == "" {
		fields["title"] = "is required"
	}
	if in.Price < 0 {
		fields["price"] = "must be zero or positive"
	}
	if in.Quantity < 0 {
		fields["quantity"] = "must be zero or positive"
	}
	if len(fields) > 0 {
		return nil, Validation("invalid book", fields)
	}
	now := s.now()
	book := &models.Book{
		Title:             in.Title,
		Authors:           in.Authors,
		Publisher:         in.Publisher,
		ISBN:              normalizeISBN(in.ISBN),
		Price:             in.Price,
		QuantityTotal:     in.Quantity,
		QuantityAvailable: in.Quantity,
		Status:            models.BookActive,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if in.ISBN != "" {
		book.CoverURL = openLibraryCoverURL(in.ISBN, "M")
	}
	if err := s.store.InsertBook(ctx, book); err != nil {
		return nil, fmt.Errorf("insert book: %w", err)
	}
	return book, nil
}

func (s *CatalogService) enrich(ctx context.Context, in *BookInput) {
	meta, err := s.metadata.LookupISBN(ctx, in.ISBN)
	if err != nil {
		slog.Warn("isbn lookup failed", "isbn", in.ISBN, "err", err)
		return
	}
	in.Title = meta.Title
	if len(in.Authors) == 0 {
		in.Authors = meta.Authors
	}
	if in.Publisher == "" {
		in.Publisher = meta.Publisher
	}
}

func (s *CatalogService) Get(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	book, err := s.store.BookByID(ctx, id)
	if err != nil {
		return nil, notFoundAs(err, CodeBookNotFound, "book not found")
	}
	return book, nil
}

func (s *CatalogService) List(ctx context.Context, f models.BookFilter) ([]models.Book, int64, error) {
	books, total, err := s.store.ListBooks(ctx, f)
	if err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}
	return books, total, nil
}

// AdjustStock adds (delta > 0) or removes (delta < 0) shelf copies. Both counters move together,
// so copies out on loan are never touched and every open loan stays returnable.
func (s *CatalogService) AdjustStock(ctx context.Context, staff models.Principal, id primitive.ObjectID, delta int) (*models.Book, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	if delta == 0 {
		return nil, Validation("invalid stock change", map[string]string{"delta": "a non-zero change is required"})
	}
	book, err := s.store.AdjustStock(ctx, id, delta, delta)
	if errors.Is(err, store.ErrStockConflict) {
		return nil, Conflict(CodeInsufficientStock, "not enough copies on the shelf to remove")
	}
	if err != nil {
		return nil, notFoundAs(err, CodeBookNotFound, "book not found")
	}
	return book, nil
}

func (s *CatalogService) SetStatus(ctx context.Context, staff models.Principal, id primitive.ObjectID, status models.BookStatus) (*models.Book, error) {
	if err := requireStaff(staff); err != nil {
		return nil, err
	}
	if !slices.Contains(models.ValidBookStatuses, status) {
		return nil, Validation("invalid book status", map[string]string{"status": "must be ACTIVE, INACTIVE, LOST or DAMAGED"})
	}
	book, err := s.store.SetBookStatus(ctx, id, status)
	if err != nil {
		return nil, notFoundAs(err, CodeBookNotFound, "book not found")
	}
	return book, nil
}
