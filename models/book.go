package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type BookStatus string

const (
	BookActive   BookStatus = "ACTIVE"
	BookInactive BookStatus = "INACTIVE"
	BookLost     BookStatus = "LOST"
	BookDamaged  BookStatus = "DAMAGED"
)

var ValidBookStatuses = []BookStatus{BookActive, BookInactive, BookLost, BookDamaged}

// Book is a catalog title with a pool of physical copies.
// QuantityAvailable never exceeds QuantityTotal; the store rejects any write that would break that.
type Book struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title             string             `bson:"title" json:"title"`
	Authors           []string           `bson:"authors,omitempty" json:"authors,omitempty"`
	Publisher         string             `bson:"publisher,omitempty" json:"publisher,omitempty"`
	PublishDate       string             `bson:"publishDate,omitempty" json:"publishDate,omitempty"`
	ISBN              string             `bson:"isbn,omitempty" json:"isbn,omitempty"`
	CoverURL          string             `bson:"coverUrl,omitempty" json:"coverUrl,omitempty"`
	Price             int64              `bson:"price" json:"price"`
	QuantityTotal     int                `bson:"quantityTotal" json:"quantityTotal"`
	QuantityAvailable int                `bson:"quantityAvailable" json:"quantityAvailable"`
	Status            BookStatus         `bson:"status" json:"status"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// BookFilter narrows catalog listings.
type BookFilter struct {
	Status BookStatus
	Query  string
	Page   int
	Limit  int
}
