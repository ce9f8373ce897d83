package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ReturnItem struct {
	BookID        primitive.ObjectID `bson:"bookId" json:"bookId"`
	Qty           int                `bson:"qty" json:"qty"`
	Condition     ItemCondition      `bson:"condition" json:"condition"`
	DamagePercent int                `bson:"damagePercent" json:"damagePercent"`
	LateDays      int                `bson:"lateDays" json:"lateDays"`
	LateFee       int64              `bson:"lateFee" json:"lateFee"`
	DamageFee     int64              `bson:"damageFee" json:"damageFee"`
	OtherFee      int64              `bson:"otherFee" json:"otherFee"`
	TotalFee      int64              `bson:"totalFee" json:"totalFee"`
	Notes         string             `bson:"notes,omitempty" json:"notes,omitempty"`
}

// Return is the immutable record of copies handed back in one visit.
type Return struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	LoanID      primitive.ObjectID `bson:"loanId" json:"loanId"`
	LibrarianID primitive.ObjectID `bson:"librarianId" json:"librarianId"`
	ReturnDate  time.Time          `bson:"returnDate" json:"returnDate"`
	LateDays    int                `bson:"lateDays" json:"lateDays"`
	Items       []ReturnItem       `bson:"items" json:"items"`
	TotalAmount int64              `bson:"totalAmount" json:"totalAmount"`
	Currency    string             `bson:"currency" json:"currency"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
}

// RecomputeTotal sets TotalAmount from the item totals.
func (r *Return) RecomputeTotal() {
	var total int64
	for _, it := range r.Items {
		total += it.TotalFee
	}
	r.TotalAmount = total
}
