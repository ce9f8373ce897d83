package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type FineType string

const (
	FineLateReturn FineType = "LATE_RETURN"
	FineDamage     FineType = "DAMAGE"
	FineLoss       FineType = "LOSS"
)

type FineStatus string

const (
	FinePending FineStatus = "PENDING"
	FinePaid    FineStatus = "PAID"
	FineWaived  FineStatus = "WAIVED"
)

var ValidFineStatuses = []FineStatus{FinePending, FinePaid, FineWaived}

type Fine struct {
	ID          primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	LoanID      primitive.ObjectID  `bson:"loanId" json:"loanId"`
	ReturnID    *primitive.ObjectID `bson:"returnId,omitempty" json:"returnId,omitempty"`
	UserID      primitive.ObjectID  `bson:"userId" json:"userId"`
	BookID      *primitive.ObjectID `bson:"bookId,omitempty" json:"bookId,omitempty"`
	Type        FineType            `bson:"type" json:"type"`
	Amount      int64               `bson:"amount" json:"amount"`
	Currency    string              `bson:"currency" json:"currency"`
	Status      FineStatus          `bson:"status" json:"status"`
	Reason      string              `bson:"reason,omitempty" json:"reason,omitempty"`
	PaidBy      *primitive.ObjectID `bson:"paidBy,omitempty" json:"paidBy,omitempty"`
	PaidAt      *time.Time          `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
	WaivedBy    *primitive.ObjectID `bson:"waivedBy,omitempty" json:"waivedBy,omitempty"`
	WaivedAt    *time.Time          `bson:"waivedAt,omitempty" json:"waivedAt,omitempty"`
	WaiveReason string              `bson:"waiveReason,omitempty" json:"waiveReason,omitempty"`
	CreatedAt   time.Time           `bson:"createdAt" json:"createdAt"`
}

type FineFilter struct {
	UserID *primitive.ObjectID
	LoanID *primitive.ObjectID
	Status FineStatus
	Page   int
	Limit  int
}

// FinePolicy holds the fee parameters used at return time. Exactly one is active.
type FinePolicy struct {
	ID              primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	LateFeePerDay   int64               `bson:"lateFeePerDay" json:"lateFeePerDay"`
	DamageFeeRate   float64             `bson:"damageFeeRate" json:"damageFeeRate"`
	LostBookFeeRate float64             `bson:"lostBookFeeRate" json:"lostBookFeeRate"`
	Currency        string              `bson:"currency" json:"currency"`
	IsActive        bool                `bson:"isActive" json:"isActive"`
	UpdatedBy       *primitive.ObjectID `bson:"updatedBy,omitempty" json:"updatedBy,omitempty"`
	CreatedAt       time.Time           `bson:"createdAt" json:"createdAt"`
}
