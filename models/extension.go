package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ExtensionStatus string

const (
	ExtensionPending  ExtensionStatus = "PENDING"
	ExtensionApproved ExtensionStatus = "APPROVED"
	ExtensionRejected ExtensionStatus = "REJECTED"
)

// LoanExtension is a request to move a loan's due date forward.
type LoanExtension struct {
	ID             primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	LoanID         primitive.ObjectID  `bson:"loanId" json:"loanId"`
	RequestedBy    primitive.ObjectID  `bson:"requestedBy" json:"requestedBy"`
	CurrentDueDate time.Time           `bson:"currentDueDate" json:"currentDueDate"`
	NewDueDate     time.Time           `bson:"newDueDate" json:"newDueDate"`
	ExtensionDays  int                 `bson:"extensionDays" json:"extensionDays"`
	Reason         string              `bson:"reason,omitempty" json:"reason,omitempty"`
	Status         ExtensionStatus     `bson:"status" json:"status"`
	ReviewedBy     *primitive.ObjectID `bson:"reviewedBy,omitempty" json:"reviewedBy,omitempty"`
	ReviewedAt     *time.Time          `bson:"reviewedAt,omitempty" json:"reviewedAt,omitempty"`
	ReviewNote     string              `bson:"reviewNote,omitempty" json:"reviewNote,omitempty"`
	CreatedAt      time.Time           `bson:"createdAt" json:"createdAt"`
}
