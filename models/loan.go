package models

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type LoanStatus string

const (
	LoanPending       LoanStatus = "PENDING"
	LoanBorrowed      LoanStatus = "BORROWED"
	LoanPartialReturn LoanStatus = "PARTIAL_RETURN"
	LoanReturned      LoanStatus = "RETURNED"
	LoanCancelled     LoanStatus = "CANCELLED"
	// LoanOverdue is never stored. It is accepted as a list filter and
	// resolves to an active loan whose due date has passed.
	LoanOverdue LoanStatus = "OVERDUE"
)

// IsActive reports whether books are out with the reader.
func (s LoanStatus) IsActive() bool {
	return s == LoanBorrowed || s == LoanPartialReturn
}

var ActiveLoanStatuses = []LoanStatus{LoanBorrowed, LoanPartialReturn}

type ItemCondition string

const (
	ConditionGood    ItemCondition = "GOOD"
	ConditionDamaged ItemCondition = "DAMAGED"
	ConditionLost    ItemCondition = "LOST"
)

var ValidConditions = []ItemCondition{ConditionGood, ConditionDamaged, ConditionLost}

type LoanItem struct {
	BookID      primitive.ObjectID `bson:"bookId" json:"bookId"`
	Qty         int                `bson:"qty" json:"qty"`
	ReturnedQty int                `bson:"returnedQty" json:"returnedQty"`
	Condition   ItemCondition      `bson:"condition,omitempty" json:"condition,omitempty"`
	DamageLevel int                `bson:"damageLevel,omitempty" json:"damageLevel,omitempty"`
	ReturnNotes string             `bson:"returnNotes,omitempty" json:"returnNotes,omitempty"`
}

// Outstanding is the number of copies of this item still with the reader.
func (it LoanItem) Outstanding() int {
	return it.Qty - it.ReturnedQty
}

type Loan struct {
	ID                  primitive.ObjectID  `bson:"_id,omitempty" json:"id"`
	Code                string              `bson:"code" json:"code"`
	ReaderUserID        primitive.ObjectID  `bson:"readerUserId" json:"readerUserId"`
	LibrarianID         *primitive.ObjectID `bson:"librarianId,omitempty" json:"librarianId,omitempty"`
	CreatedByRole       Role                `bson:"createdByRole" json:"createdByRole"`
	LoanDate            *time.Time          `bson:"loanDate,omitempty" json:"loanDate,omitempty"`
	DueDate             time.Time           `bson:"dueDate" json:"dueDate"`
	ReturnDate          *time.Time          `bson:"returnDate,omitempty" json:"returnDate,omitempty"`
	Items               []LoanItem          `bson:"items" json:"items"`
	Status              LoanStatus          `bson:"status" json:"status"`
	Notes               string              `bson:"notes,omitempty" json:"notes,omitempty"`
	RejectReason        string              `bson:"rejectReason,omitempty" json:"rejectReason,omitempty"`
	LateDaysCharged     int                 `bson:"lateDaysCharged" json:"lateDaysCharged"`
	LastOverdueNoticeAt *time.Time          `bson:"lastOverdueNoticeAt,omitempty" json:"-"`
	LastDueSoonNoticeAt *time.Time          `bson:"lastDueSoonNoticeAt,omitempty" json:"-"`
	Version             int64               `bson:"version" json:"version"`
	CreatedAt           time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt           time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// IsOverdue is derived at read time and never persisted.
func (l *Loan) IsOverdue(now time.Time) bool {
	return l.Status.IsActive() && l.DueDate.Before(now)
}

// ItemFor returns the index of the item for bookID, or -1.
func (l *Loan) ItemFor(bookID primitive.ObjectID) int {
	for i := range l.Items {
		if l.Items[i].BookID == bookID {
			return i
		}
	}
	return -1
}

// FullyReturned reports whether every borrowed copy is back.
func (l *Loan) FullyReturned() bool {
	for _, it := range l.Items {
		if it.ReturnedQty < it.Qty {
			return false
		}
	}
	return true
}

// MarshalJSON adds the derived isOverdue flag.
func (l Loan) MarshalJSON() ([]byte, error) {
	type plain Loan
	return json.Marshal(struct {
		plain
		IsOverdue bool `json:"isOverdue"`
	}{plain: plain(l), IsOverdue: l.IsOverdue(time.Now())})
}

// LoanFilter narrows loan listings. Status LoanOverdue selects active loans past due.
type LoanFilter struct {
	ReaderUserID *primitive.ObjectID
	Status       LoanStatus
	Now          time.Time
	Page         int
	Limit        int
}
