package service

import (
	"time"

	"github.com/kevinaaaquil/unilib/models"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const day = 24 * time.Hour

var hundred = decimal.NewFromInt(100)

// LateDays is the number of started days between due and at. Zero when at is not past due.
func LateDays(due, at time.Time) int {
	if !at.After(due) {
		return 0
	}
	return int((at.Sub(due) + day - 1) / day)
}

type FeeInput struct {
	BookID        primitive.ObjectID
	Qty           int
	Condition     models.ItemCondition
	DamagePercent int
	OtherFee      int64
	UnitPrice     int64
	Notes         string
}

type FeeBreakdown struct {
	LateDays int
	Items    []models.ReturnItem
	Total    int64
}

// ComputeReturnFees prices one return visit. Every item shares the same late days.
// Damage is charged on the unit price of the book.
func ComputeReturnFees(policy models.FinePolicy, due, returnedAt time.Time, items []FeeInput) FeeBreakdown {
	late := LateDays(due, returnedAt)
	out := FeeBreakdown{LateDays: late, Items: make([]models.ReturnItem, 0, len(items))}
	lateFeePerDay := decimal.NewFromInt(policy.LateFeePerDay)
	damageRate := decimal.NewFromFloat(policy.DamageFeeRate)

	for _, in := range items {
		qty := decimal.NewFromInt(int64(in.Qty))
		lateFee := decimal.NewFromInt(int64(late)).Mul(lateFeePerDay).Mul(qty)
		damageFee := decimal.Zero
		if in.Condition == models.ConditionDamaged {
			damageFee = decimal.NewFromInt(int64(in.DamagePercent)).Div(hundred).
				Mul(damageRate).
				Mul(decimal.NewFromInt(in.UnitPrice)).
				Mul(qty)
		}
		other := in.OtherFee
		if other < 0 {
			other = 0
		}
		item := models.ReturnItem{
			BookID:        in.BookID,
			Qty:           in.Qty,
			Condition:     in.Condition,
			DamagePercent: in.DamagePercent,
			LateDays:      late,
			LateFee:       lateFee.Round(0).IntPart(),
			DamageFee:     damageFee.Round(0).IntPart(),
			OtherFee:      other,
			Notes:         in.Notes,
		}
		item.TotalFee = item.LateFee + item.DamageFee + item.OtherFee
		out.Total += item.TotalFee
		out.Items = append(out.Items, item)
	}
	return out
}

// LossFineAmount is round(price × lostBookFeeRate) per copy.
func LossFineAmount(policy models.FinePolicy, price int64, qty int) int64 {
	unit := decimal.NewFromInt(price).Mul(decimal.NewFromFloat(policy.LostBookFeeRate)).Round(0)
	return unit.Mul(decimal.NewFromInt(int64(qty))).IntPart()
}

// DamageFineAmount is round(price × damageFeeRate × level/100) per copy.
func DamageFineAmount(policy models.FinePolicy, price int64, level, qty int) int64 {
	unit := decimal.NewFromInt(price).
		Mul(decimal.NewFromFloat(policy.DamageFeeRate)).
		Mul(decimal.NewFromInt(int64(level))).
		Div(hundred).
		Round(0)
	return unit.Mul(decimal.NewFromInt(int64(qty))).IntPart()
}

// LateFineAmount charges only the overdue days not billed by an earlier partial return.
func LateFineAmount(policy models.FinePolicy, overdueDays, alreadyCharged int) int64 {
	if overdueDays <= alreadyCharged {
		return 0
	}
	return int64(overdueDays-alreadyCharged) * policy.LateFeePerDay
}
