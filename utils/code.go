package utils

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NewLoanCode returns a human readable loan code such as LN-20240131-9F3A1C.
func NewLoanCode(at time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:6]
	return "LN-" + at.UTC().Format("20060102") + "-" + suffix
}
