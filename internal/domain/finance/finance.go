// Package finance holds money arithmetic shared by invoices and purchase orders.
package finance

import (
	"fmt"
	"math"
	"time"

	"github.com/GustheTrader/Build-flow/internal/domain"
)

// DateLayout is the calendar date format used for issue, due and order dates.
const DateLayout = "2006-01-02"

// Round2 rounds to cents, half away from zero.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// LineTotal returns the rounded total of one line.
func LineTotal(quantity, unitPrice float64) float64 {
	return Round2(quantity * unitPrice)
}

// Totals is the subtotal/tax/total triple of a document.
type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Tax      float64 `json:"tax"`
	Total    float64 `json:"total"`
}

// ComputeTotals sums rounded line totals and applies a percentage tax rate.
func ComputeTotals(lineTotals []float64, taxRatePct float64) Totals {
	var sub float64
	for _, lt := range lineTotals {
		sub += lt
	}
	sub = Round2(sub)
	tax := Round2(sub * taxRatePct / 100)
	return Totals{Subtotal: sub, Tax: tax, Total: Round2(sub + tax)}
}

// ValidateDate checks a calendar date string. Empty is allowed when optional.
func ValidateDate(field, v string, optional bool) error {
	if v == "" {
		if optional {
			return nil
		}
		return fmt.Errorf("%s is required: %w", field, domain.ErrValidation)
	}
	if _, err := time.Parse(DateLayout, v); err != nil {
		return fmt.Errorf("%s must be YYYY-MM-DD: %w", field, domain.ErrValidation)
	}
	return nil
}

// ValidateLine checks quantity and unit price of one line item.
func ValidateLine(i int, description string, quantity, unitPrice float64) error {
	if description == "" {
		return fmt.Errorf("line %d: description is required: %w", i+1, domain.ErrValidation)
	}
	if quantity <= 0 {
		return fmt.Errorf("line %d: quantity must be positive: %w", i+1, domain.ErrValidation)
	}
	if unitPrice < 0 {
		return fmt.Errorf("line %d: unit price must not be negative: %w", i+1, domain.ErrValidation)
	}
	return nil
}
