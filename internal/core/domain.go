package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// UnknownTeam is the name reported for operations without a team.
const UnknownTeam = "Unknown"

func init() {
	// Amounts travel as JSON numbers, not quoted strings.
	decimal.MarshalJSONWithoutQuotes = true
}

type (
	// Operation is one invoiced job with its costs and profit.
	Operation struct {
		ID            string              `json:"id"`
		InvoiceNumber string              `json:"invoiceNumber"`
		Team          *string             `json:"team"`
		Members       string              `json:"members"`
		Date          time.Time           `json:"date"`
		Revenue       decimal.Decimal     `json:"revenue"`
		MaterialCost  decimal.NullDecimal `json:"materialCost"`
		FuelCost      decimal.Decimal     `json:"fuelCost"`
		Profit        decimal.Decimal     `json:"profit"`
		IsPaid        bool                `json:"isPaid"`
		CreatedAt     time.Time           `json:"createdAt"`
	}

	// ValidationError reports a single rejected input field.
	ValidationError struct {
		Field   string
		Message string
	}
)

var (
	ErrMissingInvoiceNumber = errors.New("missing invoice number")
	ErrMissingDate          = errors.New("missing date")
	ErrInvalidPeriod        = errors.New("invalid period")
	ErrNotFound             = errors.New("not found")
)

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("Invalid %s", e.Field)
}

// NewValidationError builds the "Invalid <field>" error used at the HTTP boundary.
func NewValidationError(field string) *ValidationError {
	return &ValidationError{Field: field, Message: "Invalid " + field}
}

// Validate checks the invariants every stored operation must satisfy.
func (o Operation) Validate() error {
	if strings.TrimSpace(o.InvoiceNumber) == "" {
		return ErrMissingInvoiceNumber
	}
	if o.Date.IsZero() {
		return ErrMissingDate
	}
	return nil
}

// TeamName returns the grouping key used by the dashboard.
func (o Operation) TeamName() string {
	if o.Team == nil || strings.TrimSpace(*o.Team) == "" {
		return UnknownTeam
	}
	return *o.Team
}

// Expenses is fuel plus material cost, absent material counting as zero.
func (o Operation) Expenses() decimal.Decimal {
	if o.MaterialCost.Valid {
		return o.FuelCost.Add(o.MaterialCost.Decimal)
	}
	return o.FuelCost
}

// TeamPtr normalizes a team name: blank becomes nil.
func TeamPtr(team string) *string {
	team = strings.TrimSpace(team)
	if team == "" {
		return nil
	}
	return &team
}
