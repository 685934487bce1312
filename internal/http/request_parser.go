// Package http provides the JSON API server and its handlers.
//
// This file validates the loosely typed create payload into a
// core.Operation, field by field, so every rejection names its field.

package http

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"teamledger/internal/core"
)

const invalidDateMessage = "Invalid date (expecting ISO string)"

var errInvalidJSONBody = &core.ValidationError{Field: "body", Message: "Invalid JSON body"}

// rawBody keeps every field undecoded until its type has been checked.
type rawBody map[string]json.RawMessage

// ParseCreateOperation validates a POST /operations body.
func ParseCreateOperation(body []byte) (core.Operation, error) {
	var raw rawBody
	if len(bytes.TrimSpace(body)) == 0 || json.Unmarshal(body, &raw) != nil {
		return core.Operation{}, errInvalidJSONBody
	}

	var op core.Operation
	var ok bool

	if op.InvoiceNumber, ok = raw.nonBlankString("invoiceNumber"); !ok {
		return core.Operation{}, core.NewValidationError("invoiceNumber")
	}
	if op.Members, ok = raw.nonBlankString("members"); !ok {
		return core.Operation{}, core.NewValidationError("members")
	}

	dateStr, ok := raw.nonBlankString("date")
	if !ok {
		return core.Operation{}, &core.ValidationError{Field: "date", Message: invalidDateMessage}
	}
	date, _, err := core.ParseDate(strings.TrimSpace(dateStr))
	if err != nil {
		return core.Operation{}, &core.ValidationError{Field: "date", Message: invalidDateMessage}
	}
	op.Date = date

	for _, f := range []struct {
		name string
		dst  *decimal.Decimal
	}{
		{"revenue", &op.Revenue},
		{"fuelCost", &op.FuelCost},
		{"profit", &op.Profit},
	} {
		if *f.dst, ok = raw.number(f.name); !ok {
			return core.Operation{}, core.NewValidationError(f.name)
		}
	}

	if v, present := raw.value("team"); present {
		var team string
		if json.Unmarshal(v, &team) != nil {
			return core.Operation{}, core.NewValidationError("team")
		}
		op.Team = core.TeamPtr(team)
	}

	if v, present := raw.value("materialCost"); present {
		d, ok := parseNumber(v)
		if !ok {
			return core.Operation{}, core.NewValidationError("materialCost")
		}
		op.MaterialCost = decimal.NewNullDecimal(d)
	}

	if v, present := raw.value("isPaid"); present {
		var paid bool
		if json.Unmarshal(v, &paid) == nil {
			op.IsPaid = paid
		}
	}

	return op, nil
}

// value returns the field unless it is absent or JSON null.
func (b rawBody) value(key string) (json.RawMessage, bool) {
	v, ok := b[key]
	if !ok {
		return nil, false
	}
	v = bytes.TrimSpace(v)
	if len(v) == 0 || bytes.Equal(v, []byte("null")) {
		return nil, false
	}
	return v, true
}

func (b rawBody) nonBlankString(key string) (string, bool) {
	v, ok := b.value(key)
	if !ok {
		return "", false
	}
	var s string
	if json.Unmarshal(v, &s) != nil || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

func (b rawBody) number(key string) (decimal.Decimal, bool) {
	v, ok := b.value(key)
	if !ok {
		return decimal.Decimal{}, false
	}
	return parseNumber(v)
}

// parseNumber accepts JSON number literals only; quoted numbers are rejected.
func parseNumber(v json.RawMessage) (decimal.Decimal, bool) {
	if len(v) == 0 {
		return decimal.Decimal{}, false
	}
	if c := v[0]; c != '-' && (c < '0' || c > '9') {
		return decimal.Decimal{}, false
	}
	d, err := decimal.NewFromString(string(v))
	if err != nil {
		return decimal.Decimal{}, false
	}
	return d, true
}

// ParseDashboardQuery reads startDate and endDate from the query string.
func ParseDashboardQuery(query url.Values) (core.Period, error) {
	return core.ParsePeriod(query.Get("startDate"), query.Get("endDate"))
}
