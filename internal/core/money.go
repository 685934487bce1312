// Package core provides money parsing and handling utilities.
//
// This file contains the cleaning rules applied to spreadsheet amounts such as
// "1 234,50 €" before they become decimals.
package core

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// CleanAmount strips currency symbols, currency codes and whitespace and
// normalizes the decimal separator to a period.
//
// When both separators are present the right-most one is the decimal mark and
// the other is dropped as a thousands separator. Cleaning an already clean
// string returns it unchanged.
//
// Examples:
//
//	CleanAmount("€ 12,50")    -> "12.50"
//	CleanAmount("1 234,56 €") -> "1234.56"
//	CleanAmount("1,234.56")   -> "1234.56"
//	CleanAmount("12.5")       -> "12.5"
//	CleanAmount("12,50 EUR")  -> "12.50"
//	CleanAmount("450 руб.")   -> "450"
func CleanAmount(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || unicode.IsLetter(r) || unicode.Is(unicode.Sc, r) {
			return -1
		}
		return r
	}, s)
	// abbreviations such as "руб." leave a dangling separator behind
	s = strings.TrimRight(s, ".,")

	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")
	switch {
	case lastComma >= 0 && lastDot >= 0 && lastComma > lastDot:
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0 && lastDot >= 0:
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ",") == 1:
		s = strings.Replace(s, ",", ".", 1)
	case lastComma >= 0:
		// 1,234,567 style grouping
		s = strings.ReplaceAll(s, ",", "")
	}
	return s
}

// ParseAmount cleans s and parses it as a decimal. ok is false for blank or
// unparseable input; callers decide the default.
func ParseAmount(s string) (d decimal.Decimal, ok bool) {
	cleaned := CleanAmount(s)
	if cleaned == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
