package domain

import (
	"fmt"
	"math"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NationalAverage is the baseline index value.
const NationalAverage = 100.0

// Placeholder is rendered in place of absent values.
const Placeholder = "N/A"

var printer = message.NewPrinter(language.AmericanEnglish)

// FormatIndex renders an index with one decimal place.
func FormatIndex(v *float64) string {
	if v == nil {
		return Placeholder
	}
	return fmt.Sprintf("%.1f", *v)
}

// RPPDiff describes an index relative to the national average,
// e.g. "+12.3% vs national avg".
func RPPDiff(v float64) string {
	diff := v - NationalAverage
	if diff == 0 {
		return "at national average"
	}
	sign := ""
	if diff > 0 {
		sign = "+"
	}
	return fmt.Sprintf("%s%.1f%% vs national avg", sign, diff)
}

// RPPDiffOf is RPPDiff for an optional value; absent renders as "".
func RPPDiffOf(v *float64) string {
	if v == nil {
		return ""
	}
	return RPPDiff(*v)
}

// FormatNumber renders an integer with thousands separators.
func FormatNumber(n *int64) string {
	if n == nil {
		return Placeholder
	}
	return printer.Sprintf("%d", *n)
}

// FormatMoney renders a dollar amount rounded to whole dollars, e.g. "$86,364".
func FormatMoney(amount *float64) string {
	if amount == nil {
		return Placeholder
	}
	return "$" + printer.Sprintf("%d", int64(math.Round(*amount)))
}

// SalaryEquivalent converts a salary earned where the index is fromRPP into the
// salary with the same purchasing power where the index is toRPP. A
// non-positive fromRPP yields 0.
func SalaryEquivalent(salary, fromRPP, toRPP float64) int64 {
	if fromRPP <= 0 {
		return 0
	}
	return int64(math.Round(salary * (toRPP / fromRPP)))
}
