package market

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	trillion = decimal.New(1, 12)
	billion  = decimal.New(1, 9)
	million  = decimal.New(1, 6)
)

// FormatNumber renders a USD amount with a T/B/M suffix above one million.
func FormatNumber(v decimal.Decimal) string {
	switch {
	case v.IsZero():
		return "$0.00"
	case v.GreaterThanOrEqual(trillion):
		return "$" + v.Div(trillion).StringFixed(2) + "T"
	case v.GreaterThanOrEqual(billion):
		return "$" + v.Div(billion).StringFixed(2) + "B"
	case v.GreaterThanOrEqual(million):
		return "$" + v.Div(million).StringFixed(2) + "M"
	default:
		return "$" + v.StringFixed(2)
	}
}

// FormatPercentage renders a change with an explicit plus sign for gains.
func FormatPercentage(v float64) string {
	if v == 0 {
		return "0.00%"
	}
	if v > 0 {
		return fmt.Sprintf("+%.2f%%", v)
	}
	return fmt.Sprintf("%.2f%%", v)
}
