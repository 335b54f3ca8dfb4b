package ledger

import "math"

// ToMinorUnits converts a decimal currency amount as reported by the
// aggregator into integer minor units, rounding to the nearest unit.
// Assumes two-decimal currencies; sub-cent currencies are not supported.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
