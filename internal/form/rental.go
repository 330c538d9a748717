package form

import "strings"

// RentalPolicy classifies a resolved plate as rented. The result is advisory
// UI state only.
type RentalPolicy func(plate string) bool

// DefaultRentalPolicy flags plates containing RENT, HIRE or TEMP in any case,
// or starting with an upper-case R.
func DefaultRentalPolicy(plate string) bool {
	upper := strings.ToUpper(plate)
	for _, marker := range []string{"RENT", "HIRE", "TEMP"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return strings.HasPrefix(plate, "R")
}
