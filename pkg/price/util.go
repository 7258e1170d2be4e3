package price

import "strconv"

// parsePositiveFloat parses s as a float and reports ok=false if it does
// not parse or is not strictly positive, matching spec §4.1's "a tick
// whose parsed price is not strictly positive is dropped".
func parsePositiveFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}
