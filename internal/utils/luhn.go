package utils

// IsValidCard reports whether cardNumber passes the Luhn checksum.  All
// non-digit characters (spaces, dashes) are ignored.  The check only
// guards the shape of the number; no payment network is contacted.
func IsValidCard(cardNumber string) bool {
	digits := make([]int, 0, len(cardNumber))
	for _, r := range cardNumber {
		if r >= '0' && r <= '9' {
			digits = append(digits, int(r-'0'))
		}
	}
	if len(digits) == 0 {
		return false
	}

	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := digits[i]
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}
