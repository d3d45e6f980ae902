package extract

import (
	"regexp"
	"strconv"
	"strings"
)

var numericRE = regexp.MustCompile(`\d+[.,]?\d*`)

// ParseNumeric returns the first numeric literal embedded in s. Both "." and
// "," are accepted as the decimal separator. ok is false when s holds no
// digits; callers leave the entity value absent in that case.
func ParseNumeric(s string) (float64, bool) {
	m := numericRE.FindString(s)
	if m == "" {
		return 0, false
	}
	m = strings.TrimRight(strings.ReplaceAll(m, ",", "."), ".")
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
