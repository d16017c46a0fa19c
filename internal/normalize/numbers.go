package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var firstInt = regexp.MustCompile(`[-+]?\d+`)

// ToInt coerces a loosely formatted count into an int. Thousands separators
// are stripped and the first integer substring wins. Anything that still
// fails to parse coerces to 0, which then participates in rule comparisons
// as-is rather than aborting the pipeline.
func ToInt(s string) int {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	m := firstInt.FindString(s)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0
	}
	return n
}
