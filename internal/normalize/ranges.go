package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var numberToken = regexp.MustCompile(`[\d.]+`)

// InRange reports whether a lab result string falls inside its stated
// normal range. The result is the first numeric token in resultStr (units
// are ignored). Supported range syntax: "low–high" or "low-high" bounds
// (inclusive), ">x", "<x", or a single exact value. Any parse failure,
// including a bounds expression without exactly two numbers, returns false.
func InRange(resultStr, rangeStr string) bool {
	result, ok := firstFloat(resultStr)
	if !ok {
		return false
	}

	nums, ok := allFloats(rangeStr)
	if !ok {
		return false
	}

	switch {
	case strings.Contains(rangeStr, "–") || strings.Contains(rangeStr, "-"):
		if len(nums) != 2 {
			return false
		}
		return nums[0] <= result && result <= nums[1]
	case strings.Contains(rangeStr, ">"):
		if len(nums) == 0 {
			return false
		}
		return result > nums[0]
	case strings.Contains(rangeStr, "<"):
		if len(nums) == 0 {
			return false
		}
		return result < nums[0]
	case len(nums) == 1:
		return result == nums[0]
	default:
		return false
	}
}

func firstFloat(s string) (float64, bool) {
	m := numberToken.FindString(s)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func allFloats(s string) ([]float64, bool) {
	tokens := numberToken.FindAllString(s, -1)
	nums := make([]float64, 0, len(tokens))
	for _, tok := range tokens {
		v, err := strconv.ParseFloat(tok, 64)
		if err != nil {
			return nil, false
		}
		nums = append(nums, v)
	}
	return nums, true
}
