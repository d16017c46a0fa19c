package normalize

import (
	"strings"
	"time"
)

// Date formats accepted across reference tables and uploaded documents.
var dateFormats = []string{
	"2006-01-02",
	"02-01-2006",
	"2006/01/02",
	"02/01/2006",
	"2006.01.02",
}

// ParseDate attempts to parse a date string in multiple common formats.
// Only the first 10 characters are considered, which drops trailing time
// components. Returns nil if the input is empty or unparseable.
func ParseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if len(s) > 10 {
		s = s[:10]
	}
	for _, fmt := range dateFormats {
		if t, err := time.Parse(fmt, s); err == nil {
			return &t
		}
	}
	return nil
}
