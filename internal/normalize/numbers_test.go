package normalize

import "testing"

func TestToInt(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"42", 42},
		{" 42 ", 42},
		{"1,234", 1234},
		{"-17", -17},
		{"+8", 8},
		{"28 services", 28},
		{"abc", 0},
		{"", 0},
		{"N/A", 0},
	}
	for _, c := range cases {
		if got := ToInt(c.in); got != c.want {
			t.Errorf("ToInt(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}
