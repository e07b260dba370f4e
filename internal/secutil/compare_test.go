package secutil

import (
	"strings"
	"testing"
	"time"
)

func TestEqual_Basic(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"", "", true},
		{"a", "a", true},
		{"a", "b", false},
		{"a", "", false},
		{"", "a", false},
		{"token-value-1234", "token-value-1234", true},
		{"token-value-1234", "token-value-1235", false},
		// differing lengths with a shared prefix
		{"abcdef", "abcdefg", false},
	}
	for _, tc := range cases {
		if got := Equal(tc.a, tc.b); got != tc.want {
			t.Errorf("Equal(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestEqual_Symmetric(t *testing.T) {
	pairs := [][2]string{
		{"", "x"},
		{"abc", "abd"},
		{strings.Repeat("a", 100), strings.Repeat("a", 99) + "b"},
	}
	for _, p := range pairs {
		if Equal(p[0], p[1]) != Equal(p[1], p[0]) {
			t.Errorf("Equal(%q, %q) not symmetric", p[0], p[1])
		}
	}
	for _, s := range []string{"", "a", strings.Repeat("z", 512)} {
		if !Equal(s, s) {
			t.Errorf("Equal(%q, %q) = false, want true", s, s)
		}
	}
}

// Coarse timing sanity check: inputs differing at the first byte vs the last
// byte of a long string should not have wildly different comparison cost.
// The construction guarantees this (fixed-length digests, no early exit);
// this test only catches a gross regression, tolerating scheduler noise.
func TestEqual_NoPositionDependentCost(t *testing.T) {
	if testing.Short() {
		t.Skip("timing distribution check skipped in short mode")
	}

	base := strings.Repeat("a", 4096)
	earlyDiff := "b" + base[1:]
	lateDiff := base[:len(base)-1] + "b"

	measure := func(other string) time.Duration {
		const trials = 500
		start := time.Now()
		for i := 0; i < trials; i++ {
			Equal(base, other)
		}
		return time.Since(start)
	}

	// warm up
	measure(earlyDiff)

	early := measure(earlyDiff)
	late := measure(lateDiff)

	ratio := float64(early) / float64(late)
	if ratio < 0.2 || ratio > 5.0 {
		t.Fatalf("comparison cost varies with differing position: early=%v late=%v", early, late)
	}
}
