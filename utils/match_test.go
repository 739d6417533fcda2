package utils

import "testing"

func TestMatchAction(t *testing.T) {
	cases := []struct {
		action  string
		pattern string
		want    bool
	}{
		{"read", "read", true},
		{"read", "write", false},
		{"read", "*", true},
		{"doc.read", "doc.*", true},
		{"doc.share.link", "doc.*", true},
		{"document.read", "doc.*", false},
		{"doc", "doc.*", false},
		{"", "*", true},
		{"", "read", false},
	}
	for _, c := range cases {
		if got := MatchAction(c.action, c.pattern); got != c.want {
			t.Fatalf("MatchAction(%q, %q) = %v, want %v", c.action, c.pattern, got, c.want)
		}
	}
}
