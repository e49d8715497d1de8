package keygen

import (
	"strings"
	"testing"
)

func TestNewShape(t *testing.T) {
	key, err := New()
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if !strings.HasPrefix(key, Prefix) {
		t.Errorf("key %q missing prefix %q", key, Prefix)
	}
	if len(key) != Len {
		t.Errorf("key length = %d, want %d", len(key), Len)
	}
	if !WellFormed(key) {
		t.Errorf("generated key %q not well-formed", key)
	}
}

func TestNewUnique(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		key, err := New()
		if err != nil {
			t.Fatalf("New: %v", err)
		}
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate key after %d generations: %s", i, key)
		}
		seen[key] = struct{}{}
	}
}

func TestWellFormed(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{Prefix + strings.Repeat("ab", 32), true},
		{"", false},
		{Prefix, false},
		{Prefix + strings.Repeat("a", 63), false},
		{Prefix + strings.Repeat("g", 64), false}, // not hex
		{"bk_" + strings.Repeat("ab", 32), false},
	}
	for _, c := range cases {
		if got := WellFormed(c.in); got != c.want {
			t.Errorf("WellFormed(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}
