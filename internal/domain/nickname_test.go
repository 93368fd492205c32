package domain

import (
	"math/rand"
	"regexp"
	"strings"
	"testing"
)

func TestRandomNickname(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	pattern := regexp.MustCompile(`^[A-Z][a-z]+[A-Z][a-z]+\d{1,3}$`)

	for i := 0; i < 200; i++ {
		name := RandomNickname(rng)
		if !pattern.MatchString(name) {
			t.Fatalf("unexpected nickname shape %q", name)
		}
	}
}

func TestRandomNickname_Deterministic(t *testing.T) {
	a := RandomNickname(rand.New(rand.NewSource(42)))
	b := RandomNickname(rand.New(rand.NewSource(42)))
	if a != b {
		t.Fatalf("same seed produced %q and %q", a, b)
	}
}

func TestNormalizeNickname(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "trims space", in: "  Ann  ", want: "Ann"},
		{name: "drops control chars", in: "B\x00o\n", want: "Bo"},
		{name: "composes to NFC", in: "Jose\u0301", want: "Jos\u00e9"},
		{name: "blank stays blank", in: " \t ", want: ""},
		{name: "keeps long names", in: strings.Repeat("x", 64), want: strings.Repeat("x", 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeNickname(tt.in); got != tt.want {
				t.Fatalf("NormalizeNickname(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
