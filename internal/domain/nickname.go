package domain

import (
	"fmt"
	"math/rand"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	nicknameAdjectives = []string{
		"Swift", "Brave", "Clever", "Mighty", "Silent", "Golden", "Shadow", "Thunder",
		"Cosmic", "Blazing", "Mystic", "Ancient", "Noble", "Wild", "Iron", "Storm",
		"Crystal", "Frost", "Crimson", "Emerald", "Royal", "Steel", "Lunar", "Solar",
	}
	nicknameNouns = []string{
		"Wolf", "Dragon", "Eagle", "Tiger", "Phoenix", "Bear", "Hawk", "Lion",
		"Falcon", "Panther", "Raven", "Viper", "Warrior", "Knight", "Hunter", "Samurai",
		"Ninja", "Guardian", "Champion", "Legend", "Hero", "Master", "Sage", "Wizard",
	}
)

// RandomNickname builds an Adjective+Noun+Number name such as "SwiftWolf42".
func RandomNickname(rng *rand.Rand) string {
	adj := nicknameAdjectives[rng.Intn(len(nicknameAdjectives))]
	noun := nicknameNouns[rng.Intn(len(nicknameNouns))]
	return fmt.Sprintf("%s%s%d", adj, noun, rng.Intn(999))
}

// NormalizeNickname returns name in NFC form with control characters removed
// and surrounding space trimmed. Length is left to clients. An empty result
// means the name is unusable.
func NormalizeNickname(name string) string {
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	return strings.TrimSpace(name)
}
