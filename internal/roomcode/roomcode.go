// Package roomcode generates memorable room codes such as
// "otter-ramen-maple" for clients that create a room without naming it.
package roomcode

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// DefaultWords is the number of words in a generated code.
const DefaultWords = 3

var pools = [][]string{animals, dishes, names, randomWords, adjectives, extras}

// Generate returns a code of DefaultWords words joined by hyphens.
func Generate() string {
	return GenerateN(DefaultWords)
}

// GenerateN returns a code of n words, each taken from a different word
// list. n is clamped to [1, number of lists].
func GenerateN(n int) string {
	if n < 1 {
		n = 1
	}
	if n > len(pools) {
		n = len(pools)
	}

	order := make([]int, len(pools))
	for i := range order {
		order[i] = i
	}
	// Fisher-Yates so each list is used at most once
	for i := len(order) - 1; i > 0; i-- {
		j := randomIndex(i + 1)
		order[i], order[j] = order[j], order[i]
	}

	words := make([]string, n)
	for i := 0; i < n; i++ {
		pool := pools[order[i]]
		words[i] = pool[randomIndex(len(pool))]
	}
	return strings.Join(words, "-")
}

// Unused returns the first generated code for which taken reports false,
// giving up after attempts tries.
func Unused(taken func(string) bool, attempts int) (string, bool) {
	for i := 0; i < attempts; i++ {
		code := Generate()
		if !taken(code) {
			return code, true
		}
	}
	return "", false
}

func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic("roomcode: crypto/rand failed: " + err.Error())
	}
	return int(n.Int64())
}
