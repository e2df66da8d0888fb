// Package phonetic maps normalized words to a flat phone sequence.
package phonetic

import (
	"fmt"
	"strings"

	"github.com/loqalabs/loqa-diphone/internal/lexicon"
)

// Sequence is an ordered run of lowercase phoneme symbols without stress marks.
type Sequence []string

// UnresolvedWordError names a token the dictionary has no pronunciation for.
type UnresolvedWordError struct {
	Word string
}

func (e *UnresolvedWordError) Error() string {
	return fmt.Sprintf("no pronunciation for %q", e.Word)
}

// Transcribe looks every token up in dict and concatenates the first
// pronunciation of each. Unknown tokens are skipped and returned so the caller
// can report them. An empty sequence is a valid result.
func Transcribe(dict lexicon.Dictionary, tokens []string) (Sequence, []*UnresolvedWordError) {
	var (
		phones     Sequence
		unresolved []*UnresolvedWordError
	)
	for _, tok := range tokens {
		prons := dict.Lookup(tok)
		if len(prons) == 0 || len(prons[0]) == 0 {
			unresolved = append(unresolved, &UnresolvedWordError{Word: tok})
			continue
		}
		for _, ph := range prons[0] {
			phones = append(phones, NormalizePhone(ph))
		}
	}
	return phones, unresolved
}

// NormalizePhone lowercases a phoneme and drops trailing stress digits
// ("AE1" -> "ae").
func NormalizePhone(ph string) string {
	return strings.TrimRight(strings.ToLower(ph), "0123456789")
}
