// Package textnorm turns a raw phrase into the lowercase word tokens the
// dictionary is keyed by.
package textnorm

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\s\p{Z}]+`)

// Normalize expands the first date in phrase, case-folds it, strips
// punctuation and splits it into words. Date errors are returned alongside the
// tokens; they never stop normalization.
func Normalize(phrase string) ([]string, []error) {
	var errs []error
	expanded, err := ExpandDate(phrase)
	if err != nil {
		errs = append(errs, err)
	}
	// cases.Caser is stateful, so each call gets its own.
	folded := cases.Lower(language.English).String(norm.NFC.String(expanded))
	folded = nonWord.ReplaceAllString(folded, "")
	return strings.Fields(folded), errs
}

// Spell normalizes phrase and then breaks every token into single-character
// tokens, so each letter is read by name.
func Spell(phrase string) ([]string, []error) {
	tokens, errs := Normalize(phrase)
	var letters []string
	for _, tok := range tokens {
		for _, r := range tok {
			letters = append(letters, string(r))
		}
	}
	return letters, errs
}
