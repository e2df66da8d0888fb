package synth

import (
	"encoding/json"
	"errors"

	"github.com/loqalabs/loqa-diphone/internal/phonetic"
	"github.com/loqalabs/loqa-diphone/internal/textnorm"
	"github.com/loqalabs/loqa-diphone/internal/unitstore"
)

// Diagnostics lists everything a request recovered from.
type Diagnostics struct {
	DateErrors       []*textnorm.DateParseError
	UnresolvedTokens []string
	MissingUnits     []*unitstore.MissingUnitError
}

// Clean reports whether nothing had to be skipped.
func (d Diagnostics) Clean() bool {
	return len(d.DateErrors) == 0 && len(d.UnresolvedTokens) == 0 && len(d.MissingUnits) == 0
}

// DateMessages renders the date errors as strings.
func (d Diagnostics) DateMessages() []string {
	out := make([]string, 0, len(d.DateErrors))
	for _, e := range d.DateErrors {
		out = append(out, e.Error())
	}
	return out
}

// MissingIDs renders the missing diphones as "front-back" strings, in order.
func (d Diagnostics) MissingIDs() []string {
	out := make([]string, 0, len(d.MissingUnits))
	for _, m := range d.MissingUnits {
		out = append(out, m.ID.String())
	}
	return out
}

// Errors joins every recovered problem into one error, or nil when clean.
func (d Diagnostics) Errors() error {
	var errs []error
	for _, e := range d.DateErrors {
		errs = append(errs, e)
	}
	for _, w := range d.UnresolvedTokens {
		errs = append(errs, &phonetic.UnresolvedWordError{Word: w})
	}
	for _, m := range d.MissingUnits {
		errs = append(errs, m)
	}
	return errors.Join(errs...)
}

func (d Diagnostics) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DateErrors       []string `json:"date_errors,omitempty"`
		UnresolvedTokens []string `json:"unresolved_tokens,omitempty"`
		MissingUnits     []string `json:"missing_units,omitempty"`
	}{
		DateErrors:       d.DateMessages(),
		UnresolvedTokens: d.UnresolvedTokens,
		MissingUnits:     d.MissingIDs(),
	})
}
