package synth

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-diphone/internal/diphone"
	"github.com/loqalabs/loqa-diphone/internal/textnorm"
	"github.com/loqalabs/loqa-diphone/internal/unitstore"
)

func TestDiagnosticsErrorsKeepEveryMissingUnit(t *testing.T) {
	d := Diagnostics{
		MissingUnits: []*unitstore.MissingUnitError{
			{ID: diphone.ID{Front: "ae", Back: "t"}},
			{ID: diphone.ID{Front: "x-y", Back: "z"}},
			{ID: diphone.ID{Front: "", Back: "pau"}},
		},
	}
	joined := d.Errors()
	if joined == nil {
		t.Fatalf("expected joined error")
	}
	unwrapped, ok := joined.(interface{ Unwrap() []error })
	if !ok {
		t.Fatalf("expected errors.Join result, got %T", joined)
	}
	if got := len(unwrapped.Unwrap()); got != 3 {
		t.Fatalf("expected 3 joined errors, got %d", got)
	}
	var missing *unitstore.MissingUnitError
	if !errors.As(joined, &missing) || missing.ID.Back != "t" {
		t.Fatalf("expected first missing unit to be ae-t, got %v", missing)
	}
	if got := strings.Join(d.MissingIDs(), ","); got != "ae-t,x-y-z,-pau" {
		t.Fatalf("unexpected rendered IDs %q", got)
	}
}

func TestDiagnosticsJSON(t *testing.T) {
	d := Diagnostics{
		DateErrors:       []*textnorm.DateParseError{{Text: "32/01", Reason: "day 32 out of range 1-31"}},
		UnresolvedTokens: []string{"xyzzy"},
		MissingUnits:     []*unitstore.MissingUnitError{{ID: diphone.ID{Front: "k", Back: "ae"}}},
	}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var out map[string][]string
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(out["missing_units"]) != 1 || out["missing_units"][0] != "k-ae" {
		t.Fatalf("unexpected missing_units %v", out["missing_units"])
	}
	if len(out["unresolved_tokens"]) != 1 || len(out["date_errors"]) != 1 {
		t.Fatalf("unexpected json %s", data)
	}
}
