package phonetic

import (
	"strings"
	"testing"

	"github.com/loqalabs/loqa-diphone/internal/lexicon"
)

var fixture = lexicon.Map{
	"cat":  {{"K", "AE1", "T"}},
	"read": {{"R", "EH1", "D"}, {"R", "IY1", "D"}},
	"a":    {{"AH0"}, {"EY1"}},
}

func TestTranscribeFlattensInOrder(t *testing.T) {
	phones, unresolved := Transcribe(fixture, []string{"a", "cat", "read"})
	if len(unresolved) != 0 {
		t.Fatalf("unexpected unresolved: %v", unresolved)
	}
	want := "ah k ae t r eh d"
	if got := strings.Join(phones, " "); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTranscribeReportsUnknown(t *testing.T) {
	phones, unresolved := Transcribe(fixture, []string{"zzyzx", "cat", "qwerty"})
	if len(unresolved) != 2 || unresolved[0].Word != "zzyzx" || unresolved[1].Word != "qwerty" {
		t.Fatalf("unexpected unresolved: %v", unresolved)
	}
	if len(phones) != 3 {
		t.Fatalf("expected cat phones only, got %v", phones)
	}
}

func TestTranscribeNothingResolves(t *testing.T) {
	phones, unresolved := Transcribe(fixture, []string{"nope"})
	if len(phones) != 0 {
		t.Fatalf("expected empty sequence, got %v", phones)
	}
	if len(unresolved) != 1 {
		t.Fatalf("expected one unresolved token, got %v", unresolved)
	}
}

func TestNormalizePhone(t *testing.T) {
	for in, want := range map[string]string{"AE1": "ae", "ER0": "er", "k": "k", "AH12": "ah"} {
		if got := NormalizePhone(in); got != want {
			t.Errorf("%s: expected %q, got %q", in, want, got)
		}
	}
}
