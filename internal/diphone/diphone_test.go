package diphone

import (
	"strings"
	"testing"
)

func TestSequenceEmpty(t *testing.T) {
	if ids := Sequence(nil); len(ids) != 0 {
		t.Fatalf("expected no units, got %v", ids)
	}
	if ids := Sequence([]string{}); len(ids) != 0 {
		t.Fatalf("expected no units, got %v", ids)
	}
}

func TestSequenceBracketsWithSilence(t *testing.T) {
	ids := Sequence([]string{"k", "æ", "t"})
	want := "pau-k k-æ æ-t t-pau"
	if got := strings.Join(Strings(ids), " "); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSequenceSinglePhone(t *testing.T) {
	ids := Sequence([]string{"ah"})
	if got := strings.Join(Strings(ids), " "); got != "pau-ah ah-pau" {
		t.Fatalf("unexpected sequence %q", got)
	}
}

func TestParse(t *testing.T) {
	id, ok := Parse("k-ae")
	if !ok || id.Front != "k" || id.Back != "ae" {
		t.Fatalf("unexpected parse result %+v %v", id, ok)
	}
	if id.Filename() != "k-ae.wav" {
		t.Fatalf("unexpected filename %q", id.Filename())
	}
	for _, bad := range []string{"kae", "-ae", "k-", "a-b-c"} {
		if _, ok := Parse(bad); ok {
			t.Errorf("%q: expected parse failure", bad)
		}
	}
}
