package unitstore

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/loqalabs/loqa-diphone/internal/audio"
	"github.com/loqalabs/loqa-diphone/internal/diphone"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeUnit(t *testing.T, dir, name string, samples []float64) {
	t.Helper()
	writeUnitAt(t, dir, name, 16000, samples)
}

func writeUnitAt(t *testing.T, dir, name string, rate int, samples []float64) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := audio.EncodeWAV(f, &audio.Buffer{SampleRate: rate, Samples: samples}); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func TestLoadAndResolve(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeUnit(t, dir, "pau-k.wav", []float64{0.1, 0.2})
	writeUnit(t, dir, "K-AE.WAV", []float64{0.3})
	writeUnit(t, sub, "t-pau.wav", []float64{0.4, 0.5, 0.6})
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "ae-t.wav"), []byte("garbage"), 0o644); err != nil {
		t.Fatal(err)
	}

	store, err := Load(dir, Options{SampleRate: 16000, Logger: newLogger()})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if store.Len() != 3 {
		t.Fatalf("expected 3 units, got %d", store.Len())
	}
	if len(store.Skipped()) != 1 {
		t.Fatalf("expected the corrupt file to be skipped, got %v", store.Skipped())
	}

	ids := diphone.Sequence([]string{"k", "ae", "t"})
	resolved := store.Resolve(ids)
	if len(resolved) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(resolved))
	}
	units, missing := Units(resolved)
	if len(missing) != 1 || missing[0].ID.String() != "ae-t" {
		t.Fatalf("expected ae-t missing, got %v", missing)
	}
	if units[2] != nil {
		t.Fatalf("expected nil unit for missing diphone")
	}
	if units[1].Len() != 1 {
		t.Fatalf("expected upper-case file registered as k-ae")
	}
}

func TestLoadMissingDirectory(t *testing.T) {
	store, err := Load(filepath.Join(t.TempDir(), "absent"), Options{Logger: newLogger()})
	if err != nil {
		t.Fatalf("expected no error for absent directory, got %v", err)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store")
	}
	for _, r := range store.Resolve(diphone.Sequence([]string{"k"})) {
		if !r.Missing() {
			t.Fatalf("expected every lookup to be missing")
		}
	}
}

func TestFromUnits(t *testing.T) {
	store := FromUnits(16000, audio.NewUnit("pau-k", 16000, []float64{1}))
	if _, ok := store.Lookup(diphone.ID{Front: "pau", Back: "k"}); !ok {
		t.Fatalf("expected unit to resolve")
	}
}

func TestLoadResamplesForeignRates(t *testing.T) {
	cases := []struct {
		name string
		rate int
		in   int
		want int
	}{
		{"k-ae.wav", 44100, 2205, 800},
		{"ae-t.wav", 44100, 441, 160},
		{"t-pau.wav", 8000, 400, 800},
		{"pau-k.wav", 16000, 300, 300},
	}
	dir := t.TempDir()
	for _, tc := range cases {
		writeUnitAt(t, dir, tc.name, tc.rate, filled(tc.in, 0.25))
	}

	store, err := Load(dir, Options{SampleRate: 16000, Logger: newLogger()})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if store.Len() != len(cases) || len(store.Skipped()) != 0 {
		t.Fatalf("expected %d units and none skipped, got %d (skipped %v)", len(cases), store.Len(), store.Skipped())
	}
	for _, tc := range cases {
		id, ok := diphone.Parse(tc.name[:len(tc.name)-len(".wav")])
		if !ok {
			t.Fatalf("bad fixture name %s", tc.name)
		}
		unit, ok := store.Lookup(id)
		if !ok {
			t.Fatalf("%s: expected unit to load", tc.name)
		}
		if unit.SampleRate() != 16000 || unit.Len() != tc.want {
			t.Fatalf("%s: expected %d samples at 16000, got %d at %d", tc.name, tc.want, unit.Len(), unit.SampleRate())
		}
	}
}

func TestLoadEmptyRecordingIsSkipped(t *testing.T) {
	dir := t.TempDir()
	writeUnit(t, dir, "pau-k.wav", nil)
	writeUnit(t, dir, "k-ae.wav", []float64{0.1})

	store, err := Load(dir, Options{SampleRate: 16000, Logger: newLogger()})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := store.Lookup(diphone.ID{Front: "pau", Back: "k"}); ok {
		t.Fatalf("expected empty recording not to register")
	}
	if len(store.Skipped()) != 1 || filepath.Base(store.Skipped()[0]) != "pau-k.wav" {
		t.Fatalf("expected empty recording in skipped list, got %v", store.Skipped())
	}
	_, missing := Units(store.Resolve(diphone.Sequence([]string{"k"})))
	if len(missing) != 2 {
		t.Fatalf("expected pau-k and k-pau reported missing, got %v", missing)
	}
}

func TestLoadDuplicateFirstInWalkOrderWins(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "zz-alternates")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeUnit(t, dir, "k-ae.wav", []float64{0.1, 0.2})
	writeUnit(t, sub, "K-AE.wav", []float64{0.3})

	store, err := Load(dir, Options{SampleRate: 16000, Logger: newLogger()})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("expected duplicates to collapse to one unit, got %d", store.Len())
	}
	unit, _ := store.Lookup(diphone.ID{Front: "k", Back: "ae"})
	if unit.Len() != 2 {
		t.Fatalf("expected the first file in walk order to win, got %d samples", unit.Len())
	}
}
