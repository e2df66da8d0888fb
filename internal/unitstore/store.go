// Package unitstore loads a diphone library from disk once and resolves unit
// names against it for the rest of the process lifetime.
package unitstore

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/loqalabs/loqa-diphone/internal/audio"
	"github.com/loqalabs/loqa-diphone/internal/diphone"
)

var unitFile = regexp.MustCompile(`(?i)^(\p{L}+)-(\p{L}+)\.wav$`)

// MissingUnitError names a diphone the library has no recording for.
type MissingUnitError struct {
	ID diphone.ID
}

func (e *MissingUnitError) Error() string {
	return fmt.Sprintf("no recording for diphone %s", e.ID)
}

// Resolved pairs a requested ID with its unit. Unit is nil when missing.
type Resolved struct {
	ID   diphone.ID
	Unit *audio.Unit
}

// Missing reports whether the unit could not be found.
func (r Resolved) Missing() bool { return r.Unit == nil }

// Options configures Load.
type Options struct {
	// SampleRate is the rate every unit is converted to.
	SampleRate int
	Logger     *slog.Logger
}

// Store is read-only after Load and safe for concurrent use.
type Store struct {
	dir        string
	sampleRate int
	units      map[string]*audio.Unit
	skipped    []string
}

// Load walks dir for files named <phoneme>-<phoneme>.wav. A missing directory
// yields an empty store rather than an error; every lookup then resolves as
// missing. Files that fail to decode are skipped and listed by Skipped.
func Load(dir string, opts Options) (*Store, error) {
	if opts.SampleRate <= 0 {
		opts.SampleRate = audio.DefaultSampleRate
	}
	log := opts.Logger
	if log == nil {
		log = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	log = log.With(slog.String("component", "unitstore"))

	s := &Store{dir: dir, sampleRate: opts.SampleRate, units: make(map[string]*audio.Unit)}
	if dir == "" {
		log.Warn("no diphone directory configured")
		return s, nil
	}
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		log.Warn("diphone directory not found", slog.String("directory", dir))
		return s, nil
	}

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		m := unitFile.FindStringSubmatch(d.Name())
		if m == nil {
			return nil
		}
		id := diphone.ID{Front: strings.ToLower(m[1]), Back: strings.ToLower(m[2])}
		key := id.String()
		if _, dup := s.units[key]; dup {
			log.Warn("duplicate diphone recording ignored", slog.String("path", path))
			return nil
		}
		unit, err := s.loadUnit(key, path)
		if err != nil {
			log.Warn("skipping diphone recording", slog.String("path", path), slog.String("error", err.Error()))
			s.skipped = append(s.skipped, path)
			return nil
		}
		s.units[key] = unit
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk diphone directory: %w", err)
	}
	sort.Strings(s.skipped)

	if len(s.units) == 0 {
		log.Warn("no diphone recordings discovered", slog.String("directory", dir))
	} else {
		log.Info("diphone recordings loaded", slog.Int("count", len(s.units)), slog.Int("sample_rate", s.sampleRate))
	}
	return s, nil
}

// errEmptyRecording keeps a zero-length file from registering as a present unit.
var errEmptyRecording = errors.New("recording has no samples")

func (s *Store) loadUnit(name, path string) (*audio.Unit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	samples, rate, err := audio.DecodeWAV(f)
	if err != nil {
		return nil, err
	}
	if rate != s.sampleRate {
		samples, err = audio.Resample(samples, rate, s.sampleRate)
		if err != nil {
			return nil, err
		}
	}
	if len(samples) == 0 {
		return nil, errEmptyRecording
	}
	return audio.NewUnit(name, s.sampleRate, samples), nil
}

// FromUnits builds a store from units already in memory, keyed by unit name.
func FromUnits(sampleRate int, units ...*audio.Unit) *Store {
	s := &Store{sampleRate: sampleRate, units: make(map[string]*audio.Unit, len(units))}
	for _, u := range units {
		s.units[strings.ToLower(u.Name())] = u
	}
	return s
}

// Resolve looks up each ID. The result has one entry per ID in the same order.
func (s *Store) Resolve(ids []diphone.ID) []Resolved {
	out := make([]Resolved, len(ids))
	for i, id := range ids {
		out[i] = Resolved{ID: id, Unit: s.units[id.String()]}
	}
	return out
}

// Lookup returns a single unit.
func (s *Store) Lookup(id diphone.ID) (*audio.Unit, bool) {
	u, ok := s.units[id.String()]
	return u, ok
}

// Len reports how many units were loaded.
func (s *Store) Len() int { return len(s.units) }

// SampleRate is the rate every unit in the store uses.
func (s *Store) SampleRate() int { return s.sampleRate }

// Dir is the directory the store was loaded from.
func (s *Store) Dir() string { return s.dir }

// Skipped lists recordings that matched the naming scheme but failed to load.
func (s *Store) Skipped() []string { return append([]string(nil), s.skipped...) }

// Units splits resolved entries into the units to assemble (nil for missing)
// and an error per missing ID.
func Units(resolved []Resolved) ([]*audio.Unit, []*MissingUnitError) {
	units := make([]*audio.Unit, len(resolved))
	var missing []*MissingUnitError
	for i, r := range resolved {
		units[i] = r.Unit
		if r.Missing() {
			missing = append(missing, &MissingUnitError{ID: r.ID})
		}
	}
	return units, missing
}
