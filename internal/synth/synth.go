// Package synth runs the full diphone pipeline for one phrase: normalize,
// transcribe, sequence, resolve, assemble and scale. Every recoverable
// problem along the way is collected into Diagnostics instead of stopping the
// request.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/loqalabs/loqa-diphone/internal/audio"
	"github.com/loqalabs/loqa-diphone/internal/diphone"
	"github.com/loqalabs/loqa-diphone/internal/lexicon"
	"github.com/loqalabs/loqa-diphone/internal/phonetic"
	"github.com/loqalabs/loqa-diphone/internal/textnorm"
	"github.com/loqalabs/loqa-diphone/internal/unitstore"
)

const instrumentationName = "github.com/loqalabs/loqa-diphone/synth"

// ErrEmptyInput is returned when a phrase produces no audible diphone:
// nothing was sequenced or none of the sequenced units resolved. The Result
// is still returned with its diagnostics and an empty buffer.
var ErrEmptyInput = errors.New("no diphones to synthesize")

// UnitSource resolves diphone IDs to recordings. *unitstore.Store implements it.
type UnitSource interface {
	Resolve(ids []diphone.ID) []unitstore.Resolved
	SampleRate() int
}

// Options are per-request settings. A nil Volume leaves the gain untouched.
type Options struct {
	Volume    *int
	Crossfade bool
	Spell     bool
}

// Volume is a convenience for building Options.Volume.
func Volume(percent int) *int { return &percent }

// Config holds settings fixed for the lifetime of a Synthesizer.
type Config struct {
	// CrossfadeSamples is the overlap window used when a request asks for
	// crossfading.
	CrossfadeSamples int
}

// Result is everything a request produced. Audio is owned by the caller.
type Result struct {
	Tokens      []string
	Phones      phonetic.Sequence
	Diphones    []diphone.ID
	Audio       *audio.Buffer
	Diagnostics Diagnostics
}

// Synthesizer is safe for concurrent use; it holds only read-only state.
type Synthesizer struct {
	dict    lexicon.Dictionary
	units   UnitSource
	cfg     Config
	log     *slog.Logger
	tracer  trace.Tracer
	metrics synthMetrics
}

type synthMetrics struct {
	requests   metric.Int64Counter
	missing    metric.Int64Counter
	unresolved metric.Int64Counter
	duration   metric.Float64Histogram
}

func New(dict lexicon.Dictionary, units UnitSource, cfg Config, logger *slog.Logger) *Synthesizer {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	s := &Synthesizer{
		dict:   dict,
		units:  units,
		cfg:    cfg,
		log:    logger.With(slog.String("component", "synth")),
		tracer: otel.Tracer(instrumentationName),
	}
	if err := s.initMetrics(); err != nil {
		s.log.Warn("failed to initialize metrics", slogError(err))
	}
	return s
}

func (s *Synthesizer) initMetrics() error {
	meter := otel.Meter(instrumentationName)
	var err error
	if s.metrics.requests, err = meter.Int64Counter("diphone.synth.requests",
		metric.WithDescription("Synthesis requests by outcome")); err != nil {
		return err
	}
	if s.metrics.missing, err = meter.Int64Counter("diphone.synth.missing_units",
		metric.WithDescription("Diphones requested without a recording")); err != nil {
		return err
	}
	if s.metrics.unresolved, err = meter.Int64Counter("diphone.synth.unresolved_tokens",
		metric.WithDescription("Tokens missing from the pronouncing dictionary")); err != nil {
		return err
	}
	if s.metrics.duration, err = meter.Float64Histogram("diphone.synth.audio_seconds",
		metric.WithDescription("Length of synthesized audio"), metric.WithUnit("s")); err != nil {
		return err
	}
	return nil
}

// Synthesize turns phrase into audio. On ErrEmptyInput or a rejected volume
// the returned Result is still populated; in the volume case its audio is the
// unscaled assembly.
func (s *Synthesizer) Synthesize(ctx context.Context, phrase string, opts Options) (*Result, error) {
	ctx, span := s.tracer.Start(ctx, "synth.Synthesize", trace.WithAttributes(
		attribute.Int("phrase.length", len(phrase)),
		attribute.Bool("crossfade", opts.Crossfade),
		attribute.Bool("spell", opts.Spell),
	))
	defer span.End()
	start := time.Now()

	res := &Result{}
	diag := &res.Diagnostics

	var dateErrs []error
	if opts.Spell {
		res.Tokens, dateErrs = textnorm.Spell(phrase)
	} else {
		res.Tokens, dateErrs = textnorm.Normalize(phrase)
	}
	for _, err := range dateErrs {
		var dateErr *textnorm.DateParseError
		if errors.As(err, &dateErr) {
			diag.DateErrors = append(diag.DateErrors, dateErr)
		}
	}
	span.AddEvent("normalized", trace.WithAttributes(attribute.Int("tokens", len(res.Tokens))))

	phones, unresolved := phonetic.Transcribe(s.dict, res.Tokens)
	res.Phones = phones
	for _, u := range unresolved {
		diag.UnresolvedTokens = append(diag.UnresolvedTokens, u.Word)
	}
	span.AddEvent("transcribed", trace.WithAttributes(attribute.Int("phones", len(phones))))

	res.Diphones = diphone.Sequence(phones)
	units, missing := unitstore.Units(s.units.Resolve(res.Diphones))
	diag.MissingUnits = missing
	span.AddEvent("resolved", trace.WithAttributes(
		attribute.Int("diphones", len(res.Diphones)),
		attribute.Int("missing", len(missing)),
	))

	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("synthesis cancelled: %w", err)
		s.finish(ctx, span, "cancelled", start, err)
		return res, err
	}

	res.Audio = audio.Assemble(units, audio.AssembleOptions{
		SampleRate: s.units.SampleRate(),
		Crossfade:  opts.Crossfade,
		Overlap:    s.cfg.CrossfadeSamples,
	})

	s.record(ctx, res)

	if res.Audio.Empty() {
		err := fmt.Errorf("%w: %d diphones sequenced, %d missing", ErrEmptyInput, len(res.Diphones), len(missing))
		s.finish(ctx, span, "empty", start, err)
		return res, err
	}

	if opts.Volume != nil {
		if err := res.Audio.Scale(*opts.Volume); err != nil {
			err = fmt.Errorf("apply volume: %w", err)
			s.finish(ctx, span, "invalid_volume", start, err)
			return res, err
		}
	}

	if s.metrics.duration != nil {
		s.metrics.duration.Record(ctx, res.Audio.Duration().Seconds())
	}
	s.finish(ctx, span, "ok", start, nil)
	return res, nil
}

func (s *Synthesizer) record(ctx context.Context, res *Result) {
	if s.metrics.missing == nil {
		return
	}
	if n := len(res.Diagnostics.MissingUnits); n > 0 {
		s.metrics.missing.Add(ctx, int64(n))
	}
	if n := len(res.Diagnostics.UnresolvedTokens); n > 0 {
		s.metrics.unresolved.Add(ctx, int64(n))
	}
}

func (s *Synthesizer) finish(ctx context.Context, span trace.Span, outcome string, start time.Time, err error) {
	if s.metrics.requests != nil {
		s.metrics.requests.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, outcome)
	}
	s.log.Debug("synthesis finished",
		slog.String("outcome", outcome),
		slog.Duration("elapsed", time.Since(start)),
	)
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
