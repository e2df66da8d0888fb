package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/loqalabs/loqa-diphone/internal/config"
	"github.com/loqalabs/loqa-diphone/internal/diphone"
	"github.com/loqalabs/loqa-diphone/internal/lexicon"
	"github.com/loqalabs/loqa-diphone/internal/sink"
	"github.com/loqalabs/loqa-diphone/internal/synth"
	"github.com/loqalabs/loqa-diphone/internal/unitstore"
)

type sayOptions struct {
	configPath string
	diphoneDir string
	dictPath   string
	play       bool
	outfile    string
	crossfade  bool
	volume     int
	spell      bool
	verbose    bool
}

func newRootCmd() *cobra.Command {
	opts := &sayOptions{}
	cmd := &cobra.Command{
		Use:   "diphone-say [flags] PHRASE...",
		Short: "Synthesize speech by concatenating diphone recordings",
		Long: `diphone-say turns a phrase into speech by looking up each word in a
CMU-format pronouncing dictionary and stitching together the matching
diphone recordings.

Dates written as dd/mm or dd/mm/yy[yy] are read aloud, e.g. 25/12/99 becomes
"december twenty fifth nineteen ninety nine".

Examples:
  diphone-say --diphones ./diphones --dict ./cmudict.dict -p "hello world"
  diphone-say -c -v 80 -o hello.wav "hello world"
  diphone-say -s -p abc`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSay(cmd, opts, strings.Join(args, " "))
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to a YAML configuration file")
	flags.StringVar(&opts.diphoneDir, "diphones", "", "directory holding <phone>-<phone>.wav units")
	flags.StringVar(&opts.dictPath, "dict", "", "CMU pronouncing dictionary")
	flags.BoolVarP(&opts.play, "play", "p", false, "play the result")
	flags.StringVarP(&opts.outfile, "outfile", "o", "", "write the result to a WAV file")
	flags.BoolVarP(&opts.crossfade, "crossfade", "c", false, "crossfade adjacent diphones")
	flags.IntVarP(&opts.volume, "volume", "v", 100, "volume from 0 to 100")
	flags.BoolVarP(&opts.spell, "spell", "s", false, "spell the phrase letter by letter")
	flags.BoolVar(&opts.verbose, "verbose", false, "log every pipeline stage")
	return cmd
}

func runSay(cmd *cobra.Command, opts *sayOptions, phrase string) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("diphones") {
		cfg.Units.Directory = opts.diphoneDir
	}
	if flags.Changed("dict") {
		cfg.Lexicon.Path = opts.dictPath
	}
	if flags.Changed("volume") {
		cfg.Synth.Volume = opts.volume
	}
	if flags.Changed("crossfade") {
		cfg.Synth.Crossfade = opts.crossfade
	}

	logger := newLogger(cmd.ErrOrStderr(), opts.verbose)

	dict, err := lexicon.LoadCMU(cfg.Lexicon.Path)
	if err != nil {
		return err
	}
	store, err := unitstore.Load(cfg.Units.Directory, unitstore.Options{
		SampleRate: cfg.Units.SampleRate,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	logger.Debug("inventory loaded", slog.Int("words", dict.Len()), slog.Int("units", store.Len()))

	s := synth.New(dict, store, synth.Config{
		CrossfadeSamples: cfg.Synth.CrossfadeSamples(store.SampleRate()),
	}, logger)
	res, err := s.Synthesize(cmd.Context(), phrase, synth.Options{
		Volume:    synth.Volume(cfg.Synth.Volume),
		Crossfade: cfg.Synth.Crossfade,
		Spell:     opts.spell,
	})
	if res != nil {
		report(cmd.OutOrStdout(), logger, res)
	}
	if err != nil {
		if errors.Is(err, synth.ErrEmptyInput) {
			return fmt.Errorf("nothing to say: %w", err)
		}
		return err
	}

	if opts.outfile != "" {
		if err := sink.SaveWAV(res.Audio, opts.outfile); err != nil {
			return fmt.Errorf("save %s: %w", opts.outfile, err)
		}
		logger.Info("wrote audio", slog.String("path", opts.outfile), slog.Duration("duration", res.Audio.Duration()))
	}
	if opts.play {
		mode := cfg.Playback.Mode
		if mode == "none" {
			mode = "exec"
		}
		cfg.Playback.Mode = mode
		player, err := sink.NewPlayer(cfg.Playback)
		if err != nil {
			return err
		}
		if err := player.Play(cmd.Context(), res.Audio); err != nil {
			return fmt.Errorf("play: %w", err)
		}
	}
	return nil
}

func report(out io.Writer, logger *slog.Logger, res *synth.Result) {
	fmt.Fprintln(out, strings.Join(diphone.Strings(res.Diphones), " "))
	for _, msg := range res.Diagnostics.DateMessages() {
		logger.Warn("date left unexpanded", slog.String("reason", msg))
	}
	for _, w := range res.Diagnostics.UnresolvedTokens {
		logger.Warn("word not in dictionary", slog.String("word", w))
	}
	for _, id := range res.Diagnostics.MissingIDs() {
		logger.Warn("missing diphone recording", slog.String("diphone", id))
	}
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
