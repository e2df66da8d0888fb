package runtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/loqalabs/loqa-diphone/internal/bus"
	"github.com/loqalabs/loqa-diphone/internal/capability"
	"github.com/loqalabs/loqa-diphone/internal/config"
	"github.com/loqalabs/loqa-diphone/internal/history"
	"github.com/loqalabs/loqa-diphone/internal/lexicon"
	"github.com/loqalabs/loqa-diphone/internal/natsserver"
	"github.com/loqalabs/loqa-diphone/internal/synth"
	"github.com/loqalabs/loqa-diphone/internal/tts"
	"github.com/loqalabs/loqa-diphone/internal/unitstore"
)

const pruneInterval = time.Hour

// Runtime hosts the synthesizer behind the bus and exposes health, history
// and metrics over HTTP.
type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	ready         atomic.Bool
	wg            sync.WaitGroup

	nats     *natsserver.EmbeddedServer
	bus      *bus.Client
	history  *history.Store
	tts      *tts.Service
	registry *capability.Registry
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	dict, store, err := r.loadVoice()
	if err != nil {
		return err
	}

	tel, err := setupTelemetry(ctx, r.cfg, inventory{
		Units:        store.Len(),
		SampleRate:   store.SampleRate(),
		LexiconWords: dict.Len(),
	}, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = tel.shutdown

	engine, capabilities := r.newSynthesizer(dict, store)

	if err := r.startServices(ctx, engine, capabilities); err != nil {
		r.shutdown()
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", r.handleHealth)
	mux.HandleFunc("/readyz", r.handleReady)
	mux.HandleFunc("/history", r.handleHistory)

	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.serve(r.httpServer, "http")

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", tel.metrics)
	r.metricsServer = &http.Server{
		Addr:              r.cfg.Telemetry.PrometheusBind,
		Handler:           metricsMux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.serve(r.metricsServer, "metrics")

	r.wg.Add(1)
	go r.pruneHistory(ctx)

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)
	r.shutdown()
	r.wg.Wait()
	return nil
}

func (r *Runtime) loadVoice() (lexicon.Map, *unitstore.Store, error) {
	dict, err := lexicon.LoadCMU(r.cfg.Lexicon.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("load lexicon: %w", err)
	}
	store, err := unitstore.Load(r.cfg.Units.Directory, unitstore.Options{
		SampleRate: r.cfg.Units.SampleRate,
		Logger:     r.logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load diphone units: %w", err)
	}
	if store.Len() == 0 {
		r.logger.Warn("no diphone units found; every request will be silent", slog.String("dir", r.cfg.Units.Directory))
	}
	r.logger.Info("synthesizer loaded",
		slog.Int("lexicon_words", dict.Len()),
		slog.Int("units", store.Len()),
		slog.Int("skipped_units", len(store.Skipped())),
	)
	return dict, store, nil
}

// newSynthesizer must run after setupTelemetry so the engine picks up the
// installed meter and tracer providers.
func (r *Runtime) newSynthesizer(dict lexicon.Map, store *unitstore.Store) (*synth.Synthesizer, []capability.Capability) {
	engine := synth.New(dict, store, synth.Config{
		CrossfadeSamples: r.cfg.Synth.CrossfadeSamples(store.SampleRate()),
	}, r.logger)
	caps := []capability.Capability{
		capability.SynthCapability(store.Len(), store.SampleRate(), dict.Len(), map[string]string{
			"crossfade_ms": strconv.Itoa(r.cfg.Synth.CrossfadeMS),
		}),
	}
	return engine, caps
}

func (r *Runtime) startServices(ctx context.Context, engine *synth.Synthesizer, caps []capability.Capability) error {
	var err error
	r.history, err = history.Open(ctx, r.cfg.History, r.logger.With(slog.String("component", "history")))
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}

	r.nats, err = natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return err
	}
	busCfg := r.cfg.Bus
	if r.nats != nil {
		busCfg.Servers = []string{r.nats.ClientURL()}
	}
	r.bus, err = bus.Connect(ctx, busCfg, r.logger)
	if err != nil {
		return err
	}

	r.tts = tts.NewService(ctx, r.cfg.TTS, r.cfg.Synth, r.bus, engine, r.history, r.logger)
	if err := r.tts.Start(); err != nil {
		return fmt.Errorf("start tts service: %w", err)
	}

	r.registry, err = capability.NewRegistry(ctx, r.cfg.Node, caps, r.bus, r.logger)
	if err != nil {
		return fmt.Errorf("start capability registry: %w", err)
	}
	return nil
}

func (r *Runtime) serve(srv *http.Server, name string) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error(name+" server failed", slog.String("error", err.Error()))
		}
	}()
}

func (r *Runtime) pruneHistory(ctx context.Context) {
	defer r.wg.Done()
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.history.Prune(ctx); err != nil {
				r.logger.Warn("history prune failed", slog.String("error", err.Error()))
			}
		}
	}
}

// shutdown stops whatever was started, in reverse order.
func (r *Runtime) shutdown() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, srv := range []*http.Server{r.httpServer, r.metricsServer} {
		if srv == nil {
			continue
		}
		if err := srv.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("http shutdown error", slog.String("error", err.Error()))
		}
	}
	if r.registry != nil {
		r.registry.Close()
	}
	if r.tts != nil {
		r.tts.Close()
	}
	r.bus.Close()
	r.nats.Shutdown()
	if err := r.history.Close(); err != nil {
		r.logger.Error("history close error", slog.String("error", err.Error()))
	}

	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
		r.tracerClose = nil
	}
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.bus.Healthy() && r.tts.Healthy() && r.registry.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) handleHistory(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if v := req.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := r.history.List(req.Context(), limit)
	if err != nil {
		r.logger.Warn("history query failed", slog.String("error", err.Error()))
		http.Error(w, "history unavailable", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []history.Entry{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(entries)
}
