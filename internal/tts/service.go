package tts

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/loqalabs/loqa-diphone/internal/bus"
	"github.com/loqalabs/loqa-diphone/internal/config"
	"github.com/loqalabs/loqa-diphone/internal/diphone"
	"github.com/loqalabs/loqa-diphone/internal/history"
	"github.com/loqalabs/loqa-diphone/internal/protocol"
	"github.com/loqalabs/loqa-diphone/internal/synth"
)

// Service answers tts.request messages with tts.audio chunks followed by a
// tts.done status.
type Service struct {
	cfg      config.TTSConfig
	defaults config.SynthConfig
	bus      *bus.Client
	engine   Engine
	history  *history.Store
	sub      *nats.Subscription
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *slog.Logger

	// mu orders wg.Add against Close so no request starts after Wait begins.
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewService wires the service. history may be nil.
func NewService(parent context.Context, cfg config.TTSConfig, defaults config.SynthConfig, busClient *bus.Client, engine Engine, hist *history.Store, log *slog.Logger) *Service {
	ctx, cancel := context.WithCancel(parent)
	return &Service{
		cfg:      cfg,
		defaults: defaults,
		bus:      busClient,
		engine:   engine,
		history:  hist,
		ctx:      ctx,
		cancel:   cancel,
		logger:   log.With(slog.String("component", "tts-service")),
	}
}

func (s *Service) Start() error {
	if !s.cfg.Enabled {
		return nil
	}
	sub, err := s.bus.Conn().Subscribe(protocol.SubjectTTSRequest, s.handleRequest)
	if err != nil {
		return err
	}
	s.sub = sub
	s.logger.Info("tts service listening", slog.String("subject", protocol.SubjectTTSRequest))
	return nil
}

func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if s.sub != nil {
		_ = s.sub.Drain()
	}
	s.wg.Wait()
}

func (s *Service) Healthy() bool { return !s.cfg.Enabled || s.sub != nil }

func (s *Service) handleRequest(msg *nats.Msg) {
	var req protocol.TTSRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		s.logger.Warn("failed to decode tts request", slogError(err))
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.logger.Debug("dropping tts request after close", slog.String("session_id", req.SessionID))
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ctx, cancel := context.WithTimeout(s.ctx, time.Duration(s.cfg.RequestTimeoutMS)*time.Millisecond)
		defer cancel()
		s.process(ctx, req)
	}()
}

func (s *Service) process(ctx context.Context, req protocol.TTSRequest) {
	res, err := s.engine.Synthesize(ctx, req.Text, s.options(req))

	status := protocol.TTSStatus{
		SessionID: req.SessionID,
		Target:    req.Target,
		Completed: err == nil,
	}
	if err != nil {
		status.Error = err.Error()
		if errors.Is(err, synth.ErrEmptyInput) {
			s.logger.Info("tts request produced no audio", slog.String("session_id", req.SessionID))
		} else {
			s.logger.Warn("tts synthesis error", slog.String("session_id", req.SessionID), slogError(err))
		}
	}
	if res != nil {
		status.Diphones = diphone.Strings(res.Diphones)
		status.UnresolvedTokens = res.Diagnostics.UnresolvedTokens
		status.MissingUnits = res.Diagnostics.MissingIDs()
		status.DateErrors = res.Diagnostics.DateMessages()
		if err == nil {
			status.Samples = res.Audio.Len()
			if perr := s.publishAudio(ctx, req, Chunk(res.Audio, s.cfg.ChunkDurationMS)); perr != nil {
				status.Completed = false
				status.Error = perr.Error()
			}
		}
	}

	status.RequestID = s.record(req, status, res)
	status.Timestamp = time.Now().UTC()
	if err := s.bus.PublishJSON(protocol.SubjectTTSDone, status); err != nil {
		s.logger.Warn("failed to publish tts status", slogError(err))
	}
}

func (s *Service) options(req protocol.TTSRequest) synth.Options {
	opts := synth.Options{
		Volume:    synth.Volume(s.defaults.Volume),
		Crossfade: s.defaults.Crossfade,
		Spell:     req.Spell,
	}
	if req.Volume != nil {
		opts.Volume = synth.Volume(*req.Volume)
	}
	if req.Crossfade != nil {
		opts.Crossfade = *req.Crossfade
	}
	return opts
}

func (s *Service) publishAudio(ctx context.Context, req protocol.TTSRequest, chunks []SynthChunk) error {
	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			s.logger.Warn("tts synthesis cancelled", slogError(err))
			return err
		}
		packet := protocol.AudioChunk{
			SessionID:  req.SessionID,
			Target:     req.Target,
			SampleRate: chunk.SampleRate,
			Channels:   chunk.Channels,
			Sequence:   chunk.Sequence,
			PCM:        chunk.PCM,
			Final:      chunk.Final,
		}
		if err := s.bus.PublishJSON(protocol.SubjectTTSAudio, packet); err != nil {
			s.logger.Warn("failed to publish tts chunk", slogError(err))
			return err
		}
	}
	return nil
}

func (s *Service) record(req protocol.TTSRequest, status protocol.TTSStatus, res *synth.Result) string {
	if s.history == nil {
		return ""
	}
	outcome := "ok"
	if status.Error != "" {
		outcome = "error"
	}
	entry := history.Entry{
		SessionID:        req.SessionID,
		Phrase:           req.Text,
		Diphones:         status.Diphones,
		UnresolvedTokens: status.UnresolvedTokens,
		MissingUnits:     status.MissingUnits,
		DateErrors:       status.DateErrors,
		Samples:          status.Samples,
		Outcome:          outcome,
	}
	if res != nil && res.Audio != nil {
		entry.SampleRate = res.Audio.SampleRate
	}
	// Detached from the request deadline so a timed-out request is still logged.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	id, err := s.history.Record(ctx, entry)
	if err != nil {
		s.logger.Warn("failed to record tts request", slogError(err))
	}
	return id
}

func slogError(err error) slog.Attr {
	return slog.String("error", err.Error())
}
