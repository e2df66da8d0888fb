package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loqalabs/loqa-diphone/internal/config"
	"github.com/loqalabs/loqa-diphone/internal/history"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestReadyBeforeStart(t *testing.T) {
	rt := New(config.Default(), newLogger())
	rec := httptest.NewRecorder()
	rt.handleReady(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 before start, got %d", rec.Code)
	}
}

func TestHistoryEndpoint(t *testing.T) {
	cfg := config.Default()
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")
	hist, err := history.Open(context.Background(), cfg.History, newLogger())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = hist.Close() })
	if _, err := hist.Record(context.Background(), history.Entry{Phrase: "hello", Samples: 10, SampleRate: 16000, Outcome: "ok"}); err != nil {
		t.Fatalf("record: %v", err)
	}

	rt := New(cfg, newLogger())
	rt.history = hist

	rec := httptest.NewRecorder()
	rt.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/history?limit=5", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"phrase":"hello"`) {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}

	rec = httptest.NewRecorder()
	rt.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/history?limit=zero", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", rec.Code)
	}
}

func TestHistoryEndpointEphemeral(t *testing.T) {
	cfg := config.Default()
	cfg.History.RetentionMode = "ephemeral"
	hist, err := history.Open(context.Background(), cfg.History, newLogger())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	rt := New(cfg, newLogger())
	rt.history = hist

	rec := httptest.NewRecorder()
	rt.handleHistory(rec, httptest.NewRequest(http.MethodGet, "/history", nil))
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected empty list, got %s", got)
	}
}
