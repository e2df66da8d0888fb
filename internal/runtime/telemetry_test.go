package runtime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/loqalabs/loqa-diphone/internal/config"
)

func TestResourceDescribesVoice(t *testing.T) {
	cfg := config.Default()
	cfg.Node.ID = "kitchen"
	res, err := newResource(context.Background(), cfg, inventory{Units: 1500, SampleRate: 16000, LexiconWords: 42})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}

	want := map[attribute.Key]attribute.Value{
		"service.name":          attribute.StringValue(cfg.RuntimeName),
		"service.instance.id":   attribute.StringValue("kitchen"),
		"diphone.node.role":     attribute.StringValue(cfg.Node.Role),
		"diphone.units":         attribute.IntValue(1500),
		"diphone.sample_rate":   attribute.IntValue(16000),
		"diphone.lexicon_words": attribute.IntValue(42),
	}
	set := res.Set()
	for key, value := range want {
		got, ok := set.Value(key)
		if !ok {
			t.Fatalf("resource missing %s", key)
		}
		if got != value {
			t.Fatalf("%s = %v, want %v", key, got.Emit(), value.Emit())
		}
	}
}

func TestAudioSecondsUsesVoiceBuckets(t *testing.T) {
	res, err := newResource(context.Background(), config.Default(), inventory{})
	if err != nil {
		t.Fatalf("newResource: %v", err)
	}
	reg := prometheus.NewRegistry()
	mp, err := newMeterProvider(res, reg)
	if err != nil {
		t.Fatalf("newMeterProvider: %v", err)
	}
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	hist, err := mp.Meter("test").Float64Histogram("diphone.synth.audio_seconds", metric.WithUnit("s"))
	if err != nil {
		t.Fatalf("histogram: %v", err)
	}
	hist.Record(context.Background(), 0.2)
	hist.Record(context.Background(), 3)

	rec := httptest.NewRecorder()
	promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	if !strings.Contains(body, "diphone_synth_audio_seconds") {
		t.Fatalf("histogram not exported:\n%s", body)
	}
	for _, le := range []string{`le="0.25"`, `le="4"`, `le="32"`} {
		if !strings.Contains(body, le) {
			t.Fatalf("expected bucket %s in:\n%s", le, body)
		}
	}
	if strings.Contains(body, `le="5000"`) {
		t.Fatalf("default millisecond buckets leaked into audio histogram:\n%s", body)
	}
}
