package capability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/loqalabs/loqa-diphone/internal/bus"
	"github.com/loqalabs/loqa-diphone/internal/config"
	"github.com/loqalabs/loqa-diphone/internal/natsserver"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newBus(t *testing.T) *bus.Client {
	t.Helper()
	srv, err := natsserver.Start(config.BusConfig{Embedded: true, Port: -1}, newLogger())
	if err != nil {
		t.Fatalf("start nats: %v", err)
	}
	t.Cleanup(srv.Shutdown)
	client, err := bus.Connect(context.Background(), config.BusConfig{Servers: []string{srv.ClientURL()}, ConnectTimeout: 2000}, newLogger())
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(client.Close)
	return client
}

func TestRegistryAnnouncesLocalNode(t *testing.T) {
	client := newBus(t)
	cfg := config.NodeConfig{ID: "node-a", Role: "tts", HeartbeatInterval: 50, HeartbeatTimeout: 500}
	caps := []Capability{SynthCapability(42, 16000, 7, map[string]string{"crossfade_ms": "10"})}

	reg, err := NewRegistry(context.Background(), cfg, caps, client, newLogger())
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	t.Cleanup(reg.Close)

	if !reg.Healthy() {
		t.Fatalf("expected local node healthy after announce")
	}
	nodes := reg.Query(WithCapabilityFilter("tts.diphone"))
	if len(nodes) != 1 || nodes[0].ID != "node-a" {
		t.Fatalf("unexpected nodes: %+v", nodes)
	}
	attrs := nodes[0].Capabilities[0].Attributes
	if attrs["units"] != "42" || attrs["sample_rate"] != "16000" || attrs["crossfade_ms"] != "10" {
		t.Fatalf("unexpected attributes: %v", attrs)
	}
	if got := reg.Query(WithCapabilityFilter("stt")); len(got) != 0 {
		t.Fatalf("expected no stt nodes, got %+v", got)
	}
}

func TestRegistryTracksRemoteNodes(t *testing.T) {
	client := newBus(t)
	a, err := NewRegistry(context.Background(), config.NodeConfig{ID: "node-a", Role: "tts", HeartbeatInterval: 50, HeartbeatTimeout: 500}, nil, client, newLogger())
	if err != nil {
		t.Fatalf("registry a: %v", err)
	}
	t.Cleanup(a.Close)
	b, err := NewRegistry(context.Background(), config.NodeConfig{ID: "node-b", Role: "tts", HeartbeatInterval: 50, HeartbeatTimeout: 500}, nil, client, newLogger())
	if err != nil {
		t.Fatalf("registry b: %v", err)
	}
	t.Cleanup(b.Close)

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if len(a.Query(nil)) == 2 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("node-a never saw node-b: %+v", a.Query(nil))
}

func TestEvaluateHealthMarksStaleNodes(t *testing.T) {
	r := &Registry{
		cfg:   config.NodeConfig{ID: "local", HeartbeatTimeout: 1000},
		nodes: make(map[string]*NodeInfo),
	}
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	r.updateNode("local", "tts", nil, base)
	r.now = func() time.Time { return base.Add(2 * time.Second) }
	r.evaluateHealth()
	if r.Healthy() {
		t.Fatalf("expected stale node to be unhealthy")
	}
	total, up := r.snapshotCounts()
	if total != 1 || up != 0 {
		t.Fatalf("unexpected counts %d/%d", total, up)
	}
}
