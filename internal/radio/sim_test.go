package radio

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danmuck/edgelink/internal/protocol"
	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

func newTestSim() *Sim {
	cfg := DefaultSimConfig()
	cfg.Latency = 0
	cfg.Networks = []SimNetwork{
		{AP: protocol.AccessPoint{SSID: "weak", Channel: 1, RSSI: -85}},
		{AP: protocol.AccessPoint{SSID: "lab", Channel: 6, RSSI: -40}, Auth: protocol.AuthWPA2Personal, Password: "hunter22"},
	}
	return NewSim(cfg)
}

func TestSimLifecycleConnect(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	sim := newTestSim()

	if err := sim.Connect(ctx); !errors.Is(err, ErrNotStarted) {
		t.Fatalf("expected ErrNotStarted, got %v", err)
	}
	if err := sim.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sim.Connect(ctx); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
	if err := sim.SetConfiguration(protocol.ClientConfig{SSID: "lab", Password: "wrong", Auth: protocol.AuthWPA2Personal}); err != nil {
		t.Fatalf("set config: %v", err)
	}
	err := sim.Connect(ctx)
	if !errors.Is(err, ErrPassword) || CodeOf(err) != CodePassword {
		t.Fatalf("expected password failure, got %v code=%d", err, CodeOf(err))
	}
	if err := sim.SetConfiguration(protocol.ClientConfig{SSID: "lab", Password: "hunter22", Auth: protocol.AuthWPA2Personal}); err != nil {
		t.Fatalf("set config: %v", err)
	}
	if err := sim.Connect(ctx); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if ok, _ := sim.IsConnected(); !ok {
		t.Fatalf("expected connected")
	}
	if err := sim.Stop(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if ok, _ := sim.IsConnected(); ok {
		t.Fatalf("stop must drop the connection")
	}
}

func TestSimScanSortsBySignal(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	sim := newTestSim()
	if _, err := sim.Scan(ctx); CodeOf(err) != CodeNotStarted {
		t.Fatalf("expected not started code, got %v", err)
	}
	_ = sim.Start(ctx)
	aps, err := sim.Scan(ctx)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(aps) != 2 || aps[0].SSID != "lab" || aps[1].SSID != "weak" {
		t.Fatalf("unexpected scan order: %+v", aps)
	}
}

func TestSimUnknownSSID(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	sim := newTestSim()
	_ = sim.Start(ctx)
	_ = sim.SetConfiguration(protocol.ClientConfig{SSID: "ghost"})
	if err := sim.Connect(ctx); CodeOf(err) != CodeSSID {
		t.Fatalf("expected ssid code, got %v", err)
	}
}

func TestSimFailNextIsOneShot(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	sim := newTestSim()
	sim.FailNext(protocol.RadioStart, -1)
	if err := sim.Start(ctx); CodeOf(err) != -1 {
		t.Fatalf("expected injected code -1, got %v", err)
	}
	if err := sim.Start(ctx); err != nil {
		t.Fatalf("second start must succeed: %v", err)
	}
	if sim.Calls(protocol.RadioStart) != 2 {
		t.Fatalf("unexpected call count: %d", sim.Calls(protocol.RadioStart))
	}
}

func TestSimLatencyHonoursContext(t *testing.T) {
	testlog.Start(t)
	cfg := DefaultSimConfig()
	cfg.Latency = time.Hour
	sim := NewSim(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := sim.Start(ctx)
	if CodeOf(err) != CodeTimeout {
		t.Fatalf("expected timeout code, got %v", err)
	}
}

func TestCodeOfUnknownError(t *testing.T) {
	testlog.Start(t)
	if CodeOf(errors.New("boom")) != CodeFail {
		t.Fatalf("unknown errors must map to CodeFail")
	}
	if CodeOf(nil) != 0 {
		t.Fatalf("nil error must map to 0")
	}
}
