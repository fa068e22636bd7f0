package radio

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/danmuck/edgelink/internal/protocol"
)

// SimNetwork is one access point the simulated radio can see.
type SimNetwork struct {
	AP       protocol.AccessPoint
	Auth     protocol.AuthMethod
	Password string
}

// SimConfig seeds a simulated radio.
type SimConfig struct {
	Networks     []SimNetwork
	Capabilities protocol.Capabilities
	// Latency is applied to every blocking operation.
	Latency time.Duration
}

func DefaultSimConfig() SimConfig {
	return SimConfig{
		Capabilities: protocol.CapClient | protocol.CapAccessPoint | protocol.CapMixed,
		Latency:      50 * time.Millisecond,
	}
}

// Sim is an in-memory station radio. Safe for concurrent use.
type Sim struct {
	mu        sync.Mutex
	cfg       SimConfig
	started   bool
	connected bool
	station   *protocol.ClientConfig
	failNext  map[protocol.RadioOp]int32
	calls     map[protocol.RadioOp]int
}

var _ Controller = (*Sim)(nil)

func NewSim(cfg SimConfig) *Sim {
	nets := make([]SimNetwork, len(cfg.Networks))
	copy(nets, cfg.Networks)
	cfg.Networks = nets
	return &Sim{
		cfg:      cfg,
		failNext: make(map[protocol.RadioOp]int32),
		calls:    make(map[protocol.RadioOp]int),
	}
}

// FailNext makes the next call of op fail with code.
func (s *Sim) FailNext(op protocol.RadioOp, code int32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext[op] = code
}

// Calls reports how many times op has been invoked.
func (s *Sim) Calls(op protocol.RadioOp) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *Sim) IsStarted() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(protocol.RadioIsStarted); err != nil {
		return false, err
	}
	return s.started, nil
}

func (s *Sim) IsConnected() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(protocol.RadioIsConnected); err != nil {
		return false, err
	}
	return s.connected, nil
}

func (s *Sim) Capabilities() (protocol.Capabilities, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(protocol.RadioCapabilities); err != nil {
		return 0, err
	}
	return s.cfg.Capabilities, nil
}

func (s *Sim) Start(ctx context.Context) error {
	if err := s.settle(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(protocol.RadioStart); err != nil {
		return err
	}
	s.started = true
	return nil
}

func (s *Sim) Stop(ctx context.Context) error {
	if err := s.settle(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(protocol.RadioStop); err != nil {
		return err
	}
	s.started = false
	s.connected = false
	return nil
}

func (s *Sim) Scan(ctx context.Context) ([]protocol.AccessPoint, error) {
	if err := s.settle(ctx); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(protocol.RadioScan); err != nil {
		return nil, err
	}
	if !s.started {
		return nil, ErrNotStarted
	}
	if len(s.cfg.Networks) == 0 {
		return nil, nil
	}
	out := make([]protocol.AccessPoint, 0, len(s.cfg.Networks))
	for _, n := range s.cfg.Networks {
		out = append(out, n.AP)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].RSSI > out[j].RSSI
	})
	return out, nil
}

func (s *Sim) Connect(ctx context.Context) error {
	if err := s.settle(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(protocol.RadioConnect); err != nil {
		return err
	}
	if !s.started {
		return ErrNotStarted
	}
	if s.station == nil || s.station.SSID == "" {
		return ErrNotConfigured
	}
	for _, n := range s.cfg.Networks {
		if n.AP.SSID != s.station.SSID {
			continue
		}
		if n.Auth != protocol.AuthNone && n.Password != s.station.Password {
			return fmt.Errorf("%w: ssid %q", ErrPassword, n.AP.SSID)
		}
		s.connected = true
		return nil
	}
	return fmt.Errorf("%w: ssid %q", ErrSSID, s.station.SSID)
}

func (s *Sim) Disconnect(ctx context.Context) error {
	if err := s.settle(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(protocol.RadioDisconnect); err != nil {
		return err
	}
	if !s.started {
		return ErrNotStarted
	}
	s.connected = false
	return nil
}

func (s *Sim) SetConfiguration(cfg protocol.ClientConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enterLocked(protocol.RadioSetConfig); err != nil {
		return err
	}
	s.station = &cfg
	return nil
}

// Configuration returns the last station config, if any.
func (s *Sim) Configuration() (protocol.ClientConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.station == nil {
		return protocol.ClientConfig{}, false
	}
	return *s.station, true
}

func (s *Sim) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = false
	s.connected = false
	return nil
}

// enterLocked records the call and consumes any injected failure.
func (s *Sim) enterLocked(op protocol.RadioOp) error {
	s.calls[op]++
	if code, ok := s.failNext[op]; ok {
		delete(s.failNext, op)
		return &Error{Code: code, Msg: "injected failure on " + op.String()}
	}
	return nil
}

func (s *Sim) settle(ctx context.Context) error {
	s.mu.Lock()
	d := s.cfg.Latency
	s.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
