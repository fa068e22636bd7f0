package bridge

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/edgelink/internal/catalog"
	"github.com/danmuck/edgelink/internal/dispatch"
	logs "github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/observability"
	"github.com/danmuck/edgelink/internal/protocol"
	"github.com/danmuck/edgelink/internal/protocol/wire"
	"github.com/danmuck/edgelink/internal/transport"
)

var ErrAlreadyStarted = errors.New("bridge: service already started")

type Config struct {
	ID           string
	TickInterval time.Duration
	// DrainTimeout bounds how long Run keeps serving queued requests after
	// its context ends.
	DrainTimeout time.Duration
	Limits       wire.Limits
	Backoff      transport.BackoffConfig
	// Boot requests are queued with origin local before the link opens.
	Boot []protocol.Request
}

func DefaultConfig() Config {
	return Config{
		ID:           "edgelink",
		TickInterval: 10 * time.Millisecond,
		DrainTimeout: 2 * time.Second,
		Limits:       wire.DefaultLimits(),
		Backoff:      transport.DefaultBackoffConfig(),
	}
}

// Status is the service view served on the admin surface.
type Status struct {
	ID            string            `json:"id"`
	Running       bool              `json:"running"`
	Link          string            `json:"link,omitempty"`
	Connected     bool              `json:"connected"`
	Dispatch      dispatch.Snapshot `json:"dispatch"`
	FramesDecoded uint64            `json:"frames_decoded"`
	DecodeErrors  uint64            `json:"decode_errors"`
	ShortWrites   uint64            `json:"short_writes"`
	Dropped       uint64            `json:"dropped_responses"`
}

type Service struct {
	cfg     Config
	kind    string
	open    transport.Opener
	periph  Peripherals
	catalog *catalog.Catalog
	disp    *dispatch.Dispatcher

	base       context.Context
	cancelBase context.CancelFunc

	linkMu sync.RWMutex
	link   transport.Transport

	started       atomic.Bool
	running       atomic.Bool
	framesDecoded atomic.Uint64
	decodeErrors  atomic.Uint64
	shortWrites   atomic.Uint64
	dropped       atomic.Uint64
}

// New wires the catalog and dispatcher over p. kind labels the transport in
// logs and metrics.
func New(cfg Config, kind string, open transport.Opener, p Peripherals) *Service {
	def := DefaultConfig()
	if strings.TrimSpace(cfg.ID) == "" {
		cfg.ID = def.ID
	}
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = def.TickInterval
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = def.DrainTimeout
	}
	if cfg.Limits.MaxStringBytes == 0 || cfg.Limits.MaxBodyBytes == 0 {
		cfg.Limits = def.Limits
	}
	base, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:        cfg,
		kind:       kind,
		open:       open,
		periph:     p,
		base:       base,
		cancelBase: cancel,
	}
	s.catalog = catalog.New(base, p.Radio, p.Net)
	s.disp = dispatch.New(s.catalog, dispatch.EmitterFunc(s.emit))
	return s
}

// Submit queues a request as if it had arrived with the given origin.
func (s *Service) Submit(req protocol.Request, origin dispatch.Origin) dispatch.Item {
	return s.disp.Submit(req, origin)
}

// Run serves until ctx ends, then drains the queue and releases the
// peripherals. A Service runs once.
func (s *Service) Run(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}
	s.running.Store(true)
	defer s.running.Store(false)
	defer func() {
		if err := s.periph.Close(); err != nil {
			logs.Warnf("bridge.Service.Run close peripherals err=%v", err)
		}
	}()
	defer s.cancelBase()

	for _, req := range s.cfg.Boot {
		item := s.disp.Submit(req, dispatch.OriginLocal)
		logs.Infof("bridge.Service.Run boot request id=%s request=%s", item.ID, req.Name())
	}

	logs.Infof("bridge.Service.Run started id=%q transport=%s tick=%s", s.cfg.ID, s.kind, s.cfg.TickInterval)
	readerDone := make(chan error, 1)
	go func() {
		readerDone <- s.readLoop(ctx)
	}()

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			<-readerDone
			s.shutdown()
			return nil
		case err := <-readerDone:
			s.shutdown()
			return err
		case <-ticker.C:
			if _, err := s.disp.Step(ctx); err != nil {
				logs.Warnf("bridge.Service.Run step err=%v", err)
			}
		}
	}
}

func (s *Service) shutdown() {
	if s.disp.IsProcessing() {
		drainCtx, cancel := context.WithTimeout(context.Background(), s.cfg.DrainTimeout)
		if err := s.disp.Drain(drainCtx); err != nil {
			logs.Warnf("bridge.Service.shutdown drain err=%v", err)
		}
		cancel()
	}
	if link := s.swapLink(nil); link != nil {
		_ = link.Close()
	}
	logs.Infof("bridge.Service.shutdown stopped id=%q", s.cfg.ID)
}

// readLoop keeps one link open and feeds decoded requests to the dispatcher.
// It returns nil when ctx ends and an error when no link can be opened again.
func (s *Service) readLoop(ctx context.Context) error {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		link, err := transport.Connect(ctx, s.kind, s.open, s.cfg.Backoff, rng)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logs.Errf("bridge.Service.readLoop transport unavailable kind=%s err=%v", s.kind, err)
			return err
		}
		s.swapLink(link)
		logs.Infof("bridge.Service.readLoop link up link=%s", link)

		err = s.serveLink(ctx, link)
		if ctx.Err() != nil {
			return nil
		}
		logs.Warnf("bridge.Service.readLoop link lost link=%s err=%v", link, err)
		s.swapLink(nil)
		_ = link.Close()
	}
}

func (s *Service) serveLink(ctx context.Context, link transport.Transport) error {
	for {
		if err := link.WaitFrame(ctx); err != nil {
			return err
		}
		req, err := protocol.DecodeRequest(link, s.cfg.Limits)
		if err != nil {
			if !protocol.IsDecodeError(err) {
				return err
			}
			reason := protocol.DecodeReason(err)
			s.decodeErrors.Add(1)
			observability.RecordDecodeError(reason)
			dropped := 0
			if protocol.NeedsResync(err) {
				dropped = link.Discard()
			}
			logs.Warnf("bridge.Service.serveLink decode failed reason=%s discarded=%d err=%v", reason, dropped, err)
			continue
		}
		s.framesDecoded.Add(1)
		observability.RecordFrameDecoded(req.Name())
		s.disp.Submit(req, dispatch.OriginController)
	}
}

func (s *Service) emit(_ context.Context, item dispatch.Item, resp protocol.Response) {
	frame, err := protocol.EncodeResponse(resp)
	if err != nil {
		logs.Errf("bridge.Service.emit encode failed id=%s request=%s err=%v", item.ID, item.Request.Name(), err)
		frame, _ = protocol.EncodeResponse(protocol.ErrorResponse(protocol.CodeEncodeFailure))
	}

	if item.Origin == dispatch.OriginLocal {
		logs.Infof("bridge.Service.emit local id=%s request=%s response=%q", item.ID, item.Request.Name(), resp)
		return
	}

	link := s.currentLink()
	if link == nil {
		s.dropped.Add(1)
		logs.Warnf("bridge.Service.emit dropped id=%s request=%s reason=no_link", item.ID, item.Request.Name())
		return
	}
	n, err := link.Write(frame)
	if n < len(frame) {
		s.shortWrites.Add(1)
		observability.RecordShortWrite()
		logs.Warnf("bridge.Service.emit short write id=%s wrote=%d want=%d err=%v", item.ID, n, len(frame), err)
		return
	}
	logs.Debugf("bridge.Service.emit sent id=%s request=%s response=%q", item.ID, item.Request.Name(), resp)
}

func (s *Service) swapLink(link transport.Transport) transport.Transport {
	s.linkMu.Lock()
	defer s.linkMu.Unlock()
	prev := s.link
	s.link = link
	return prev
}

func (s *Service) currentLink() transport.Transport {
	s.linkMu.RLock()
	defer s.linkMu.RUnlock()
	return s.link
}

// Ready reports whether the service is running with a controller link open.
func (s *Service) Ready() bool {
	return s.running.Load() && s.currentLink() != nil
}

func (s *Service) Status() Status {
	st := Status{
		ID:            s.cfg.ID,
		Running:       s.running.Load(),
		Dispatch:      s.disp.Snapshot(),
		FramesDecoded: s.framesDecoded.Load(),
		DecodeErrors:  s.decodeErrors.Load(),
		ShortWrites:   s.shortWrites.Load(),
		Dropped:       s.dropped.Load(),
	}
	if link := s.currentLink(); link != nil {
		st.Link = link.String()
		st.Connected = true
	}
	return st
}

func (s *Service) Catalog() []catalog.Entry {
	return s.catalog.Entries()
}
