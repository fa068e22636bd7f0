package dispatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/edgelink/internal/protocol"
	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

type manualOp struct {
	mu   sync.Mutex
	resp protocol.Response
	done bool
}

func (o *manualOp) finish(resp protocol.Response) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.resp = resp
	o.done = true
}

func (o *manualOp) Poll() (protocol.Response, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.resp, o.done
}

type resolverFunc func(req protocol.Request) (Operation, error)

func (f resolverFunc) Resolve(req protocol.Request) (Operation, error) {
	return f(req)
}

type emitted struct {
	item Item
	resp protocol.Response
}

type recorder struct {
	mu  sync.Mutex
	out []emitted
}

func (r *recorder) Emit(_ context.Context, item Item, resp protocol.Response) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.out = append(r.out, emitted{item: item, resp: resp})
}

func (r *recorder) list() []emitted {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]emitted(nil), r.out...)
}

func TestQueueFIFO(t *testing.T) {
	testlog.Start(t)
	q := NewQueue()
	if _, ok := q.PopFront(); ok {
		t.Fatalf("empty queue must report false")
	}
	ops := []protocol.RadioOp{protocol.RadioStart, protocol.RadioScan, protocol.RadioStop}
	for _, op := range ops {
		q.Push(newItem(protocol.NewRadioRequest(op), OriginController, time.Now()))
	}
	if q.Len() != 3 || len(q.List()) != 3 {
		t.Fatalf("unexpected len %d", q.Len())
	}
	for i, op := range ops {
		item, ok := q.PopFront()
		if !ok || item.Request.Radio.Op != op {
			t.Fatalf("pop %d: got %+v ok=%t", i, item.Request, ok)
		}
	}
	if q.Len() != 0 {
		t.Fatalf("queue must be empty")
	}
}

func TestFuturePollNeverBlocks(t *testing.T) {
	testlog.Start(t)
	gate := make(chan struct{})
	f := Go(func() protocol.Response {
		<-gate
		return protocol.AckResponse(protocol.KindStartAck)
	})
	if _, done := f.Poll(); done {
		t.Fatalf("future must be pending before the task ends")
	}
	close(gate)
	<-f.Done()
	resp, done := f.Poll()
	if !done || resp.Kind != protocol.KindStartAck {
		t.Fatalf("unexpected poll result %v done=%t", resp, done)
	}

	ready := Ready(protocol.BoolResponse(protocol.KindStarted, true))
	if resp, done := ready.Poll(); !done || !resp.Value {
		t.Fatalf("ready future must be complete")
	}
}

func TestDispatcherStepTransitions(t *testing.T) {
	testlog.Start(t)
	op := &manualOp{}
	rec := &recorder{}
	d := New(resolverFunc(func(protocol.Request) (Operation, error) { return op, nil }), rec)
	ctx := context.Background()

	if state, err := d.Step(ctx); err != nil || state != StateIdle {
		t.Fatalf("empty step: state=%s err=%v", state, err)
	}
	if d.IsProcessing() {
		t.Fatalf("idle dispatcher must not be processing")
	}

	d.Submit(protocol.NewRadioRequest(protocol.RadioScan), OriginController)
	if !d.IsProcessing() {
		t.Fatalf("queued request must count as processing")
	}
	if state, _ := d.Step(ctx); state != StateBusy {
		t.Fatalf("expected busy after placement, got %s", state)
	}
	if state, _ := d.Step(ctx); state != StateBusy {
		t.Fatalf("pending poll must stay busy, got %s", state)
	}
	if len(rec.list()) != 0 {
		t.Fatalf("nothing may be emitted before completion")
	}

	op.finish(protocol.NetworksResponse(nil))
	if state, _ := d.Step(ctx); state != StateIdle {
		t.Fatalf("expected idle after completion, got %s", state)
	}
	out := rec.list()
	if len(out) != 1 || out[0].resp.Kind != protocol.KindNetworks {
		t.Fatalf("unexpected emitted responses %+v", out)
	}
	if d.IsProcessing() {
		t.Fatalf("dispatcher must be idle")
	}
}

func TestDispatcherSingleFlightPreservesOrder(t *testing.T) {
	testlog.Start(t)
	var active, peak atomic.Int32
	rec := &recorder{}
	d := New(resolverFunc(func(req protocol.Request) (Operation, error) {
		return Go(func() protocol.Response {
			n := active.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
			return protocol.AckResponse(protocol.KindStartAck)
		}), nil
	}), rec)

	var ids []string
	for i := 0; i < 6; i++ {
		item := d.Submit(protocol.NewRadioRequest(protocol.RadioStart), OriginController)
		ids = append(ids, item.ID.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	if peak.Load() != 1 {
		t.Fatalf("expected single flight, peak=%d", peak.Load())
	}
	out := rec.list()
	if len(out) != len(ids) {
		t.Fatalf("expected %d responses, got %d", len(ids), len(out))
	}
	for i, e := range out {
		if e.item.ID.String() != ids[i] {
			t.Fatalf("response %d out of order: %s != %s", i, e.item.ID, ids[i])
		}
	}
	snap := d.Snapshot()
	if snap.Accepted != 6 || snap.Completed != 6 || snap.QueueDepth != 0 || snap.InFlight != nil {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
}

func TestDispatcherProtocolViolationEmitsErrorAndContinues(t *testing.T) {
	testlog.Start(t)
	rec := &recorder{}
	d := New(resolverFunc(func(req protocol.Request) (Operation, error) {
		if req.Family == protocol.FamilyNetwork {
			return nil, errors.New("no entry")
		}
		return Ready(protocol.BoolResponse(protocol.KindStarted, false)), nil
	}), rec)
	ctx := context.Background()

	d.Submit(protocol.NewNetworkRequest("http://x", protocol.MethodGet), OriginController)
	d.Submit(protocol.NewRadioRequest(protocol.RadioIsStarted), OriginController)

	_, err := d.Step(ctx)
	if !errors.Is(err, ErrProtocolViolation) {
		t.Fatalf("expected protocol violation, got %v", err)
	}
	out := rec.list()
	if len(out) != 1 || !out[0].resp.IsError() || out[0].resp.Code != protocol.CodeProtocolViolation {
		t.Fatalf("expected violation error response, got %+v", out)
	}

	if err := d.Drain(ctx); err != nil {
		t.Fatalf("drain: %v", err)
	}
	out = rec.list()
	if len(out) != 2 || out[1].resp.Kind != protocol.KindStarted {
		t.Fatalf("following request must still be served, got %+v", out)
	}
	if snap := d.Snapshot(); snap.Violations != 1 {
		t.Fatalf("expected one violation, got %+v", snap)
	}
}

func TestDispatcherSnapshotReportsInFlight(t *testing.T) {
	testlog.Start(t)
	op := &manualOp{}
	d := New(resolverFunc(func(protocol.Request) (Operation, error) { return op, nil }), nil)
	item := d.Submit(protocol.NewRadioRequest(protocol.RadioConnect), OriginLocal)
	d.Submit(protocol.NewRadioRequest(protocol.RadioIsConnected), OriginController)
	_, _ = d.Step(context.Background())

	snap := d.Snapshot()
	if snap.State != "busy" || snap.QueueDepth != 1 || snap.InFlight == nil {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.InFlight.ID != item.ID.String() || snap.InFlight.Request != "radio.connect" || snap.InFlight.Origin != "local" {
		t.Fatalf("unexpected in-flight %+v", snap.InFlight)
	}
}

func TestDrainHonoursContext(t *testing.T) {
	testlog.Start(t)
	d := New(resolverFunc(func(protocol.Request) (Operation, error) { return &manualOp{}, nil }), nil)
	d.Submit(protocol.NewRadioRequest(protocol.RadioScan), OriginController)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.Drain(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}
}

func TestDispatcherSubmitNotBlockedBySlowResolve(t *testing.T) {
	testlog.Start(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32
	d := New(resolverFunc(func(req protocol.Request) (Operation, error) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
		return Ready(protocol.BoolResponse(protocol.KindStarted, true)), nil
	}), &recorder{})

	d.Submit(protocol.NewRadioRequest(protocol.RadioIsStarted), OriginController)
	stepped := make(chan State, 1)
	go func() {
		state, _ := d.Step(context.Background())
		stepped <- state
	}()
	<-entered

	start := time.Now()
	d.Submit(protocol.NewRadioRequest(protocol.RadioIsConnected), OriginController)
	busy := d.IsProcessing()
	snap := d.Snapshot()
	if elapsed := time.Since(start); elapsed > 50*time.Millisecond {
		t.Fatalf("submit waited %s on resolve", elapsed)
	}
	if !busy || snap.State != StateBusy.String() || snap.QueueDepth != 1 {
		t.Fatalf("resolving head must count as processing: busy=%t snap=%+v", busy, snap)
	}

	close(release)
	if state := <-stepped; state != StateBusy {
		t.Fatalf("expected busy after placement, got %s", state)
	}
}
