package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logs "github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/observability"
	"github.com/danmuck/edgelink/internal/protocol"
)

var ErrProtocolViolation = errors.New("dispatch: protocol violation")

// Resolver turns a request into a runnable operation. An unresolvable request
// returns an error wrapping ErrProtocolViolation.
type Resolver interface {
	Resolve(req protocol.Request) (Operation, error)
}

// Emitter receives every finished response in request order.
type Emitter interface {
	Emit(ctx context.Context, item Item, resp protocol.Response)
}

type EmitterFunc func(ctx context.Context, item Item, resp protocol.Response)

func (f EmitterFunc) Emit(ctx context.Context, item Item, resp protocol.Response) {
	f(ctx, item, resp)
}

type State uint8

const (
	StateIdle State = iota
	StateBusy
)

func (s State) String() string {
	if s == StateBusy {
		return "busy"
	}
	return "idle"
}

type slot struct {
	item     Item
	op       Operation
	placedAt time.Time
}

// InFlight describes the occupied slot.
type InFlight struct {
	ID       string    `json:"id"`
	Request  string    `json:"request"`
	Origin   string    `json:"origin"`
	PlacedAt time.Time `json:"placed_at"`
}

type Snapshot struct {
	State      string    `json:"state"`
	QueueDepth int       `json:"queue_depth"`
	InFlight   *InFlight `json:"in_flight,omitempty"`
	Accepted   uint64    `json:"accepted"`
	Completed  uint64    `json:"completed"`
	Violations uint64    `json:"violations"`
}

// Dispatcher drives the queue through the single in-flight slot. Step calls
// are serialized; Submit, IsProcessing and Snapshot are safe from
// any goroutine.
type Dispatcher struct {
	queue    *Queue
	resolver Resolver
	emitter  Emitter
	now      func() time.Time

	// stepMu serializes Step; mu guards the fields below.
	stepMu sync.Mutex

	mu         sync.Mutex
	slot       *slot
	resolving  bool
	accepted   uint64
	completed  uint64
	violations uint64
}

func New(resolver Resolver, emitter Emitter) *Dispatcher {
	return &Dispatcher{
		queue:    NewQueue(),
		resolver: resolver,
		emitter:  emitter,
		now:      time.Now,
	}
}

// Submit wraps req in an Item and appends it to the queue.
func (d *Dispatcher) Submit(req protocol.Request, origin Origin) Item {
	item := newItem(req, origin, d.now())
	d.mu.Lock()
	d.queue.Push(item)
	d.accepted++
	d.publishLocked()
	d.mu.Unlock()
	logs.Debugf("dispatch.Dispatcher.submit accepted id=%s request=%s origin=%s", item.ID, req.Name(), origin)
	return item
}

// Step makes at most one state transition and reports the resulting state.
// Resolving and polling run without d.mu held, so Submit, IsProcessing and
// Snapshot never wait on a peripheral.
func (d *Dispatcher) Step(ctx context.Context) (State, error) {
	d.stepMu.Lock()
	defer d.stepMu.Unlock()

	d.mu.Lock()
	cur := d.slot
	if cur == nil {
		item, ok := d.queue.PopFront()
		if !ok {
			d.mu.Unlock()
			return StateIdle, nil
		}
		d.resolving = true
		d.publishLocked()
		d.mu.Unlock()
		return d.place(ctx, item)
	}
	d.mu.Unlock()

	resp, done := cur.op.Poll()
	if !done {
		return StateBusy, nil
	}
	d.mu.Lock()
	d.slot = nil
	d.completed++
	d.publishLocked()
	d.mu.Unlock()

	elapsed := d.now().Sub(cur.placedAt)
	observability.RecordOperation(cur.item.Request.Name(), elapsed, !resp.IsError())
	logs.Debugf("dispatch.Dispatcher.step completed id=%s request=%s response=%q elapsed=%s",
		cur.item.ID, cur.item.Request.Name(), resp, elapsed)
	d.emit(ctx, cur.item, resp)
	return StateIdle, nil
}

// place resolves the popped head into the slot. While it runs the item is
// neither queued nor slotted; resolving keeps it visible to IsProcessing.
func (d *Dispatcher) place(ctx context.Context, item Item) (State, error) {
	op, err := d.resolver.Resolve(item.Request)

	d.mu.Lock()
	d.resolving = false
	if err != nil || op == nil {
		d.violations++
		d.publishLocked()
		d.mu.Unlock()
		return StateIdle, d.violation(ctx, item, err)
	}
	d.slot = &slot{item: item, op: op, placedAt: d.now()}
	d.publishLocked()
	d.mu.Unlock()
	logs.Debugf("dispatch.Dispatcher.step placed id=%s request=%s", item.ID, item.Request.Name())
	return StateBusy, nil
}

func (d *Dispatcher) violation(ctx context.Context, item Item, cause error) error {
	observability.RecordProtocolViolation()
	var err error
	switch {
	case cause == nil:
		err = fmt.Errorf("%w: no operation for %s id=%s", ErrProtocolViolation, item.Request.Name(), item.ID)
	case errors.Is(cause, ErrProtocolViolation):
		err = fmt.Errorf("dispatch: request id=%s: %w", item.ID, cause)
	default:
		err = fmt.Errorf("%w: request id=%s: %v", ErrProtocolViolation, item.ID, cause)
	}
	logs.Errf("dispatch.Dispatcher.step violation id=%s request=%s err=%v", item.ID, item.Request.Name(), err)
	d.emit(ctx, item, protocol.ErrorResponse(protocol.CodeProtocolViolation))
	return err
}

func (d *Dispatcher) emit(ctx context.Context, item Item, resp protocol.Response) {
	observability.RecordResponse(resp.Kind.String(), item.Origin.String())
	if d.emitter != nil {
		d.emitter.Emit(ctx, item, resp)
	}
}

// IsProcessing is true while the slot is occupied, the head is being
// resolved, or the queue is non-empty.
func (d *Dispatcher) IsProcessing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.slot != nil || d.resolving || d.queue.Len() > 0
}

// Drain steps until nothing is queued or in flight. Protocol violations met on
// the way are joined into the returned error.
func (d *Dispatcher) Drain(ctx context.Context) error {
	var errs []error
	for d.IsProcessing() {
		if err := ctx.Err(); err != nil {
			return errors.Join(append(errs, err)...)
		}
		state, err := d.Step(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if state == StateBusy {
			if err := d.waitSlot(ctx); err != nil {
				return errors.Join(append(errs, err)...)
			}
		}
	}
	return errors.Join(errs...)
}

// waitSlot blocks until the in-flight operation can complete or ctx ends.
func (d *Dispatcher) waitSlot(ctx context.Context) error {
	d.mu.Lock()
	cur := d.slot
	d.mu.Unlock()
	if cur == nil {
		return nil
	}
	if w, ok := cur.op.(interface{ Done() <-chan struct{} }); ok {
		select {
		case <-w.Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	timer := time.NewTimer(time.Millisecond)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) Snapshot() Snapshot {
	d.mu.Lock()
	defer d.mu.Unlock()
	snap := Snapshot{
		State:      StateIdle.String(),
		QueueDepth: d.queue.Len(),
		Accepted:   d.accepted,
		Completed:  d.completed,
		Violations: d.violations,
	}
	if d.resolving {
		snap.State = StateBusy.String()
	}
	if d.slot != nil {
		snap.State = StateBusy.String()
		snap.InFlight = &InFlight{
			ID:       d.slot.item.ID.String(),
			Request:  d.slot.item.Request.Name(),
			Origin:   d.slot.item.Origin.String(),
			PlacedAt: d.slot.placedAt,
		}
	}
	return snap
}

func (d *Dispatcher) publishLocked() {
	observability.SetDispatchState(d.queue.Len(), d.slot != nil || d.resolving)
}
