// Package catalog is the closed table of operations a controller may invoke.
// Each request variant maps to exactly one peripheral call and one response
// kind.
package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/danmuck/edgelink/internal/dispatch"
	logs "github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/netcall"
	"github.com/danmuck/edgelink/internal/observability"
	"github.com/danmuck/edgelink/internal/protocol"
	"github.com/danmuck/edgelink/internal/protocol/wire"
	"github.com/danmuck/edgelink/internal/radio"
)

// ErrProtocolViolation marks a request with no catalog entry or no peripheral
// to serve it.
var ErrProtocolViolation = dispatch.ErrProtocolViolation

// Entry describes one catalog row.
type Entry struct {
	Name      string `json:"name"`
	Family    string `json:"family"`
	Tag       uint8  `json:"tag"`
	Response  string `json:"response"`
	Immediate bool   `json:"immediate"`
}

var radioResponses = [...]protocol.Kind{
	protocol.RadioIsStarted:    protocol.KindStarted,
	protocol.RadioIsConnected:  protocol.KindConnected,
	protocol.RadioCapabilities: protocol.KindCapabilities,
	protocol.RadioStart:        protocol.KindStartAck,
	protocol.RadioStop:         protocol.KindStopAck,
	protocol.RadioScan:         protocol.KindNetworks,
	protocol.RadioConnect:      protocol.KindConnectAck,
	protocol.RadioDisconnect:   protocol.KindDisconnectAck,
	protocol.RadioSetConfig:    protocol.KindConfiguredAck,
}

// Catalog resolves requests against the owned peripherals.
type Catalog struct {
	base  context.Context
	radio radio.Controller
	net   netcall.Client
}

var _ dispatch.Resolver = (*Catalog)(nil)

// New binds the peripherals. base bounds every operation the catalog starts;
// cancelling it aborts in-flight peripheral calls. Either peripheral may be
// nil, in which case its requests are protocol violations.
func New(base context.Context, r radio.Controller, n netcall.Client) *Catalog {
	if base == nil {
		base = context.Background()
	}
	return &Catalog{base: base, radio: r, net: n}
}

func (c *Catalog) Resolve(req protocol.Request) (dispatch.Operation, error) {
	switch req.Family {
	case protocol.FamilyRadio:
		return c.resolveRadio(req.Radio)
	case protocol.FamilyNetwork:
		return c.resolveNetwork(req.Network)
	default:
		return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, req.Family)
	}
}

func (c *Catalog) resolveRadio(action protocol.RadioAction) (dispatch.Operation, error) {
	if !action.Op.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, action.Op)
	}
	if c.radio == nil {
		return nil, fmt.Errorf("%w: no radio for %s", ErrProtocolViolation, action.Op)
	}
	r := c.radio
	kind := radioResponses[action.Op]

	if isQuery(action.Op) {
		query := func() protocol.Response { return c.query(action.Op, kind) }
		if c.queriesBlock() {
			return dispatch.Go(query), nil
		}
		return dispatch.Ready(query()), nil
	}

	switch action.Op {
	case protocol.RadioScan:
		return dispatch.Go(func() protocol.Response {
			aps, err := r.Scan(c.base)
			if err != nil {
				return radioFailure(action.Op, err)
			}
			if len(aps) > wire.MaxListLen {
				logs.Warnf("catalog.Catalog.scan truncated found=%d kept=%d", len(aps), wire.MaxListLen)
				aps = aps[:wire.MaxListLen]
			}
			return protocol.NetworksResponse(aps)
		}), nil
	case protocol.RadioSetConfig:
		cfg := action.Config
		return dispatch.Go(func() protocol.Response {
			return ackOrError(action.Op, kind, r.SetConfiguration(cfg))
		}), nil
	}

	var call func(context.Context) error
	switch action.Op {
	case protocol.RadioStart:
		call = r.Start
	case protocol.RadioStop:
		call = r.Stop
	case protocol.RadioConnect:
		call = r.Connect
	case protocol.RadioDisconnect:
		call = r.Disconnect
	}
	return dispatch.Go(func() protocol.Response {
		return ackOrError(action.Op, kind, call(c.base))
	}), nil
}

func (c *Catalog) query(op protocol.RadioOp, kind protocol.Kind) protocol.Response {
	switch op {
	case protocol.RadioIsStarted:
		v, err := c.radio.IsStarted()
		return boolOrError(op, kind, v, err)
	case protocol.RadioIsConnected:
		v, err := c.radio.IsConnected()
		return boolOrError(op, kind, v, err)
	default:
		caps, err := c.radio.Capabilities()
		if err != nil {
			return radioFailure(op, err)
		}
		return protocol.CapabilitiesResponse(caps)
	}
}

// queriesBlock reports whether the radio's query methods do I/O and so must
// run off the dispatcher step.
func (c *Catalog) queriesBlock() bool {
	b, ok := c.radio.(radio.QueryBlocker)
	return ok && b.QueriesBlock()
}

func (c *Catalog) resolveNetwork(call protocol.NetworkCall) (dispatch.Operation, error) {
	if !call.Method.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrProtocolViolation, call.Method)
	}
	if c.net == nil {
		return nil, fmt.Errorf("%w: no network client", ErrProtocolViolation)
	}
	client := c.net
	return dispatch.Go(func() protocol.Response {
		start := time.Now()
		body, err := client.Do(c.base, call)
		code := netcall.CodeOf(err)
		observability.RecordNetCall(call.Method.String(), code, time.Since(start))
		if err != nil {
			logs.Warnf("catalog.Catalog.network failed method=%s url=%q code=%d err=%v", call.Method, call.URL, code, err)
			return protocol.ErrorResponse(code)
		}
		return protocol.BodyResponse(body)
	}), nil
}

// Entries lists the table in wire order.
func (c *Catalog) Entries() []Entry {
	out := make([]Entry, 0, len(radioResponses)+1)
	for _, op := range protocol.RadioOps() {
		out = append(out, Entry{
			Name:      protocol.NewRadioRequest(op).Name(),
			Family:    protocol.FamilyRadio.String(),
			Tag:       uint8(op),
			Response:  radioResponses[op].String(),
			Immediate: isQuery(op) && (c.radio == nil || !c.queriesBlock()),
		})
	}
	out = append(out, Entry{
		Name:     "network.request",
		Family:   protocol.FamilyNetwork.String(),
		Tag:      uint8(protocol.FamilyNetwork),
		Response: protocol.KindNetworkBody.String(),
	})
	return out
}

// isQuery reports the side-effect-free ops. They resolve without a goroutine
// unless the radio declares its queries blocking.
func isQuery(op protocol.RadioOp) bool {
	return op == protocol.RadioIsStarted || op == protocol.RadioIsConnected || op == protocol.RadioCapabilities
}

func boolOrError(op protocol.RadioOp, kind protocol.Kind, v bool, err error) protocol.Response {
	if err != nil {
		return radioFailure(op, err)
	}
	return protocol.BoolResponse(kind, v)
}

func ackOrError(op protocol.RadioOp, kind protocol.Kind, err error) protocol.Response {
	if err != nil {
		return radioFailure(op, err)
	}
	return protocol.AckResponse(kind)
}

func radioFailure(op protocol.RadioOp, err error) protocol.Response {
	code := radio.CodeOf(err)
	logs.Warnf("catalog.Catalog.radio failed op=%s code=%d err=%v", op, code, err)
	return protocol.ErrorResponse(code)
}
