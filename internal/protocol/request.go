package protocol

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/danmuck/edgelink/internal/protocol/wire"
)

// Family is the leading request tag.
type Family uint8

const (
	FamilyRadio   Family = 0
	FamilyNetwork Family = 1
)

func (f Family) String() string {
	switch f {
	case FamilyRadio:
		return "radio"
	case FamilyNetwork:
		return "network"
	default:
		return fmt.Sprintf("family(%d)", uint8(f))
	}
}

// RadioOp is the radio sub-tag, in catalog order.
type RadioOp uint8

const (
	RadioIsStarted RadioOp = iota
	RadioIsConnected
	RadioCapabilities
	RadioStart
	RadioStop
	RadioScan
	RadioConnect
	RadioDisconnect
	RadioSetConfig

	radioOpCount
)

var radioOpNames = [...]string{
	RadioIsStarted:    "is_started",
	RadioIsConnected:  "is_connected",
	RadioCapabilities: "capabilities",
	RadioStart:        "start",
	RadioStop:         "stop",
	RadioScan:         "scan",
	RadioConnect:      "connect",
	RadioDisconnect:   "disconnect",
	RadioSetConfig:    "set_config",
}

func (op RadioOp) Valid() bool {
	return op < radioOpCount
}

func (op RadioOp) String() string {
	if op.Valid() {
		return radioOpNames[op]
	}
	return fmt.Sprintf("radio_op(%d)", uint8(op))
}

// RadioOps lists every radio op in sub-tag order.
func RadioOps() []RadioOp {
	out := make([]RadioOp, 0, radioOpCount)
	for op := RadioOp(0); op < radioOpCount; op++ {
		out = append(out, op)
	}
	return out
}

// ParseRadioOp maps the op name back to its sub-tag.
func ParseRadioOp(name string) (RadioOp, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for op, n := range radioOpNames {
		if n == name {
			return RadioOp(op), true
		}
	}
	return 0, false
}

// Method is the network-call method tag.
type Method uint8

const (
	MethodDelete Method = iota
	MethodGet
	MethodHead
	MethodPost
	MethodPut

	methodCount
)

var methodNames = [...]string{
	MethodDelete: "DELETE",
	MethodGet:    "GET",
	MethodHead:   "HEAD",
	MethodPost:   "POST",
	MethodPut:    "PUT",
}

func (m Method) Valid() bool {
	return m < methodCount
}

// HasHeaders reports whether the method carries a header list on the wire.
func (m Method) HasHeaders() bool {
	return m == MethodHead || m == MethodPost || m == MethodPut
}

func (m Method) String() string {
	if m.Valid() {
		return methodNames[m]
	}
	return fmt.Sprintf("method(%d)", uint8(m))
}

func ParseMethod(name string) (Method, bool) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for m, n := range methodNames {
		if n == name {
			return Method(m), true
		}
	}
	return 0, false
}

// Header is one key/value pair of a network call.
type Header struct {
	Key   string
	Value string
}

// RadioAction is the radio family payload. Config is only meaningful for
// RadioSetConfig.
type RadioAction struct {
	Op     RadioOp
	Config ClientConfig
}

// NetworkCall is the network family payload.
type NetworkCall struct {
	URL     string
	Method  Method
	Headers []Header
}

// Request is one decoded controller command.
type Request struct {
	Family  Family
	Radio   RadioAction
	Network NetworkCall
}

func NewRadioRequest(op RadioOp) Request {
	return Request{Family: FamilyRadio, Radio: RadioAction{Op: op}}
}

func NewSetConfigRequest(cfg ClientConfig) Request {
	return Request{Family: FamilyRadio, Radio: RadioAction{Op: RadioSetConfig, Config: cfg}}
}

func NewNetworkRequest(url string, method Method, headers ...Header) Request {
	return Request{Family: FamilyNetwork, Network: NetworkCall{URL: url, Method: method, Headers: headers}}
}

// Name is the catalog name used in logs and metrics.
func (r Request) Name() string {
	switch r.Family {
	case FamilyRadio:
		return "radio." + r.Radio.Op.String()
	case FamilyNetwork:
		return "network." + strings.ToLower(r.Network.Method.String())
	default:
		return r.Family.String()
	}
}

// Validate enforces the constraints the encoder needs to produce a frame that
// decodes back to the same value.
func (r Request) Validate() error {
	switch r.Family {
	case FamilyRadio:
		if !r.Radio.Op.Valid() {
			return fmt.Errorf("%w: %s", ErrInvalidRequest, r.Radio.Op)
		}
		if r.Radio.Op != RadioSetConfig {
			if r.Radio.Config != (ClientConfig{}) {
				return fmt.Errorf("%w: config only allowed on set_config", ErrInvalidRequest)
			}
			return nil
		}
		return r.Radio.Config.Validate()
	case FamilyNetwork:
		return r.Network.Validate()
	default:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, r.Family)
	}
}

func (c NetworkCall) Validate() error {
	if !c.Method.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, c.Method)
	}
	if strings.TrimSpace(c.URL) == "" {
		return fmt.Errorf("%w: missing url", ErrInvalidRequest)
	}
	if !utf8.ValidString(c.URL) {
		return fmt.Errorf("%w: url", ErrInvalidUTF8)
	}
	if !c.Method.HasHeaders() && len(c.Headers) > 0 {
		return fmt.Errorf("%w: %s carries no headers", ErrInvalidRequest, c.Method)
	}
	if len(c.Headers) > wire.MaxListLen {
		return fmt.Errorf("%w: %d headers", ErrListTooLong, len(c.Headers))
	}
	for i, h := range c.Headers {
		if !utf8.ValidString(h.Key) || !utf8.ValidString(h.Value) {
			return fmt.Errorf("%w: header %d", ErrInvalidUTF8, i)
		}
	}
	return nil
}
