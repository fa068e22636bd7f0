package protocol

import (
	"fmt"

	"github.com/danmuck/edgelink/internal/protocol/wire"
)

// Kind is the leading response tag.
type Kind uint8

const (
	KindError Kind = iota
	KindStarted
	KindConnected
	KindNetworks
	KindCapabilities
	KindStartAck
	KindStopAck
	KindConnectAck
	KindDisconnectAck
	KindConfiguredAck
	KindNetworkBody

	kindCount
)

// StatusOK follows the kind byte on every non-error response.
const StatusOK uint8 = 1

var kindNames = [...]string{
	KindError:         "error",
	KindStarted:       "started",
	KindConnected:     "connected",
	KindNetworks:      "networks",
	KindCapabilities:  "capabilities",
	KindStartAck:      "start_ack",
	KindStopAck:       "stop_ack",
	KindConnectAck:    "connect_ack",
	KindDisconnectAck: "disconnect_ack",
	KindConfiguredAck: "configured_ack",
	KindNetworkBody:   "network_body",
}

func (k Kind) Valid() bool {
	return k < kindCount
}

func (k Kind) String() string {
	if k.Valid() {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// IsAck reports whether the kind is a payload-free acknowledgement.
func (k Kind) IsAck() bool {
	return k >= KindStartAck && k <= KindConfiguredAck
}

// Error codes produced by this service itself. Peripheral codes pass through
// unchanged.
const (
	CodeFailure           int32 = -1
	CodeProtocolViolation int32 = -0x7001
	CodeEncodeFailure     int32 = -0x7002
)

// Response is one operation result. Only the fields selected by Kind are
// meaningful.
type Response struct {
	Kind         Kind
	Code         int32
	Value        bool
	Networks     []AccessPoint
	Capabilities Capabilities
	Body         []byte
}

func ErrorResponse(code int32) Response {
	return Response{Kind: KindError, Code: code}
}

func BoolResponse(kind Kind, v bool) Response {
	return Response{Kind: kind, Value: v}
}

func AckResponse(kind Kind) Response {
	return Response{Kind: kind}
}

func NetworksResponse(aps []AccessPoint) Response {
	return Response{Kind: KindNetworks, Networks: aps}
}

func CapabilitiesResponse(c Capabilities) Response {
	return Response{Kind: KindCapabilities, Capabilities: c}
}

func BodyResponse(body []byte) Response {
	return Response{Kind: KindNetworkBody, Body: body}
}

func (r Response) IsError() bool {
	return r.Kind == KindError
}

func (r Response) Validate() error {
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: %s", ErrInvalidResponse, r.Kind)
	}
	if r.Kind != KindNetworks {
		return nil
	}
	if len(r.Networks) > wire.MaxListLen {
		return fmt.Errorf("%w: %d networks", ErrListTooLong, len(r.Networks))
	}
	for i, ap := range r.Networks {
		if err := ap.Validate(); err != nil {
			return fmt.Errorf("network %d: %w", i, err)
		}
	}
	return nil
}

func (r Response) String() string {
	switch r.Kind {
	case KindError:
		return fmt.Sprintf("error code=%d", r.Code)
	case KindStarted, KindConnected:
		return fmt.Sprintf("%s=%t", r.Kind, r.Value)
	case KindNetworks:
		return fmt.Sprintf("networks count=%d", len(r.Networks))
	case KindCapabilities:
		return fmt.Sprintf("capabilities=%s", r.Capabilities)
	case KindNetworkBody:
		return fmt.Sprintf("network_body bytes=%d", len(r.Body))
	default:
		return r.Kind.String()
	}
}
