package protocol

import (
	"fmt"
	"unicode/utf8"

	"github.com/danmuck/edgelink/internal/protocol/wire"
)

// DecodeRequest reads exactly one request frame from src.
func DecodeRequest(src wire.Source, limits wire.Limits) (Request, error) {
	tag, err := wire.ReadU8(src)
	if err != nil {
		return Request{}, err
	}
	switch Family(tag) {
	case FamilyRadio:
		action, err := decodeRadioAction(src)
		if err != nil {
			return Request{}, err
		}
		return Request{Family: FamilyRadio, Radio: action}, nil
	case FamilyNetwork:
		call, err := decodeNetworkCall(src, limits)
		if err != nil {
			return Request{}, err
		}
		return Request{Family: FamilyNetwork, Network: call}, nil
	default:
		return Request{}, fmt.Errorf("%w: request family %d", ErrUnknownTag, tag)
	}
}

func decodeRadioAction(src wire.Source) (RadioAction, error) {
	sub, err := wire.ReadU8(src)
	if err != nil {
		return RadioAction{}, err
	}
	op := RadioOp(sub)
	if !op.Valid() {
		return RadioAction{}, fmt.Errorf("%w: radio op %d", ErrUnknownTag, sub)
	}
	if op != RadioSetConfig {
		return RadioAction{Op: op}, nil
	}
	cfg, err := decodeClientConfig(src)
	if err != nil {
		return RadioAction{}, err
	}
	return RadioAction{Op: op, Config: cfg}, nil
}

// decodeClientConfig reads the fixed credential record. Undecodable text
// yields the zero config; an unknown auth code yields AuthNone.
func decodeClientConfig(src wire.Source) (ClientConfig, error) {
	b, err := src.ReadExact(ClientConfigLen)
	if err != nil {
		return ClientConfig{}, err
	}
	ssid := wire.TrimPadding(b[:SSIDFieldLen])
	pass := wire.TrimPadding(b[SSIDFieldLen : SSIDFieldLen+PasswordFieldLen])
	if !utf8.Valid(ssid) || !utf8.Valid(pass) {
		return ClientConfig{}, nil
	}
	return ClientConfig{
		SSID:     string(ssid),
		Password: string(pass),
		Auth:     AuthMethodFromCode(b[ClientConfigLen-1]),
	}, nil
}

func decodeNetworkCall(src wire.Source, limits wire.Limits) (NetworkCall, error) {
	url, err := wire.ReadString(src, limits.MaxStringBytes)
	if err != nil {
		return NetworkCall{}, err
	}
	tag, err := wire.ReadU8(src)
	if err != nil {
		return NetworkCall{}, err
	}
	method := Method(tag)
	if !method.Valid() {
		return NetworkCall{}, fmt.Errorf("%w: method %d", ErrUnknownTag, tag)
	}
	call := NetworkCall{URL: url, Method: method}
	if !method.HasHeaders() {
		return call, nil
	}

	count, err := wire.ReadU8(src)
	if err != nil {
		return NetworkCall{}, err
	}
	if count == 0 {
		return call, nil
	}
	call.Headers = make([]Header, 0, count)
	for i := 0; i < int(count); i++ {
		key, err := wire.ReadString(src, limits.MaxStringBytes)
		if err != nil {
			return NetworkCall{}, err
		}
		value, err := wire.ReadString(src, limits.MaxStringBytes)
		if err != nil {
			return NetworkCall{}, err
		}
		call.Headers = append(call.Headers, Header{Key: key, Value: value})
	}
	return call, nil
}

// DecodeResponse reads exactly one response frame from src.
func DecodeResponse(src wire.Source, limits wire.Limits) (Response, error) {
	tag, err := wire.ReadU8(src)
	if err != nil {
		return Response{}, err
	}
	kind := Kind(tag)
	if !kind.Valid() {
		return Response{}, fmt.Errorf("%w: response kind %d", ErrUnknownTag, tag)
	}
	if kind == KindError {
		code, err := wire.ReadI32(src)
		if err != nil {
			return Response{}, err
		}
		return ErrorResponse(code), nil
	}

	status, err := wire.ReadU8(src)
	if err != nil {
		return Response{}, err
	}
	if status != StatusOK {
		return Response{}, fmt.Errorf("%w: %d", ErrInvalidStatus, status)
	}

	switch kind {
	case KindStarted, KindConnected:
		b, err := wire.ReadU8(src)
		if err != nil {
			return Response{}, err
		}
		if b > 1 {
			return Response{}, fmt.Errorf("%w: %d", ErrInvalidBool, b)
		}
		return BoolResponse(kind, b == 1), nil
	case KindCapabilities:
		b, err := wire.ReadU8(src)
		if err != nil {
			return Response{}, err
		}
		return CapabilitiesResponse(Capabilities(b)), nil
	case KindNetworks:
		aps, err := decodeNetworks(src)
		if err != nil {
			return Response{}, err
		}
		return NetworksResponse(aps), nil
	case KindNetworkBody:
		body, err := wire.ReadBytes(src, limits.MaxBodyBytes)
		if err != nil {
			return Response{}, err
		}
		return BodyResponse(body), nil
	default:
		return AckResponse(kind), nil
	}
}

func decodeNetworks(src wire.Source) ([]AccessPoint, error) {
	count, err := wire.ReadU8(src)
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	aps := make([]AccessPoint, 0, count)
	for i := 0; i < int(count); i++ {
		b, err := src.ReadExact(AccessPointLen)
		if err != nil {
			return nil, err
		}
		ssid := wire.TrimPadding(b[:SSIDFieldLen])
		if !utf8.Valid(ssid) {
			return nil, fmt.Errorf("%w: network %d ssid", ErrInvalidUTF8, i)
		}
		ap := AccessPoint{SSID: string(ssid)}
		copy(ap.BSSID[:], b[SSIDFieldLen:SSIDFieldLen+BSSIDLen])
		ap.Channel = b[SSIDFieldLen+BSSIDLen]
		ap.RSSI = int8(b[SSIDFieldLen+BSSIDLen+1])
		aps = append(aps, ap)
	}
	return aps, nil
}
