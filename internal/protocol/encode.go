package protocol

import (
	"fmt"

	"github.com/danmuck/edgelink/internal/protocol/wire"
)

// EncodeRequest renders req as one request frame.
func EncodeRequest(req Request) ([]byte, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	out := []byte{byte(req.Family)}
	switch req.Family {
	case FamilyRadio:
		out = append(out, byte(req.Radio.Op))
		if req.Radio.Op == RadioSetConfig {
			return appendClientConfig(out, req.Radio.Config)
		}
		return out, nil
	case FamilyNetwork:
		return appendNetworkCall(out, req.Network)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidRequest, req.Family)
	}
}

func appendClientConfig(out []byte, cfg ClientConfig) ([]byte, error) {
	out, err := wire.AppendFixed(out, []byte(cfg.SSID), SSIDFieldLen)
	if err != nil {
		return nil, err
	}
	out, err = wire.AppendFixed(out, []byte(cfg.Password), PasswordFieldLen)
	if err != nil {
		return nil, err
	}
	return append(out, byte(cfg.Auth)), nil
}

func appendNetworkCall(out []byte, call NetworkCall) ([]byte, error) {
	out = wire.AppendString(out, call.URL)
	out = append(out, byte(call.Method))
	if !call.Method.HasHeaders() {
		return out, nil
	}
	out, err := wire.AppendCount(out, len(call.Headers))
	if err != nil {
		return nil, err
	}
	for _, h := range call.Headers {
		out = wire.AppendString(out, h.Key)
		out = wire.AppendString(out, h.Value)
	}
	return out, nil
}

// EncodeResponse renders resp as one response frame.
func EncodeResponse(resp Response) ([]byte, error) {
	if err := resp.Validate(); err != nil {
		return nil, err
	}
	out := []byte{byte(resp.Kind)}
	if resp.Kind == KindError {
		return wire.AppendI32(out, resp.Code), nil
	}
	out = append(out, StatusOK)

	switch resp.Kind {
	case KindStarted, KindConnected:
		return append(out, boolByte(resp.Value)), nil
	case KindCapabilities:
		return append(out, byte(resp.Capabilities)), nil
	case KindNetworks:
		return appendNetworks(out, resp.Networks)
	case KindNetworkBody:
		return wire.AppendBytes(out, resp.Body), nil
	default:
		// acknowledgements carry no payload
		return out, nil
	}
}

func appendNetworks(out []byte, aps []AccessPoint) ([]byte, error) {
	out, err := wire.AppendCount(out, len(aps))
	if err != nil {
		return nil, err
	}
	for _, ap := range aps {
		out, err = wire.AppendFixed(out, []byte(ap.SSID), SSIDFieldLen)
		if err != nil {
			return nil, err
		}
		out = append(out, ap.BSSID[:]...)
		out = append(out, ap.Channel, byte(ap.RSSI))
	}
	return out, nil
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
