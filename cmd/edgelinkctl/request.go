package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/edgelink/internal/protocol"
)

var errUsage = errors.New("usage")

// parseRequest builds a request from command arguments:
//
//	radio <op> [ssid password [auth]]
//	net <method> <url> [key=value ...]
func parseRequest(args []string) (protocol.Request, error) {
	if len(args) < 2 {
		return protocol.Request{}, errUsage
	}
	switch strings.ToLower(args[0]) {
	case "radio":
		return parseRadio(args[1:])
	case "net", "network":
		return parseNetwork(args[1:])
	default:
		return protocol.Request{}, fmt.Errorf("%w: unknown family %q", errUsage, args[0])
	}
}

func parseRadio(args []string) (protocol.Request, error) {
	op, ok := protocol.ParseRadioOp(args[0])
	if !ok {
		return protocol.Request{}, fmt.Errorf("%w: unknown radio op %q", errUsage, args[0])
	}
	if op != protocol.RadioSetConfig {
		if len(args) > 1 {
			return protocol.Request{}, fmt.Errorf("%w: %s takes no arguments", errUsage, op)
		}
		return protocol.NewRadioRequest(op), nil
	}
	if len(args) < 3 || len(args) > 4 {
		return protocol.Request{}, fmt.Errorf("%w: set_config <ssid> <password> [auth]", errUsage)
	}
	auth := protocol.AuthNone
	if len(args) == 4 {
		if auth, ok = protocol.ParseAuthMethod(args[3]); !ok {
			return protocol.Request{}, fmt.Errorf("%w: unknown auth %q", errUsage, args[3])
		}
	}
	req := protocol.NewSetConfigRequest(protocol.ClientConfig{SSID: args[1], Password: args[2], Auth: auth})
	return req, req.Validate()
}

func parseNetwork(args []string) (protocol.Request, error) {
	if len(args) < 2 {
		return protocol.Request{}, fmt.Errorf("%w: net <method> <url> [key=value ...]", errUsage)
	}
	method, ok := protocol.ParseMethod(args[0])
	if !ok {
		return protocol.Request{}, fmt.Errorf("%w: unknown method %q", errUsage, args[0])
	}
	headers := make([]protocol.Header, 0, len(args)-2)
	for _, kv := range args[2:] {
		k, v, found := strings.Cut(kv, "=")
		if !found || strings.TrimSpace(k) == "" {
			return protocol.Request{}, fmt.Errorf("%w: header %q is not key=value", errUsage, kv)
		}
		headers = append(headers, protocol.Header{Key: strings.TrimSpace(k), Value: v})
	}
	if len(headers) == 0 {
		headers = nil
	}
	req := protocol.NewNetworkRequest(args[1], method, headers...)
	return req, req.Validate()
}

// formatResponse renders a response for the terminal.
func formatResponse(resp protocol.Response) string {
	var b strings.Builder
	switch resp.Kind {
	case protocol.KindError:
		fmt.Fprintf(&b, "error code=%d (0x%x)", resp.Code, uint32(resp.Code))
	case protocol.KindNetworks:
		fmt.Fprintf(&b, "networks count=%d", len(resp.Networks))
		for _, ap := range resp.Networks {
			fmt.Fprintf(&b, "\n  %-32s %s ch=%-3d rssi=%d", ap.SSID, ap.BSSIDString(), ap.Channel, ap.RSSI)
		}
	case protocol.KindNetworkBody:
		fmt.Fprintf(&b, "network_body bytes=%d", len(resp.Body))
		if len(resp.Body) > 0 {
			b.WriteString("\n")
			b.Write(resp.Body)
		}
	default:
		b.WriteString(resp.String())
	}
	return b.String()
}
