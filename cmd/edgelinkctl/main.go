package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/protocol"
	"github.com/danmuck/edgelink/internal/protocol/wire"
	"github.com/danmuck/edgelink/internal/transport"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:7700", "edgelink tcp address")
	device := flag.String("serial", "", "serial device (overrides -addr)")
	baud := flag.Int("baud", 115200, "serial baud rate")
	timeout := flag.Duration("timeout", 30*time.Second, "time to wait for the response")
	flag.Usage = usage
	flag.Parse()
	logging.ConfigureRuntime()

	args := flag.Args()
	if len(args) == 1 && args[0] == "ports" {
		ports, err := transport.SerialPorts()
		if err != nil {
			fail(err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		return
	}

	req, err := parseRequest(args)
	if err != nil {
		if errors.Is(err, errUsage) {
			usage()
		}
		fail(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	link, err := dial(ctx, *addr, *device, *baud)
	if err != nil {
		fail(err)
	}
	defer link.Close()

	resp, err := roundTrip(ctx, link, req)
	if err != nil {
		fail(err)
	}
	fmt.Println(formatResponse(resp))
	if resp.IsError() {
		os.Exit(2)
	}
}

func dial(ctx context.Context, addr, device string, baud int) (transport.Transport, error) {
	opts := transport.DefaultStreamOptions()
	opts.FrameTimeout = 5 * time.Second
	if device != "" {
		stream, err := transport.OpenSerial(transport.SerialConfig{Device: device, BaudRate: baud}, opts)
		if err != nil {
			return nil, err
		}
		return stream, nil
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return transport.NewStream("tcp:"+addr, conn, opts), nil
}

// roundTrip writes one request frame and waits for its response.
func roundTrip(ctx context.Context, link transport.Transport, req protocol.Request) (protocol.Response, error) {
	frame, err := protocol.EncodeRequest(req)
	if err != nil {
		return protocol.Response{}, err
	}
	logging.Debugf("edgelinkctl.roundTrip send request=%s bytes=%d", req.Name(), len(frame))
	if n, err := link.Write(frame); err != nil || n != len(frame) {
		return protocol.Response{}, fmt.Errorf("write request: wrote %d/%d: %v", n, len(frame), err)
	}
	if err := link.WaitFrame(ctx); err != nil {
		return protocol.Response{}, fmt.Errorf("wait response: %w", err)
	}
	return protocol.DecodeResponse(link, wire.DefaultLimits())
}

func usage() {
	fmt.Fprintf(os.Stderr, `usage: edgelinkctl [flags] <command>

commands:
  radio <op>                               op: is_started is_connected capabilities start stop scan connect disconnect
  radio set_config <ssid> <password> [auth]
  net <method> <url> [key=value ...]       method: DELETE GET HEAD POST PUT
  ports                                    list serial ports

flags:
`)
	flag.PrintDefaults()
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "edgelinkctl: %v\n", err)
	os.Exit(1)
}
