package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/danmuck/edgelink/internal/config"
	"github.com/danmuck/edgelink/internal/transport"
)

// loadServiceConfig falls back to the defaults when path does not exist.
func loadServiceConfig(path string) (config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.Load(path)
}

type transportLink struct {
	kind  string
	open  transport.Opener
	close func()
}

func openTransport(cfg config.Config) (transportLink, error) {
	t := cfg.Transport
	switch t.Kind {
	case config.TransportSerial:
		return transportLink{
			kind:  config.TransportSerial,
			open:  transport.SerialOpener(t.Serial, t.Stream),
			close: func() {},
		}, nil
	case config.TransportTCP:
		ln, err := transport.ListenTCP(t.Listen, t.Stream)
		if err != nil {
			return transportLink{}, err
		}
		return transportLink{
			kind:  config.TransportTCP,
			open:  ln.Opener(),
			close: func() { _ = ln.Close() },
		}, nil
	default:
		return transportLink{}, fmt.Errorf("%w: %q", transport.ErrKind, t.Kind)
	}
}
