package config

import (
	"strings"

	"github.com/danmuck/edgelink/internal/bridge"
	"github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/protocol"
	"github.com/danmuck/edgelink/internal/radio"
)

// BootRequests lists the local requests queued at startup: the boot
// configuration first, then the boot actions in file order.
func (c Config) BootRequests() []protocol.Request {
	out := make([]protocol.Request, 0, len(c.Radio.BootActions)+1)
	if c.Radio.BootConfig != nil {
		out = append(out, protocol.NewSetConfigRequest(*c.Radio.BootConfig))
	}
	for _, op := range c.Radio.BootActions {
		out = append(out, protocol.NewRadioRequest(op))
	}
	return out
}

func (c Config) Bridge() bridge.Config {
	return bridge.Config{
		ID:           c.ID,
		TickInterval: c.TickInterval,
		DrainTimeout: c.DrainTimeout,
		Limits:       c.Limits,
		Backoff:      c.Transport.Backoff,
		Boot:         c.BootRequests(),
	}
}

// RadioController builds the configured radio backend.
func (c Config) RadioController() radio.Controller {
	if c.Radio.Backend == RadioNMCLI {
		return radio.NewNMCLI(c.Radio.NMCLI, nil)
	}
	return radio.NewSim(c.Radio.Sim)
}

func (c Config) Logging() logging.Overrides {
	return logging.Overrides{Level: c.Log.Level, File: c.Log.File}
}

func capabilityNames(sim radio.SimConfig) []string {
	s := sim.Capabilities.String()
	if s == "" {
		return []string{}
	}
	return strings.Split(s, "|")
}
