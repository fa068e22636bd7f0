// Package config loads the service configuration from TOML.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/netcall"
	"github.com/danmuck/edgelink/internal/protocol"
	"github.com/danmuck/edgelink/internal/protocol/wire"
	"github.com/danmuck/edgelink/internal/radio"
	"github.com/danmuck/edgelink/internal/transport"
)

var ErrInvalid = errors.New("config: invalid")

const (
	TransportSerial = "serial"
	TransportTCP    = "tcp"

	RadioSim   = "sim"
	RadioNMCLI = "nmcli"
)

type Config struct {
	ID           string
	TickInterval time.Duration
	DrainTimeout time.Duration
	Transport    TransportConfig
	Limits       wire.Limits
	Radio        RadioConfig
	Network      netcall.Config
	Admin        AdminConfig
	Log          LogConfig
}

type TransportConfig struct {
	Kind    string
	Serial  transport.SerialConfig
	Listen  string
	Stream  transport.StreamOptions
	Backoff transport.BackoffConfig
}

type RadioConfig struct {
	Backend     string
	Sim         radio.SimConfig
	NMCLI       radio.NMCLIConfig
	BootConfig  *protocol.ClientConfig
	BootActions []protocol.RadioOp
}

type AdminConfig struct {
	// Listen is empty when the admin surface is disabled.
	Listen      string
	CorsOrigins []string
	// Token guards every route except /health when set.
	Token string
}

type LogConfig struct {
	Level string
	File  logging.FileConfig
}

func Default() Config {
	return Config{
		ID:           "edgelink",
		TickInterval: 10 * time.Millisecond,
		DrainTimeout: 2 * time.Second,
		Transport: TransportConfig{
			Kind:    TransportTCP,
			Serial:  transport.SerialConfig{Device: "/dev/ttyUSB0", BaudRate: 115200},
			Listen:  "127.0.0.1:7700",
			Stream:  transport.DefaultStreamOptions(),
			Backoff: transport.DefaultBackoffConfig(),
		},
		Limits: wire.DefaultLimits(),
		Radio: RadioConfig{
			Backend: RadioSim,
			Sim:     radio.DefaultSimConfig(),
			NMCLI:   radio.DefaultNMCLIConfig(),
		},
		Network: netcall.DefaultConfig(),
		Log: LogConfig{
			Level: "info",
			File:  logging.FileConfig{MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 14},
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalid)
	}
	if c.TickInterval <= 0 {
		return fmt.Errorf("%w: tick_interval must be positive", ErrInvalid)
	}
	if c.DrainTimeout < 0 {
		return fmt.Errorf("%w: drain_timeout must not be negative", ErrInvalid)
	}
	switch c.Transport.Kind {
	case TransportSerial:
		if strings.TrimSpace(c.Transport.Serial.Device) == "" {
			return fmt.Errorf("%w: transport.device is required for serial", ErrInvalid)
		}
		if c.Transport.Serial.BaudRate <= 0 {
			return fmt.Errorf("%w: transport.baud must be positive", ErrInvalid)
		}
	case TransportTCP:
		if strings.TrimSpace(c.Transport.Listen) == "" {
			return fmt.Errorf("%w: transport.listen is required for tcp", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: transport.kind %q (want serial|tcp)", ErrInvalid, c.Transport.Kind)
	}
	if c.Transport.Stream.FrameTimeout <= 0 || c.Transport.Stream.PollInterval <= 0 {
		return fmt.Errorf("%w: transport timeouts must be positive", ErrInvalid)
	}
	if c.Limits.MaxStringBytes == 0 || c.Limits.MaxBodyBytes == 0 {
		return fmt.Errorf("%w: limits must be positive", ErrInvalid)
	}
	switch c.Radio.Backend {
	case RadioSim:
	case RadioNMCLI:
		if strings.TrimSpace(c.Radio.NMCLI.Interface) == "" {
			return fmt.Errorf("%w: radio.interface is required for nmcli", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: radio.backend %q (want sim|nmcli)", ErrInvalid, c.Radio.Backend)
	}
	if c.Radio.BootConfig != nil {
		if err := c.Radio.BootConfig.Validate(); err != nil {
			return fmt.Errorf("%w: radio.boot_config: %v", ErrInvalid, err)
		}
	}
	for i, n := range c.Radio.Sim.Networks {
		if err := n.AP.Validate(); err != nil {
			return fmt.Errorf("%w: radio.networks[%d]: %v", ErrInvalid, i, err)
		}
	}
	if c.Network.Timeout <= 0 || c.Network.MaxBodyBytes <= 0 {
		return fmt.Errorf("%w: network timeout and max_body_bytes must be positive", ErrInvalid)
	}
	if c.Network.MaxBodyBytes > int64(c.Limits.MaxBodyBytes) {
		return fmt.Errorf("%w: network.max_body_bytes exceeds limits.max_body_bytes", ErrInvalid)
	}
	if strings.TrimSpace(c.Log.Level) != "" {
		if _, ok := logging.ParseLevel(c.Log.Level); !ok {
			return fmt.Errorf("%w: log.level %q", ErrInvalid, c.Log.Level)
		}
	}
	return nil
}
