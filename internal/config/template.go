package config

import (
	"fmt"
	"net"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Template renders cfg in the on-disk format accepted by Load.
func Template(cfg Config) (string, error) {
	out, err := toml.Marshal(toFile(cfg))
	if err != nil {
		return "", fmt.Errorf("render config: %w", err)
	}
	return string(out), nil
}

// WriteTemplate writes the rendered Default config to path.
func WriteTemplate(path string, overwrite bool) error {
	template, err := Template(Default())
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

func toFile(cfg Config) fileConfig {
	t := cfg.Transport
	out := fileConfig{
		ID:           cfg.ID,
		TickInterval: cfg.TickInterval.String(),
		DrainTimeout: cfg.DrainTimeout.String(),
		Transport: fileTransport{
			Kind:         t.Kind,
			Device:       t.Serial.Device,
			Baud:         t.Serial.BaudRate,
			Listen:       t.Listen,
			FrameTimeout: t.Stream.FrameTimeout.String(),
			PollInterval: t.Stream.PollInterval.String(),
			WriteTimeout: t.Stream.WriteTimeout.String(),
			Backoff: fileBackoff{
				Initial:    t.Backoff.InitialDelay.String(),
				Multiplier: t.Backoff.Multiplier,
				Max:        t.Backoff.MaxDelay.String(),
				Jitter:     t.Backoff.Jitter,
			},
		},
		Limits: fileLimits{
			MaxStringBytes: cfg.Limits.MaxStringBytes,
			MaxBodyBytes:   cfg.Limits.MaxBodyBytes,
		},
		Radio: fileRadio{
			Backend:      cfg.Radio.Backend,
			Interface:    cfg.Radio.NMCLI.Interface,
			NMCLIBinary:  cfg.Radio.NMCLI.Binary,
			QueryTimeout: cfg.Radio.NMCLI.QueryTimeout.String(),
			Latency:      cfg.Radio.Sim.Latency.String(),
			Capabilities: capabilityNames(cfg.Radio.Sim),
			Networks:     []fileSimNetwork{},
			BootActions:  []string{},
		},
		Network: fileNetwork{
			Timeout:      cfg.Network.Timeout.String(),
			MaxBodyBytes: cfg.Network.MaxBodyBytes,
			UserAgent:    cfg.Network.UserAgent,
		},
		Admin: fileAdmin{
			Listen:      cfg.Admin.Listen,
			CorsOrigins: append([]string{}, cfg.Admin.CorsOrigins...),
			Token:       cfg.Admin.Token,
		},
		Log: fileLog{
			Level:      cfg.Log.Level,
			File:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	}
	for _, n := range cfg.Radio.Sim.Networks {
		fn := fileSimNetwork{
			SSID:     n.AP.SSID,
			Channel:  n.AP.Channel,
			RSSI:     n.AP.RSSI,
			Auth:     n.Auth.String(),
			Password: n.Password,
		}
		if n.AP.BSSID != ([6]byte{}) {
			fn.BSSID = net.HardwareAddr(n.AP.BSSID[:]).String()
		}
		out.Radio.Networks = append(out.Radio.Networks, fn)
	}
	if bc := cfg.Radio.BootConfig; bc != nil {
		out.Radio.BootConfig = &fileClientConfig{SSID: bc.SSID, Password: bc.Password, Auth: bc.Auth.String()}
	}
	for _, op := range cfg.Radio.BootActions {
		out.Radio.BootActions = append(out.Radio.BootActions, op.String())
	}
	return out
}
