package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/danmuck/edgelink/internal/protocol"
	"github.com/danmuck/edgelink/internal/radio"
)

// fileConfig is the on-disk shape. Durations are strings ("10ms").
type fileConfig struct {
	ID           string        `toml:"id"`
	TickInterval string        `toml:"tick_interval"`
	DrainTimeout string        `toml:"drain_timeout"`
	Transport    fileTransport `toml:"transport"`
	Limits       fileLimits    `toml:"limits"`
	Radio        fileRadio     `toml:"radio"`
	Network      fileNetwork   `toml:"network"`
	Admin        fileAdmin     `toml:"admin"`
	Log          fileLog       `toml:"log"`
}

type fileTransport struct {
	Kind         string      `toml:"kind"`
	Device       string      `toml:"device"`
	Baud         int         `toml:"baud"`
	Listen       string      `toml:"listen"`
	FrameTimeout string      `toml:"frame_timeout"`
	PollInterval string      `toml:"poll_interval"`
	WriteTimeout string      `toml:"write_timeout"`
	Backoff      fileBackoff `toml:"backoff"`
}

type fileBackoff struct {
	Initial    string  `toml:"initial"`
	Multiplier float64 `toml:"multiplier"`
	Max        string  `toml:"max"`
	Jitter     bool    `toml:"jitter"`
}

type fileLimits struct {
	MaxStringBytes uint32 `toml:"max_string_bytes"`
	MaxBodyBytes   uint32 `toml:"max_body_bytes"`
}

type fileRadio struct {
	Backend      string            `toml:"backend"`
	Interface    string            `toml:"interface"`
	NMCLIBinary  string            `toml:"nmcli_binary"`
	QueryTimeout string            `toml:"query_timeout"`
	Latency      string            `toml:"latency"`
	Capabilities []string          `toml:"capabilities"`
	Networks     []fileSimNetwork  `toml:"networks"`
	BootConfig   *fileClientConfig `toml:"boot_config,omitempty"`
	BootActions  []string          `toml:"boot_actions"`
}

type fileSimNetwork struct {
	SSID     string `toml:"ssid"`
	BSSID    string `toml:"bssid"`
	Channel  uint8  `toml:"channel"`
	RSSI     int8   `toml:"rssi"`
	Auth     string `toml:"auth"`
	Password string `toml:"password"`
}

type fileClientConfig struct {
	SSID     string `toml:"ssid"`
	Password string `toml:"password"`
	Auth     string `toml:"auth"`
}

type fileNetwork struct {
	Timeout      string `toml:"timeout"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
	UserAgent    string `toml:"user_agent"`
}

type fileAdmin struct {
	Listen      string   `toml:"listen"`
	CorsOrigins []string `toml:"cors_origins"`
	Token       string   `toml:"token"`
}

type fileLog struct {
	Level      string `toml:"level"`
	File       string `toml:"file"`
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days"`
	Compress   bool   `toml:"compress"`
}

// Load decodes path over Default, applying only the keys the file defines,
// then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q", ErrInvalid, undecoded[0].String())
	}

	a := applier{meta: meta}
	a.str(&cfg.ID, raw.ID, "id")
	a.dur(&cfg.TickInterval, raw.TickInterval, "tick_interval")
	a.dur(&cfg.DrainTimeout, raw.DrainTimeout, "drain_timeout")

	t := raw.Transport
	a.str(&cfg.Transport.Kind, strings.ToLower(t.Kind), "transport", "kind")
	a.str(&cfg.Transport.Serial.Device, t.Device, "transport", "device")
	a.int(&cfg.Transport.Serial.BaudRate, t.Baud, "transport", "baud")
	a.str(&cfg.Transport.Listen, t.Listen, "transport", "listen")
	a.dur(&cfg.Transport.Stream.FrameTimeout, t.FrameTimeout, "transport", "frame_timeout")
	a.dur(&cfg.Transport.Stream.PollInterval, t.PollInterval, "transport", "poll_interval")
	a.dur(&cfg.Transport.Stream.WriteTimeout, t.WriteTimeout, "transport", "write_timeout")
	a.dur(&cfg.Transport.Backoff.InitialDelay, t.Backoff.Initial, "transport", "backoff", "initial")
	a.dur(&cfg.Transport.Backoff.MaxDelay, t.Backoff.Max, "transport", "backoff", "max")
	if meta.IsDefined("transport", "backoff", "multiplier") {
		cfg.Transport.Backoff.Multiplier = t.Backoff.Multiplier
	}
	if meta.IsDefined("transport", "backoff", "jitter") {
		cfg.Transport.Backoff.Jitter = t.Backoff.Jitter
	}

	if meta.IsDefined("limits", "max_string_bytes") {
		cfg.Limits.MaxStringBytes = raw.Limits.MaxStringBytes
	}
	if meta.IsDefined("limits", "max_body_bytes") {
		cfg.Limits.MaxBodyBytes = raw.Limits.MaxBodyBytes
	}

	if err := a.radio(&cfg.Radio, raw.Radio); err != nil {
		return Config{}, err
	}

	a.dur(&cfg.Network.Timeout, raw.Network.Timeout, "network", "timeout")
	if meta.IsDefined("network", "max_body_bytes") {
		cfg.Network.MaxBodyBytes = raw.Network.MaxBodyBytes
	}
	a.str(&cfg.Network.UserAgent, raw.Network.UserAgent, "network", "user_agent")

	a.str(&cfg.Admin.Listen, raw.Admin.Listen, "admin", "listen")
	if meta.IsDefined("admin", "cors_origins") {
		cfg.Admin.CorsOrigins = normalizeList(raw.Admin.CorsOrigins)
	}
	a.str(&cfg.Admin.Token, raw.Admin.Token, "admin", "token")

	a.str(&cfg.Log.Level, raw.Log.Level, "log", "level")
	a.str(&cfg.Log.File.Path, raw.Log.File, "log", "file")
	a.int(&cfg.Log.File.MaxSizeMB, raw.Log.MaxSizeMB, "log", "max_size_mb")
	a.int(&cfg.Log.File.MaxBackups, raw.Log.MaxBackups, "log", "max_backups")
	a.int(&cfg.Log.File.MaxAgeDays, raw.Log.MaxAgeDays, "log", "max_age_days")
	if meta.IsDefined("log", "compress") {
		cfg.Log.File.Compress = raw.Log.Compress
	}

	if a.err != nil {
		return Config{}, a.err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applier copies defined keys and keeps the first parse error.
type applier struct {
	meta toml.MetaData
	err  error
}

func (a *applier) str(dst *string, v string, key ...string) {
	if a.meta.IsDefined(key...) {
		*dst = strings.TrimSpace(v)
	}
}

func (a *applier) int(dst *int, v int, key ...string) {
	if a.meta.IsDefined(key...) {
		*dst = v
	}
}

func (a *applier) dur(dst *time.Duration, v string, key ...string) {
	if !a.meta.IsDefined(key...) || a.err != nil {
		return
	}
	d, err := time.ParseDuration(strings.TrimSpace(v))
	if err != nil {
		a.err = fmt.Errorf("%w: parse %s: %v", ErrInvalid, strings.Join(key, "."), err)
		return
	}
	*dst = d
}

func (a *applier) radio(dst *RadioConfig, raw fileRadio) error {
	a.str(&dst.Backend, strings.ToLower(raw.Backend), "radio", "backend")
	a.str(&dst.NMCLI.Interface, raw.Interface, "radio", "interface")
	a.str(&dst.NMCLI.Binary, raw.NMCLIBinary, "radio", "nmcli_binary")
	a.dur(&dst.NMCLI.QueryTimeout, raw.QueryTimeout, "radio", "query_timeout")
	a.dur(&dst.Sim.Latency, raw.Latency, "radio", "latency")

	if a.meta.IsDefined("radio", "capabilities") {
		caps, err := parseCapabilities(raw.Capabilities)
		if err != nil {
			return err
		}
		dst.Sim.Capabilities = caps
		dst.NMCLI.Capabilities = caps
	}

	if a.meta.IsDefined("radio", "networks") {
		nets := make([]radio.SimNetwork, 0, len(raw.Networks))
		for i, n := range raw.Networks {
			sn, err := simNetwork(n)
			if err != nil {
				return fmt.Errorf("%w: radio.networks[%d]: %v", ErrInvalid, i, err)
			}
			nets = append(nets, sn)
		}
		dst.Sim.Networks = nets
	}

	if raw.BootConfig != nil {
		auth, ok := protocol.ParseAuthMethod(raw.BootConfig.Auth)
		if !ok {
			return fmt.Errorf("%w: radio.boot_config.auth %q", ErrInvalid, raw.BootConfig.Auth)
		}
		dst.BootConfig = &protocol.ClientConfig{
			SSID:     raw.BootConfig.SSID,
			Password: raw.BootConfig.Password,
			Auth:     auth,
		}
	}

	if a.meta.IsDefined("radio", "boot_actions") {
		ops := make([]protocol.RadioOp, 0, len(raw.BootActions))
		for _, name := range normalizeList(raw.BootActions) {
			op, ok := protocol.ParseRadioOp(name)
			if !ok || op == protocol.RadioSetConfig {
				return fmt.Errorf("%w: radio.boot_actions %q", ErrInvalid, name)
			}
			ops = append(ops, op)
		}
		dst.BootActions = ops
	}
	return nil
}

func simNetwork(n fileSimNetwork) (radio.SimNetwork, error) {
	auth, ok := protocol.ParseAuthMethod(n.Auth)
	if !ok {
		return radio.SimNetwork{}, fmt.Errorf("auth %q", n.Auth)
	}
	ap := protocol.AccessPoint{SSID: n.SSID, Channel: n.Channel, RSSI: n.RSSI}
	if bssid := strings.TrimSpace(n.BSSID); bssid != "" {
		mac, err := net.ParseMAC(bssid)
		if err != nil || len(mac) != protocol.BSSIDLen {
			return radio.SimNetwork{}, fmt.Errorf("bssid %q", n.BSSID)
		}
		copy(ap.BSSID[:], mac)
	}
	return radio.SimNetwork{AP: ap, Auth: auth, Password: n.Password}, nil
}

func parseCapabilities(names []string) (protocol.Capabilities, error) {
	var caps protocol.Capabilities
	for _, name := range normalizeList(names) {
		switch strings.ToLower(name) {
		case "client":
			caps |= protocol.CapClient
		case "access_point":
			caps |= protocol.CapAccessPoint
		case "mixed":
			caps |= protocol.CapMixed
		default:
			return 0, fmt.Errorf("%w: radio.capabilities %q", ErrInvalid, name)
		}
	}
	return caps, nil
}

func normalizeList(in []string) []string {
	if len(in) == 0 {
		return []string{}
	}
	out := make([]string, 0, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}
