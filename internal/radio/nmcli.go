package radio

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	logs "github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/protocol"
	"github.com/danmuck/edgelink/internal/tools"
)

// nmcli exit codes that carry meaning for the wire.
const (
	nmcliExitActivation int32 = 4
	nmcliExitTimeout    int32 = 3
	nmcliExitNotFound   int32 = 10
)

type NMCLIConfig struct {
	Binary    string
	Interface string
	// QueryTimeout bounds the non-blocking query methods.
	QueryTimeout time.Duration
	Capabilities protocol.Capabilities
}

func DefaultNMCLIConfig() NMCLIConfig {
	return NMCLIConfig{
		Binary:       "nmcli",
		Interface:    "wlan0",
		QueryTimeout: 2 * time.Second,
		Capabilities: protocol.CapClient | protocol.CapAccessPoint,
	}
}

// NMCLI drives a NetworkManager-managed Wi-Fi interface.
type NMCLI struct {
	cfg    NMCLIConfig
	runner tools.CommandRunner

	mu      sync.Mutex
	station *protocol.ClientConfig
}

var (
	_ Controller   = (*NMCLI)(nil)
	_ QueryBlocker = (*NMCLI)(nil)
)

func NewNMCLI(cfg NMCLIConfig, runner tools.CommandRunner) *NMCLI {
	if cfg.Binary == "" {
		cfg.Binary = "nmcli"
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = 2 * time.Second
	}
	if runner == nil {
		runner = tools.ExecRunner{Env: []string{"LC_ALL=C"}}
	}
	return &NMCLI{cfg: cfg, runner: runner}
}

// QueriesBlock is true: every query shells out to nmcli.
func (n *NMCLI) QueriesBlock() bool {
	return true
}

func (n *NMCLI) IsStarted() (bool, error) {
	return n.isStarted(context.Background())
}

func (n *NMCLI) isStarted(parent context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(parent, n.cfg.QueryTimeout)
	defer cancel()
	res, err := n.run(ctx, "-t", "-g", "WIFI", "radio")
	if err != nil {
		return false, err
	}
	return res.Trimmed() == "enabled", nil
}

func (n *NMCLI) IsConnected() (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.QueryTimeout)
	defer cancel()
	res, err := n.run(ctx, "-t", "-g", "GENERAL.STATE", "device", "show", n.cfg.Interface)
	if err != nil {
		return false, err
	}
	// "100 (connected)"
	code, _, _ := strings.Cut(res.Trimmed(), " ")
	return code == "100", nil
}

func (n *NMCLI) Capabilities() (protocol.Capabilities, error) {
	return n.cfg.Capabilities, nil
}

func (n *NMCLI) Start(ctx context.Context) error {
	_, err := n.run(ctx, "radio", "wifi", "on")
	return err
}

func (n *NMCLI) Stop(ctx context.Context) error {
	_, err := n.run(ctx, "radio", "wifi", "off")
	return err
}

func (n *NMCLI) Scan(ctx context.Context) ([]protocol.AccessPoint, error) {
	started, err := n.isStarted(ctx)
	if err != nil {
		return nil, err
	}
	if !started {
		return nil, ErrNotStarted
	}
	res, err := n.run(ctx, "-t", "-e", "yes", "-f", "SSID,BSSID,CHAN,SIGNAL",
		"device", "wifi", "list", "--rescan", "yes", "ifname", n.cfg.Interface)
	if err != nil {
		return nil, err
	}
	return parseWifiList(res.Stdout), nil
}

func (n *NMCLI) Connect(ctx context.Context) error {
	n.mu.Lock()
	station := n.station
	n.mu.Unlock()
	if station == nil || station.SSID == "" {
		return ErrNotConfigured
	}
	args := []string{"device", "wifi", "connect", station.SSID}
	if station.Auth != protocol.AuthNone && station.Password != "" {
		args = append(args, "password", station.Password)
	}
	args = append(args, "ifname", n.cfg.Interface)
	_, err := n.run(ctx, args...)
	return err
}

func (n *NMCLI) Disconnect(ctx context.Context) error {
	_, err := n.run(ctx, "device", "disconnect", n.cfg.Interface)
	return err
}

func (n *NMCLI) SetConfiguration(cfg protocol.ClientConfig) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.station = &cfg
	return nil
}

func (n *NMCLI) Close() error {
	return nil
}

func (n *NMCLI) run(ctx context.Context, args ...string) (tools.Result, error) {
	res, err := n.runner.Run(ctx, n.cfg.Binary, args...)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		return res, fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
	}
	msg := strings.TrimSpace(string(res.Stderr))
	logs.Debugf("radio.NMCLI.run failed args=%q exit=%d stderr=%q", args, res.ExitCode, msg)
	switch res.ExitCode {
	case nmcliExitNotFound:
		return res, fmt.Errorf("%w: %s", ErrSSID, msg)
	case nmcliExitActivation:
		return res, fmt.Errorf("%w: %s", ErrPassword, msg)
	case nmcliExitTimeout:
		return res, fmt.Errorf("%w: %s", ErrTimeout, msg)
	default:
		return res, &Error{Code: CodeFail, Msg: fmt.Sprintf("nmcli exit %d: %s", res.ExitCode, msg)}
	}
}

// parseWifiList reads terse, escaped "SSID:BSSID:CHAN:SIGNAL" rows. Rows
// with an unparseable BSSID are skipped; hidden networks keep an empty SSID.
func parseWifiList(out []byte) []protocol.AccessPoint {
	var aps []protocol.AccessPoint
	for _, line := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := splitTerse(line)
		if len(fields) != 4 {
			continue
		}
		mac, err := net.ParseMAC(fields[1])
		if err != nil || len(mac) != protocol.BSSIDLen {
			continue
		}
		ap := protocol.AccessPoint{SSID: clampSSID(fields[0])}
		copy(ap.BSSID[:], mac)
		if ch, err := strconv.ParseUint(fields[2], 10, 8); err == nil {
			ap.Channel = uint8(ch)
		}
		if sig, err := strconv.Atoi(fields[3]); err == nil {
			ap.RSSI = signalToRSSI(sig)
		}
		aps = append(aps, ap)
	}
	sort.SliceStable(aps, func(i, j int) bool {
		return aps[i].RSSI > aps[j].RSSI
	})
	return aps
}

// clampSSID fits s into the SSID field without splitting a rune and drops
// bytes that are not valid UTF-8.
func clampSSID(s string) string {
	s = strings.ToValidUTF8(s, "")
	if len(s) > protocol.SSIDFieldLen {
		cut := protocol.SSIDFieldLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return strings.TrimRight(s, "\x00")
}

// splitTerse splits on ':' honouring nmcli's backslash escapes.
func splitTerse(line string) []string {
	var fields []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			cur.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == ':':
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	return append(fields, cur.String())
}

// signalToRSSI converts NetworkManager's 0..100 quality to dBm.
func signalToRSSI(quality int) int8 {
	if quality < 0 {
		quality = 0
	}
	if quality > 100 {
		quality = 100
	}
	return int8(quality/2 - 100)
}
