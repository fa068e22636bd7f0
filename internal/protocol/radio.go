package protocol

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	SSIDFieldLen     = 32
	PasswordFieldLen = 64
	// ClientConfigLen is the fixed set-configuration record width.
	ClientConfigLen = SSIDFieldLen + PasswordFieldLen + 1

	BSSIDLen = 6
	// AccessPointLen is the fixed width of one scan record.
	AccessPointLen = SSIDFieldLen + BSSIDLen + 1 + 1
)

// AuthMethod is the station authentication code.
type AuthMethod uint8

const (
	AuthNone AuthMethod = iota
	AuthWEP
	AuthWPA
	AuthWPA2Personal
	AuthWPAWPA2Personal
	AuthWPA2Enterprise
	AuthWPA3Personal
	AuthWPA2WPA3Personal
	AuthWAPIPersonal

	authMethodCount
)

var authMethodNames = [...]string{
	AuthNone:             "none",
	AuthWEP:              "wep",
	AuthWPA:              "wpa",
	AuthWPA2Personal:     "wpa2-personal",
	AuthWPAWPA2Personal:  "wpa-wpa2-personal",
	AuthWPA2Enterprise:   "wpa2-enterprise",
	AuthWPA3Personal:     "wpa3-personal",
	AuthWPA2WPA3Personal: "wpa2-wpa3-personal",
	AuthWAPIPersonal:     "wapi-personal",
}

// AuthMethodFromCode never fails: codes outside the known range are AuthNone.
func AuthMethodFromCode(code uint8) AuthMethod {
	if code >= uint8(authMethodCount) {
		return AuthNone
	}
	return AuthMethod(code)
}

func (a AuthMethod) String() string {
	if a < authMethodCount {
		return authMethodNames[a]
	}
	return fmt.Sprintf("auth(%d)", uint8(a))
}

func ParseAuthMethod(name string) (AuthMethod, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return AuthNone, true
	}
	for a, n := range authMethodNames {
		if n == name {
			return AuthMethod(a), true
		}
	}
	return AuthNone, false
}

// ClientConfig is the station credential record.
type ClientConfig struct {
	SSID     string
	Password string
	Auth     AuthMethod
}

func (c ClientConfig) Validate() error {
	if err := validateFixed("ssid", c.SSID, SSIDFieldLen); err != nil {
		return err
	}
	if err := validateFixed("password", c.Password, PasswordFieldLen); err != nil {
		return err
	}
	if c.Auth >= authMethodCount {
		return fmt.Errorf("%w: %s", ErrInvalidRequest, c.Auth)
	}
	return nil
}

// Capabilities is the radio mode bitset.
type Capabilities uint8

const (
	CapClient      Capabilities = 1 << 0
	CapAccessPoint Capabilities = 1 << 1
	CapMixed       Capabilities = 1 << 2
)

func (c Capabilities) Has(flag Capabilities) bool {
	return c&flag != 0
}

func (c Capabilities) String() string {
	parts := make([]string, 0, 3)
	if c.Has(CapClient) {
		parts = append(parts, "client")
	}
	if c.Has(CapAccessPoint) {
		parts = append(parts, "access_point")
	}
	if c.Has(CapMixed) {
		parts = append(parts, "mixed")
	}
	return strings.Join(parts, "|")
}

// AccessPoint is one discovered network.
type AccessPoint struct {
	SSID    string
	BSSID   [BSSIDLen]byte
	Channel uint8
	RSSI    int8
}

func (ap AccessPoint) Validate() error {
	return validateFixed("ssid", ap.SSID, SSIDFieldLen)
}

func (ap AccessPoint) BSSIDString() string {
	b := ap.BSSID
	return fmt.Sprintf("%02x:%02x:%02x:%02x:%02x:%02x", b[0], b[1], b[2], b[3], b[4], b[5])
}

func validateFixed(field, v string, width int) error {
	if len(v) > width {
		return fmt.Errorf("%w: %s is %d bytes, max %d", ErrFieldTooLong, field, len(v), width)
	}
	if !utf8.ValidString(v) {
		return fmt.Errorf("%w: %s", ErrInvalidUTF8, field)
	}
	if strings.HasSuffix(v, "\x00") {
		return fmt.Errorf("%w: %s has trailing NUL", ErrInvalidRequest, field)
	}
	return nil
}
