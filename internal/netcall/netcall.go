// Package netcall performs the network-call catalog entry.
package netcall

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danmuck/edgelink/internal/protocol"
)

// Client performs one outbound call and returns the raw response body.
type Client interface {
	Do(ctx context.Context, call protocol.NetworkCall) ([]byte, error)
}

// Error is a network failure with the numeric code reported on the wire.
type Error struct {
	Code int32
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("netcall: %s (code=%d)", e.Msg, e.Code)
}

const (
	CodeFail         int32 = -1
	CodeConnect      int32 = 0x7102
	CodeInvalidURL   int32 = 0x7103
	CodeTimeout      int32 = 0x7107
	CodeBodyTooLarge int32 = 0x7108
)

var (
	ErrFail         = &Error{Code: CodeFail, Msg: "request failed"}
	ErrConnect      = &Error{Code: CodeConnect, Msg: "connect failed"}
	ErrInvalidURL   = &Error{Code: CodeInvalidURL, Msg: "invalid url"}
	ErrTimeout      = &Error{Code: CodeTimeout, Msg: "request timed out"}
	ErrBodyTooLarge = &Error{Code: CodeBodyTooLarge, Msg: "response body too large"}
)

func CodeOf(err error) int32 {
	if err == nil {
		return 0
	}
	var ne *Error
	if errors.As(err, &ne) {
		return ne.Code
	}
	return CodeFail
}

// Config controls the HTTP implementation.
type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	UserAgent    string
}

func DefaultConfig() Config {
	return Config{
		Timeout:      15 * time.Second,
		MaxBodyBytes: 1 << 20,
		UserAgent:    "edgelink/0.1",
	}
}

// HTTPClient is the net/http backed Client. Any HTTP status is a successful
// call; only transport failures become error codes.
type HTTPClient struct {
	cfg    Config
	client *http.Client
}

var _ Client = (*HTTPClient)(nil)

func NewHTTPClient(cfg Config) *HTTPClient {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = def.MaxBodyBytes
	}
	return &HTTPClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPClient) Do(ctx context.Context, call protocol.NetworkCall) ([]byte, error) {
	u, err := url.Parse(strings.TrimSpace(call.URL))
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, call.URL)
	}

	req, err := http.NewRequestWithContext(ctx, call.Method.String(), u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	for _, h := range call.Headers {
		req.Header.Add(h.Key, h.Value)
	}
	if req.Header.Get("User-Agent") == "" && c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxBodyBytes+1))
	if err != nil {
		return nil, classify(err)
	}
	if int64(len(body)) > c.cfg.MaxBodyBytes {
		return nil, fmt.Errorf("%w: limit %d", ErrBodyTooLarge, c.cfg.MaxBodyBytes)
	}
	if len(body) == 0 {
		return nil, nil
	}
	return body, nil
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var nerr net.Error
	if errors.As(err, &nerr) && nerr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrConnect, err)
	}
	return fmt.Errorf("%w: %v", ErrFail, err)
}
