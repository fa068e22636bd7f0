package netcall

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/edgelink/internal/protocol"
	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

func TestHTTPClientGetReturnsBody(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("unexpected method %s", r.Method)
		}
		if ua := r.Header.Get("User-Agent"); ua != "edgelink-test" {
			t.Errorf("unexpected user agent %q", ua)
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	c := NewHTTPClient(Config{UserAgent: "edgelink-test"})
	body, err := c.Do(context.Background(), protocol.NetworkCall{URL: srv.URL, Method: protocol.MethodGet})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if string(body) != "ok" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestHTTPClientForwardsHeaders(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(r.Method + ":" + r.Header.Get("X-Probe")))
	}))
	defer srv.Close()

	c := NewHTTPClient(DefaultConfig())
	call := protocol.NetworkCall{
		URL:     srv.URL,
		Method:  protocol.MethodPut,
		Headers: []protocol.Header{{Key: "X-Probe", Value: "42"}},
	}
	body, err := c.Do(context.Background(), call)
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if string(body) != "PUT:42" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestHTTPClientNonSuccessStatusIsNotAnError(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	defer srv.Close()

	body, err := NewHTTPClient(DefaultConfig()).Do(context.Background(), protocol.NetworkCall{URL: srv.URL, Method: protocol.MethodDelete})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if string(body) != "missing" {
		t.Fatalf("unexpected body %q", body)
	}
}

func TestHTTPClientBodyLimit(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 64)))
	}))
	defer srv.Close()

	_, err := NewHTTPClient(Config{MaxBodyBytes: 16}).Do(context.Background(), protocol.NetworkCall{URL: srv.URL, Method: protocol.MethodGet})
	if !errors.Is(err, ErrBodyTooLarge) || CodeOf(err) != CodeBodyTooLarge {
		t.Fatalf("expected body too large, got %v", err)
	}
}

func TestHTTPClientInvalidURL(t *testing.T) {
	testlog.Start(t)
	_, err := NewHTTPClient(DefaultConfig()).Do(context.Background(), protocol.NetworkCall{URL: "http", Method: protocol.MethodGet})
	if CodeOf(err) != CodeInvalidURL {
		t.Fatalf("expected invalid url code, got %v", err)
	}
}

func TestHTTPClientTimeout(t *testing.T) {
	testlog.Start(t)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	_, err := NewHTTPClient(Config{Timeout: 20 * time.Millisecond}).Do(context.Background(), protocol.NetworkCall{URL: srv.URL, Method: protocol.MethodGet})
	if CodeOf(err) != CodeTimeout {
		t.Fatalf("expected timeout code, got %v", err)
	}
}
