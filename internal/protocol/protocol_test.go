package protocol

import (
	"bytes"
	"errors"
	"math/rand"
	"reflect"
	"testing"

	"github.com/danmuck/edgelink/internal/protocol/wire"
	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

func decodeRequestBytes(t *testing.T, b []byte) (Request, error) {
	t.Helper()
	return DecodeRequest(wire.NewReaderSource(bytes.NewReader(b)), wire.DefaultLimits())
}

func decodeResponseBytes(t *testing.T, b []byte) (Response, error) {
	t.Helper()
	return DecodeResponse(wire.NewReaderSource(bytes.NewReader(b)), wire.DefaultLimits())
}

func sampleRequests() []Request {
	reqs := make([]Request, 0, 16)
	for _, op := range RadioOps() {
		if op == RadioSetConfig {
			continue
		}
		reqs = append(reqs, NewRadioRequest(op))
	}
	reqs = append(reqs,
		NewSetConfigRequest(ClientConfig{SSID: "lab-net", Password: "hunter22", Auth: AuthWPA2Personal}),
		NewSetConfigRequest(ClientConfig{}),
		NewSetConfigRequest(ClientConfig{SSID: "ß-net", Password: string(bytes.Repeat([]byte("p"), PasswordFieldLen)), Auth: AuthWAPIPersonal}),
		NewNetworkRequest("http://example.com/a", MethodGet),
		NewNetworkRequest("http://example.com/a", MethodDelete),
		NewNetworkRequest("http://example.com/h", MethodHead),
		NewNetworkRequest("http://example.com/p", MethodPost, Header{Key: "Content-Type", Value: "text/plain"}),
		NewNetworkRequest("http://example.com/u", MethodPut, Header{Key: "X-A", Value: ""}, Header{Key: "X-B", Value: "2"}),
	)
	return reqs
}

func sampleResponses() []Response {
	return []Response{
		ErrorResponse(-1),
		ErrorResponse(0x3001),
		BoolResponse(KindStarted, true),
		BoolResponse(KindConnected, false),
		CapabilitiesResponse(CapClient | CapAccessPoint),
		NetworksResponse(nil),
		NetworksResponse([]AccessPoint{
			{SSID: "alpha", BSSID: [6]byte{1, 2, 3, 4, 5, 6}, Channel: 6, RSSI: -42},
			{SSID: "", BSSID: [6]byte{0xAA}, Channel: 13, RSSI: 0},
		}),
		AckResponse(KindStartAck),
		AckResponse(KindStopAck),
		AckResponse(KindConnectAck),
		AckResponse(KindDisconnectAck),
		AckResponse(KindConfiguredAck),
		BodyResponse(nil),
		BodyResponse([]byte("hello body")),
	}
}

func TestRequestRoundTrip(t *testing.T) {
	testlog.Start(t)
	for _, req := range sampleRequests() {
		b, err := EncodeRequest(req)
		if err != nil {
			t.Fatalf("encode %s: %v", req.Name(), err)
		}
		got, err := decodeRequestBytes(t, b)
		if err != nil {
			t.Fatalf("decode %s: %v", req.Name(), err)
		}
		if !reflect.DeepEqual(got, req) {
			t.Fatalf("round trip mismatch for %s: got=%+v want=%+v", req.Name(), got, req)
		}
		again, err := EncodeRequest(got)
		if err != nil {
			t.Fatalf("re-encode %s: %v", req.Name(), err)
		}
		if !bytes.Equal(again, b) {
			t.Fatalf("byte round trip mismatch for %s", req.Name())
		}
	}
}

func TestResponseRoundTrip(t *testing.T) {
	testlog.Start(t)
	for _, resp := range sampleResponses() {
		b, err := EncodeResponse(resp)
		if err != nil {
			t.Fatalf("encode %s: %v", resp, err)
		}
		got, err := decodeResponseBytes(t, b)
		if err != nil {
			t.Fatalf("decode %s: %v", resp, err)
		}
		if !reflect.DeepEqual(got, resp) {
			t.Fatalf("round trip mismatch: got=%+v want=%+v", got, resp)
		}
	}
}

func TestScanResponseScenarioBytes(t *testing.T) {
	testlog.Start(t)
	req, err := decodeRequestBytes(t, []byte{0, 5})
	if err != nil {
		t.Fatalf("decode scan: %v", err)
	}
	if req.Family != FamilyRadio || req.Radio.Op != RadioScan {
		t.Fatalf("unexpected request: %+v", req)
	}

	aps := []AccessPoint{
		{SSID: "one", BSSID: [6]byte{1, 1, 1, 1, 1, 1}, Channel: 1, RSSI: -30},
		{SSID: "two", BSSID: [6]byte{2, 2, 2, 2, 2, 2}, Channel: 11, RSSI: -80},
	}
	b, err := EncodeResponse(NetworksResponse(aps))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(b) != 3+2*AccessPointLen {
		t.Fatalf("unexpected frame length: %d", len(b))
	}
	if !bytes.Equal(b[:3], []byte{3, 1, 2}) {
		t.Fatalf("unexpected prefix: %v", b[:3])
	}
	rec1 := b[3 : 3+AccessPointLen]
	if string(rec1[:3]) != "one" || rec1[3] != 0 || rec1[SSIDFieldLen] != 1 {
		t.Fatalf("unexpected record layout: %v", rec1)
	}
	if rec1[AccessPointLen-2] != 1 || int8(rec1[AccessPointLen-1]) != -30 {
		t.Fatalf("unexpected channel/rssi: %v", rec1[AccessPointLen-2:])
	}
}

func TestNetworkCallScenarioBytes(t *testing.T) {
	testlog.Start(t)
	in := []byte{1, 0, 0, 0, 4, 'h', 't', 't', 'p', 1}
	req, err := decodeRequestBytes(t, in)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := NewNetworkRequest("http", MethodGet)
	if !reflect.DeepEqual(req, want) {
		t.Fatalf("unexpected request: %+v", req)
	}
	out, err := EncodeRequest(req)
	if err != nil || !bytes.Equal(out, in) {
		t.Fatalf("re-encode mismatch: %v err=%v", out, err)
	}

	b, err := EncodeResponse(BodyResponse([]byte("ok")))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(b, []byte{10, 1, 0, 0, 0, 2, 'o', 'k'}) {
		t.Fatalf("unexpected body frame: %v", b)
	}
}

func TestErrorResponseScenarioBytes(t *testing.T) {
	testlog.Start(t)
	b, err := EncodeResponse(ErrorResponse(-1))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !bytes.Equal(b, []byte{0, 0xFF, 0xFF, 0xFF, 0xFF}) {
		t.Fatalf("unexpected error frame: %v", b)
	}
}

func TestSetConfigUnknownAuthFallsBackToNone(t *testing.T) {
	testlog.Start(t)
	frame := []byte{0, byte(RadioSetConfig)}
	rec := make([]byte, ClientConfigLen)
	copy(rec, "cafe")
	copy(rec[SSIDFieldLen:], "secret")
	rec[ClientConfigLen-1] = 42
	frame = append(frame, rec...)

	req, err := decodeRequestBytes(t, frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	cfg := req.Radio.Config
	if cfg.SSID != "cafe" || cfg.Password != "secret" || cfg.Auth != AuthNone {
		t.Fatalf("unexpected config: %+v", cfg)
	}
}

func TestSetConfigInvalidUTF8FallsBackToDefault(t *testing.T) {
	testlog.Start(t)
	frame := []byte{0, byte(RadioSetConfig)}
	rec := make([]byte, ClientConfigLen)
	rec[0] = 0xFF
	copy(rec[SSIDFieldLen:], "secret")
	rec[ClientConfigLen-1] = byte(AuthWPA2Personal)
	frame = append(frame, rec...)

	req, err := decodeRequestBytes(t, frame)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if req.Radio.Op != RadioSetConfig || req.Radio.Config != (ClientConfig{}) {
		t.Fatalf("expected default config, got %+v", req.Radio)
	}
}

func TestDecodeRequestTruncatedIsDeterministic(t *testing.T) {
	testlog.Start(t)
	valid, err := EncodeRequest(NewNetworkRequest("http://x", MethodPost, Header{Key: "k", Value: "v"}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for n := 0; n < len(valid); n++ {
		_, err := decodeRequestBytes(t, valid[:n])
		if !errors.Is(err, ErrTruncated) {
			t.Fatalf("prefix %d: expected ErrTruncated, got %v", n, err)
		}
		if !IsDecodeError(err) {
			t.Fatalf("prefix %d: expected decode error classification", n)
		}
	}
	setCfg := []byte{0, byte(RadioSetConfig), 'a', 'b'}
	if _, err := decodeRequestBytes(t, setCfg); !errors.Is(err, ErrTruncated) {
		t.Fatalf("expected ErrTruncated for short record, got %v", err)
	}
}

func TestDecodeRequestUnknownTags(t *testing.T) {
	testlog.Start(t)
	cases := [][]byte{
		{2},
		{0xFF},
		{0, 9},
		{0, 200},
		{1, 0, 0, 0, 1, 'x', 5},
	}
	for _, in := range cases {
		_, err := decodeRequestBytes(t, in)
		if !errors.Is(err, ErrUnknownTag) {
			t.Fatalf("%v: expected ErrUnknownTag, got %v", in, err)
		}
		if DecodeReason(err) != "unknown_tag" {
			t.Fatalf("%v: unexpected reason %q", in, DecodeReason(err))
		}
	}
}

func TestDecodeRequestOversizeURL(t *testing.T) {
	testlog.Start(t)
	in := []byte{1, 0x7F, 0xFF, 0xFF, 0xFF}
	if _, err := decodeRequestBytes(t, in); !errors.Is(err, ErrStringTooLarge) {
		t.Fatalf("expected ErrStringTooLarge, got %v", err)
	}
}

func TestMalformedInputThenValidFrameStillDecodes(t *testing.T) {
	testlog.Start(t)
	valid, err := EncodeRequest(NewRadioRequest(RadioScan))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	rng := rand.New(rand.NewSource(11))
	for i := 0; i < 200; i++ {
		noise := make([]byte, rng.Intn(12))
		rng.Read(noise)
		_, _ = decodeRequestBytes(t, noise)

		got, err := decodeRequestBytes(t, valid)
		if err != nil {
			t.Fatalf("iteration %d: valid frame failed after noise: %v", i, err)
		}
		if got.Radio.Op != RadioScan {
			t.Fatalf("iteration %d: unexpected op %s", i, got.Radio.Op)
		}
	}
}

func TestDecodeResponseRejectsBadStatusAndBool(t *testing.T) {
	testlog.Start(t)
	if _, err := decodeResponseBytes(t, []byte{byte(KindStartAck), 0}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := decodeResponseBytes(t, []byte{byte(KindStarted), 1, 2}); !errors.Is(err, ErrInvalidBool) {
		t.Fatalf("expected ErrInvalidBool, got %v", err)
	}
	if _, err := decodeResponseBytes(t, []byte{11, 1}); !errors.Is(err, ErrUnknownTag) {
		t.Fatalf("expected ErrUnknownTag, got %v", err)
	}
}

func TestEncodeRejectsUnrepresentableValues(t *testing.T) {
	testlog.Start(t)
	long := string(bytes.Repeat([]byte("s"), SSIDFieldLen+1))
	if _, err := EncodeRequest(NewSetConfigRequest(ClientConfig{SSID: long})); !errors.Is(err, ErrFieldTooLong) {
		t.Fatalf("expected ErrFieldTooLong, got %v", err)
	}
	if _, err := EncodeRequest(NewNetworkRequest("http://x", MethodGet, Header{Key: "a"})); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for GET headers, got %v", err)
	}
	if _, err := EncodeRequest(NewRadioRequest(RadioOp(40))); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for unknown op, got %v", err)
	}
	many := make([]AccessPoint, wire.MaxListLen+1)
	if _, err := EncodeResponse(NetworksResponse(many)); !errors.Is(err, ErrListTooLong) {
		t.Fatalf("expected ErrListTooLong, got %v", err)
	}
}

func TestRadioOpNamesRoundTrip(t *testing.T) {
	testlog.Start(t)
	for _, op := range RadioOps() {
		got, ok := ParseRadioOp(op.String())
		if !ok || got != op {
			t.Fatalf("ParseRadioOp(%q) = %v,%v", op.String(), got, ok)
		}
	}
	if m, ok := ParseMethod("post"); !ok || m != MethodPost {
		t.Fatalf("ParseMethod(post) = %v,%v", m, ok)
	}
}

func TestUnknownTagKeepsFollowingFrame(t *testing.T) {
	testlog.Start(t)
	src := wire.NewReaderSource(bytes.NewReader([]byte{7, 0, 99, 0, 0}))
	limits := wire.DefaultLimits()

	for i := 0; i < 2; i++ {
		_, err := DecodeRequest(src, limits)
		if !errors.Is(err, ErrUnknownTag) || NeedsResync(err) {
			t.Fatalf("frame %d: expected unknown tag without resync, got %v", i, err)
		}
	}
	req, err := DecodeRequest(src, limits)
	if err != nil || req.Radio.Op != RadioIsStarted {
		t.Fatalf("expected is_started after bad tags, got %+v err=%v", req, err)
	}
}

func TestNeedsResyncOnUnlocatableFrameEnd(t *testing.T) {
	testlog.Start(t)
	if _, err := decodeRequestBytes(t, []byte{0, 8, 'x'}); !NeedsResync(err) {
		t.Fatalf("truncated frame must resync, got %v", err)
	}
	small := wire.Limits{MaxStringBytes: 4, MaxBodyBytes: 4}
	frame := []byte{1, 0, 0, 0, 5, 'h', 't', 't', 'p', 's', 1}
	_, err := DecodeRequest(wire.NewReaderSource(bytes.NewReader(frame)), small)
	if !errors.Is(err, ErrStringTooLarge) || !NeedsResync(err) {
		t.Fatalf("oversized url must resync, got %v", err)
	}
	if NeedsResync(nil) {
		t.Fatalf("nil error must not resync")
	}
}
