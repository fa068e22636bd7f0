package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	logs "github.com/danmuck/edgelink/internal/logging"
	"github.com/danmuck/edgelink/internal/testutil/testlog"
)

func TestStaticTokenValidate(t *testing.T) {
	testlog.Start(t)
	tests := []struct {
		name    string
		stored  string
		input   string
		wantErr error
	}{
		{name: "empty token denied", stored: "", input: "abc", wantErr: ErrUnauthorized},
		{name: "mismatched token denied", stored: "abc", input: "xyz", wantErr: ErrUnauthorized},
		{name: "matching token accepted", stored: "abc", input: "abc", wantErr: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			logs.Logf("auth/static-token: stored=%q input=%q", tc.stored, tc.input)
			err := (StaticToken{Token: tc.stored}).Validate(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("expected err %v, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestFuncValidator(t *testing.T) {
	testlog.Start(t)
	validator := FuncValidator(func(token string) error {
		if token != "ok" {
			return ErrUnauthorized
		}
		return nil
	})

	if err := validator.Validate("bad"); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected unauthorized for bad token, got %v", err)
	}
	if err := validator.Validate("ok"); err != nil {
		t.Fatalf("expected success for ok token, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	testlog.Start(t)
	cases := map[string]string{
		"Bearer abc":   "abc",
		"bearer  abc ": "abc",
		"Basic abc":    "",
		"Bearer":       "",
		"":             "",
	}
	for header, want := range cases {
		got, ok := BearerToken(header)
		if got != want || ok != (want != "") {
			t.Fatalf("header %q: got %q ok=%t", header, got, ok)
		}
	}
}

func TestMiddleware(t *testing.T) {
	testlog.Start(t)
	gin.SetMode(gin.TestMode)

	serve := func(v Validator, header string) int {
		r := gin.New()
		r.Use(Middleware(v))
		r.GET("/x", func(c *gin.Context) { c.Status(http.StatusNoContent) })
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec.Code
	}

	if code := serve(nil, ""); code != http.StatusNoContent {
		t.Fatalf("nil validator must pass, got %d", code)
	}
	guard := FromToken(" s3cret ")
	if code := serve(guard, ""); code != http.StatusUnauthorized {
		t.Fatalf("missing token must be rejected, got %d", code)
	}
	if code := serve(guard, "Bearer wrong"); code != http.StatusUnauthorized {
		t.Fatalf("wrong token must be rejected, got %d", code)
	}
	if code := serve(guard, "Bearer s3cret"); code != http.StatusNoContent {
		t.Fatalf("valid token must pass, got %d", code)
	}
	if FromToken("  ") != nil {
		t.Fatalf("blank token must disable the guard")
	}
}
