// Package auth guards the admin surface with a shared bearer token.
//
// It holds no policy or storage: a Validator decides, Middleware enforces.
package auth

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	logs "github.com/danmuck/edgelink/internal/logging"
)

var ErrUnauthorized = errors.New("auth: unauthorized")

// Validator validates an authentication token.
type Validator interface {
	Validate(token string) error
}

// StaticToken accepts exactly one shared token. An empty Token denies all.
type StaticToken struct {
	Token string
}

func (s StaticToken) Validate(token string) error {
	if s.Token == "" {
		return ErrUnauthorized
	}
	if subtle.ConstantTimeCompare([]byte(s.Token), []byte(token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}

// FuncValidator adapts a function into a Validator.
type FuncValidator func(token string) error

func (f FuncValidator) Validate(token string) error {
	return f(token)
}

// FromToken returns a StaticToken validator, or nil when token is blank so
// callers can leave the surface open.
func FromToken(token string) Validator {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil
	}
	return StaticToken{Token: token}
}

// BearerToken extracts the credential from an Authorization header value.
func BearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Middleware rejects requests whose bearer token v does not accept. A nil
// validator lets everything through.
func Middleware(v Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if v == nil {
			c.Next()
			return
		}
		token, ok := BearerToken(c.GetHeader("Authorization"))
		if ok {
			if err := v.Validate(token); err == nil {
				c.Next()
				return
			}
		}
		logs.Debugf("auth.Middleware denied path=%q ip=%s", c.Request.URL.Path, c.ClientIP())
		c.Header("WWW-Authenticate", `Bearer realm="edgelink"`)
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": ErrUnauthorized.Error()})
	}
}
