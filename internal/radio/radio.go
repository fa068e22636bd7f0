package radio

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/edgelink/internal/protocol"
)

// Controller is the radio peripheral as the catalog drives it. Query methods
// must not block; the rest may block until the driver settles.
type Controller interface {
	IsStarted() (bool, error)
	IsConnected() (bool, error)
	Capabilities() (protocol.Capabilities, error)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	Scan(ctx context.Context) ([]protocol.AccessPoint, error)
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	SetConfiguration(cfg protocol.ClientConfig) error
	Close() error
}

// QueryBlocker is implemented by controllers whose query methods perform
// I/O. Their queries are run like any other blocking operation.
type QueryBlocker interface {
	QueriesBlock() bool
}

// Error is a driver failure with the numeric code reported on the wire.
type Error struct {
	Code int32
	Msg  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("radio: %s (code=%d)", e.Msg, e.Code)
}

const (
	CodeFail          int32 = -1
	CodeNotStarted    int32 = 0x3002
	CodeState         int32 = 0x3006
	CodeSSID          int32 = 0x3008
	CodePassword      int32 = 0x3009
	CodeTimeout       int32 = 0x300A
	CodeNotConfigured int32 = 0x300B
)

var (
	ErrFail          = &Error{Code: CodeFail, Msg: "operation failed"}
	ErrNotStarted    = &Error{Code: CodeNotStarted, Msg: "radio not started"}
	ErrState         = &Error{Code: CodeState, Msg: "invalid radio state"}
	ErrSSID          = &Error{Code: CodeSSID, Msg: "network not found"}
	ErrPassword      = &Error{Code: CodePassword, Msg: "authentication failed"}
	ErrTimeout       = &Error{Code: CodeTimeout, Msg: "operation timed out"}
	ErrNotConfigured = &Error{Code: CodeNotConfigured, Msg: "no station configuration"}
)

// CodeOf maps any error to its wire code. Unknown errors are CodeFail and
// context expiry is CodeTimeout.
func CodeOf(err error) int32 {
	if err == nil {
		return 0
	}
	var re *Error
	if errors.As(err, &re) {
		return re.Code
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CodeTimeout
	}
	return CodeFail
}
