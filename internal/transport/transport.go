package transport

import (
	"context"
	"errors"
	"os"

	"github.com/danmuck/edgelink/internal/protocol/wire"
)

var (
	ErrClosed = errors.New("transport: closed")
	ErrKind   = errors.New("transport: unknown kind")
)

// Transport is one open controller link.
type Transport interface {
	wire.Source
	Write(p []byte) (int, error)
	// Discard drops bytes already buffered but not yet consumed and reports
	// how many. It is used to resync after a frame whose end is unknown.
	Discard() int
	// WaitFrame blocks until a byte is available, ctx ends, or the link fails.
	WaitFrame(ctx context.Context) error
	Close() error
	String() string
}

// Opener opens a fresh link. It is called again after every link failure.
type Opener func(ctx context.Context) (Transport, error)

func isTimeout(err error) bool {
	return errors.Is(err, os.ErrDeadlineExceeded)
}
