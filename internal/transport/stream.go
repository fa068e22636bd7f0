package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/danmuck/edgelink/internal/protocol/wire"
)

// Conn is the minimum a link must offer to back a Stream.
type Conn interface {
	io.ReadWriteCloser
	SetReadDeadline(t time.Time) error
}

type StreamOptions struct {
	// FrameTimeout bounds the arrival of the rest of a frame after its first
	// byte.
	FrameTimeout time.Duration
	// PollInterval is how often WaitFrame rechecks its context.
	PollInterval time.Duration
	// WriteTimeout bounds one response write on links that support write
	// deadlines.
	WriteTimeout time.Duration
}

func DefaultStreamOptions() StreamOptions {
	return StreamOptions{
		FrameTimeout: 250 * time.Millisecond,
		PollInterval: 50 * time.Millisecond,
		WriteTimeout: time.Second,
	}
}

// Stream is a Transport over a buffered Conn. Reads come from one goroutine;
// Write may be called from another.
type Stream struct {
	name string
	conn Conn
	br   *bufio.Reader
	opts StreamOptions

	wmu       sync.Mutex
	closeOnce sync.Once
	closeErr  error
}

var _ Transport = (*Stream)(nil)

func NewStream(name string, conn Conn, opts StreamOptions) *Stream {
	def := DefaultStreamOptions()
	if opts.FrameTimeout <= 0 {
		opts.FrameTimeout = def.FrameTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = def.PollInterval
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = def.WriteTimeout
	}
	return &Stream{
		name: name,
		conn: conn,
		br:   bufio.NewReader(conn),
		opts: opts,
	}
}

func (s *Stream) String() string {
	return s.name
}

func (s *Stream) WaitFrame(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.br.Buffered() == 0 {
			if err := s.conn.SetReadDeadline(time.Now().Add(s.opts.PollInterval)); err != nil {
				return s.linkErr(err)
			}
		}
		_, err := s.br.Peek(1)
		if err == nil {
			return s.conn.SetReadDeadline(time.Now().Add(s.opts.FrameTimeout))
		}
		if isTimeout(err) {
			continue
		}
		return s.linkErr(err)
	}
}

// ReadExact returns exactly n bytes or a wire.ErrShortRead failure.
func (s *Stream) ReadExact(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	buf := make([]byte, n)
	got, err := io.ReadFull(s.br, buf)
	if err == nil {
		return buf, nil
	}
	if isTimeout(err) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: %s wanted %d got %d", wire.ErrShortRead, s.name, n, got)
	}
	return nil, s.linkErr(err)
}

func (s *Stream) Write(p []byte) (int, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if wd, ok := s.conn.(interface{ SetWriteDeadline(time.Time) error }); ok {
		_ = wd.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
	}
	n, err := s.conn.Write(p)
	if err != nil {
		return n, s.linkErr(err)
	}
	return n, nil
}

// Discard drops only the bytes already pulled into the read buffer. Bytes
// still in flight on the link are left for the next WaitFrame.
func (s *Stream) Discard() int {
	n, _ := s.br.Discard(s.br.Buffered())
	return n
}

func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

func (s *Stream) linkErr(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe) {
		return fmt.Errorf("%w: %s: %v", ErrClosed, s.name, err)
	}
	return fmt.Errorf("transport: %s: %w", s.name, err)
}
