package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	logs "github.com/danmuck/edgelink/internal/logging"
)

// Listener accepts one controller connection at a time.
type Listener struct {
	ln   *net.TCPListener
	opts StreamOptions
}

func ListenTCP(addr string, opts StreamOptions) (*Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("transport: listen %q: %w", addr, err)
	}
	tcp, ok := ln.(*net.TCPListener)
	if !ok {
		_ = ln.Close()
		return nil, fmt.Errorf("transport: listen %q: not a tcp listener", addr)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultStreamOptions().PollInterval
	}
	return &Listener{ln: tcp, opts: opts}, nil
}

func (l *Listener) Addr() net.Addr {
	return l.ln.Addr()
}

// Accept waits for the next controller until ctx ends.
func (l *Listener) Accept(ctx context.Context) (*Stream, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := l.ln.SetDeadline(time.Now().Add(l.opts.PollInterval)); err != nil {
			return nil, acceptErr(err)
		}
		conn, err := l.ln.Accept()
		if err != nil {
			if isTimeout(err) {
				continue
			}
			return nil, acceptErr(err)
		}
		logs.Infof("transport.Listener.accept controller connected remote=%q", conn.RemoteAddr().String())
		return NewStream("tcp:"+conn.RemoteAddr().String(), conn, l.opts), nil
	}
}

func (l *Listener) Opener() Opener {
	return func(ctx context.Context) (Transport, error) {
		return l.Accept(ctx)
	}
}

func (l *Listener) Close() error {
	return l.ln.Close()
}

func acceptErr(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrClosed, err)
	}
	return fmt.Errorf("transport: accept: %w", err)
}
