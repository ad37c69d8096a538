package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
)

// TransportHandler receives events from a Transport's read loop. Both
// methods are called from a single goroutine; OnClose is called exactly once.
type TransportHandler interface {
	OnData(chunk []byte)
	OnClose(err error)
}

// Transport is a duplex byte stream to one remote endpoint.
type Transport interface {
	// Start begins delivering received chunks to handler.
	Start(handler TransportHandler)
	Write(p []byte) error
	Close() error
}

// DialFunc opens a Transport to address.
type DialFunc func(ctx context.Context, address string) (Transport, error)

// DialTCP is the default DialFunc.
func DialTCP(ctx context.Context, address string) (Transport, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", address, err)
	}
	return NewTCPTransport(conn), nil
}

// TCPTransport adapts a net.Conn to Transport.
type TCPTransport struct {
	conn       net.Conn
	writeMutex sync.Mutex
	closed     atomic.Bool
	startOnce  sync.Once
	bufferSize int
}

// NewTCPTransport wraps an established connection
func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn, bufferSize: DefaultReadBufferSize}
}

// Start launches the read loop.
func (t *TCPTransport) Start(handler TransportHandler) {
	t.startOnce.Do(func() {
		go t.readLoop(handler)
	})
}

func (t *TCPTransport) readLoop(handler TransportHandler) {
	buf := make([]byte, t.bufferSize)
	for {
		n, err := t.conn.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			handler.OnData(chunk)
		}
		if err != nil {
			if t.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
				handler.OnClose(nil)
			} else {
				handler.OnClose(err)
			}
			return
		}
	}
}

// Write sends p in full.
func (t *TCPTransport) Write(p []byte) error {
	if t.closed.Load() {
		return net.ErrClosed
	}
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	if _, err := t.conn.Write(p); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Close shuts the connection down; the read loop then reports OnClose(nil).
func (t *TCPTransport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	return t.conn.Close()
}

// RemoteAddr returns the peer address
func (t *TCPTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}
