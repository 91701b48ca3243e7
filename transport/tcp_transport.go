package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"syscall"

	httperrors "github.com/nczempin/tinyd-go-uring/errors"
)

// NetListener implements the Listener interface on top of the net package
type NetListener struct {
	ln net.Listener
}

// NewTcpListener binds a TCP listener on addr (host:port, host may be empty)
func NewTcpListener(addr string) (*NetListener, error) {
	return newNetListener("tcp", addr)
}

func newNetListener(network, addr string) (*NetListener, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		// Classify network errors using type assertions
		if opErr, ok := err.(*net.OpError); ok && opErr.Op == "listen" {
			if errors.Is(opErr.Err, syscall.EADDRINUSE) || errors.Is(opErr.Err, syscall.EACCES) {
				return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketBindFailure, addr, err)
			}
		}
		return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketCreateFailure, addr, err)
	}

	return &NetListener{ln: ln}, nil
}

// Accept waits for the next connection
func (l *NetListener) Accept() (Conn, error) {
	conn, err := l.ln.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, httperrors.NewTransportError(httperrors.TransportErrorListenerClosed, "listener closed", err)
		}
		return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketAcceptFailure, "accept failed", err)
	}

	return &NetConn{conn: conn}, nil
}

// Addr returns the bound address
func (l *NetListener) Addr() string {
	return l.ln.Addr().String()
}

// Close closes the listener
func (l *NetListener) Close() error {
	if err := l.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return httperrors.NewTransportError(httperrors.TransportErrorListenerClosed, "failed to close listener", err)
	}
	return nil
}

// NetConn implements the Conn interface for net.Conn based connections
type NetConn struct {
	conn net.Conn
}

// Write sends data over the connection
func (c *NetConn) Write(buf []byte) (int, error) {
	if c.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "connection closed", nil)
	}

	n, err := c.conn.Write(buf)
	if err != nil {
		// Check for broken pipe or connection reset
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed during write", err)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "write failed", err)
	}

	return n, nil
}

// Read receives data from the connection
func (c *NetConn) Read(buf []byte) (int, error) {
	if c.conn == nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "connection closed", nil)
	}

	n, err := c.conn.Read(buf)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return n, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed by peer", io.EOF)
		}
		return n, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "read failed", err)
	}

	return n, nil
}

// File duplicates the underlying descriptor (close-on-exec in the parent)
func (c *NetConn) File() (*os.File, error) {
	filer, ok := c.conn.(interface{ File() (*os.File, error) })
	if !ok || c.conn == nil {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketCreateFailure, "connection has no descriptor", nil)
	}

	f, err := filer.File()
	if err != nil {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketCreateFailure, "failed to duplicate descriptor", err)
	}
	return f, nil
}

// RemoteAddr returns the peer address
func (c *NetConn) RemoteAddr() string {
	if c.conn == nil {
		return ""
	}
	return c.conn.RemoteAddr().String()
}

// Close closes the connection
func (c *NetConn) Close() error {
	if c.conn == nil {
		return nil // Idempotent close
	}

	err := c.conn.Close()
	c.conn = nil

	if err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "failed to close connection", err)
	}

	return nil
}
