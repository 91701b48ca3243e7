package transport

import (
	"net"
	"os"

	httperrors "github.com/nczempin/tinyd-go-uring/errors"
)

// Listener defines the accepting side of a server transport
type Listener interface {
	// Accept blocks until a client connects and returns its stream
	Accept() (Conn, error)

	// Addr returns the address the listener is bound to
	Addr() string

	// Close stops accepting; a blocked Accept returns an error
	Close() error
}

// Conn is the bidirectional byte stream of one accepted connection
type Conn interface {
	// Read receives data from the client
	// Returns the number of bytes read
	Read(buf []byte) (int, error)

	// Write sends data to the client
	// Returns the number of bytes written
	Write(buf []byte) (int, error)

	// File returns a duplicate of the connection descriptor that can be
	// handed to a child process. The caller owns and must close it.
	File() (*os.File, error)

	// RemoteAddr returns the client address as host:port (or a socket path)
	RemoteAddr() string

	// Close closes the connection
	Close() error
}

// Listen creates a listener for network: "tcp" and "uring" take a host:port
// address, "unix" takes a socket path. entries sizes the io_uring queue.
func Listen(network, address string, entries uint) (Listener, error) {
	var (
		l   Listener
		err error
	)
	switch network {
	case "tcp":
		l, err = NewTcpListener(address)
	case "unix":
		l, err = NewUnixListener(address)
	case "uring":
		l, err = NewUringListener(address, entries)
	default:
		return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketCreateFailure, "unknown network "+network, nil)
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Dial connects to a listening server over "tcp" or "unix"
func Dial(network, address string) (Conn, error) {
	conn, err := net.Dial(network, address)
	if err != nil {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketConnectFailure, "failed to connect to "+address, err)
	}
	return &NetConn{conn: conn}, nil
}
