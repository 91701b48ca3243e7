package transport

import (
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"sync"
	"syscall"

	"github.com/iceber/iouring-go"
	"golang.org/x/sys/unix"

	httperrors "github.com/nczempin/tinyd-go-uring/errors"
)

// UringListener implements Listener using io_uring for accept and socket I/O
type UringListener struct {
	iour *iouring.IOURing
	fd   int
	addr string

	mu      sync.Mutex
	pending iouring.Request
	closed  bool
}

// NewUringListener creates a TCP listener on addr whose accept, recv and send
// operations go through an io_uring instance with the given queue depth
func NewUringListener(addr string, entries uint) (*UringListener, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketCreateFailure, "failed to resolve "+addr, err)
	}

	iour, err := iouring.New(entries)
	if err != nil {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorIoUringInit, "failed to initialize io_uring", err)
	}

	fd, err := listenSocket(tcpAddr)
	if err != nil {
		iour.Close()
		return nil, err
	}

	l := &UringListener{iour: iour, fd: fd}

	sa, err := syscall.Getsockname(fd)
	if err != nil {
		l.Close()
		return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketBindFailure, "getsockname failed", err)
	}
	l.addr = sockaddrString(sa)

	return l, nil
}

func listenSocket(tcpAddr *net.TCPAddr) (int, error) {
	// Convert to syscall.Sockaddr
	var sa syscall.Sockaddr
	family := syscall.AF_INET
	if ip4 := tcpAddr.IP.To4(); ip4 != nil || tcpAddr.IP == nil {
		sa4 := &syscall.SockaddrInet4{Port: tcpAddr.Port}
		if ip4 != nil {
			copy(sa4.Addr[:], ip4)
		}
		sa = sa4
	} else {
		family = syscall.AF_INET6
		sa6 := &syscall.SockaddrInet6{Port: tcpAddr.Port}
		copy(sa6.Addr[:], tcpAddr.IP)
		sa = sa6
	}

	fd, err := syscall.Socket(family, syscall.SOCK_STREAM|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return -1, httperrors.NewTransportError(httperrors.TransportErrorSocketCreateFailure, "failed to create socket", err)
	}

	if err := syscall.SetsockoptInt(fd, syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1); err != nil {
		syscall.Close(fd)
		return -1, httperrors.NewTransportError(httperrors.TransportErrorSocketCreateFailure, "failed to set SO_REUSEADDR", err)
	}

	if err := syscall.Bind(fd, sa); err != nil {
		syscall.Close(fd)
		return -1, httperrors.NewTransportError(httperrors.TransportErrorSocketBindFailure, "failed to bind "+tcpAddr.String(), err)
	}

	if err := syscall.Listen(fd, syscall.SOMAXCONN); err != nil {
		syscall.Close(fd)
		return -1, httperrors.NewTransportError(httperrors.TransportErrorSocketBindFailure, "failed to listen", err)
	}

	return fd, nil
}

// Accept submits an accept request and waits for its completion
func (l *UringListener) Accept() (Conn, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, httperrors.NewTransportError(httperrors.TransportErrorListenerClosed, "listener closed", nil)
	}

	ch := make(chan iouring.Result, 1)
	req, err := l.iour.SubmitRequest(iouring.Accept4(l.fd, syscall.SOCK_CLOEXEC), ch)
	if err != nil {
		l.mu.Unlock()
		return nil, httperrors.NewTransportError(httperrors.TransportErrorIoUringSubmit, "failed to submit accept request", err)
	}
	l.pending = req
	l.mu.Unlock()

	result := <-ch

	l.mu.Lock()
	l.pending = nil
	closed := l.closed
	l.mu.Unlock()

	fd, err := result.ReturnFd()
	if err != nil {
		if closed {
			return nil, httperrors.NewTransportError(httperrors.TransportErrorListenerClosed, "listener closed", err)
		}
		return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketAcceptFailure, "accept failed", err)
	}
	if closed {
		syscall.Close(fd)
		return nil, httperrors.NewTransportError(httperrors.TransportErrorListenerClosed, "listener closed", nil)
	}

	remote := ""
	if sa, ok := result.ReturnValue1().(syscall.Sockaddr); ok {
		remote = sockaddrString(sa)
	}

	return &UringConn{iour: l.iour, fd: fd, remote: remote}, nil
}

// Addr returns the bound address
func (l *UringListener) Addr() string {
	return l.addr
}

// Close cancels a pending accept, closes the socket and the io_uring instance
func (l *UringListener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil
	}
	l.closed = true

	if l.pending != nil {
		l.pending.Cancel()
		// shutdown wakes an accept already running in an io-wq worker
		syscall.Shutdown(l.fd, syscall.SHUT_RDWR)
	}

	var closeErr error
	if err := syscall.Close(l.fd); err != nil {
		closeErr = httperrors.NewTransportError(httperrors.TransportErrorListenerClosed, "failed to close socket", err)
	}
	l.fd = -1

	if l.pending == nil {
		l.iour.Close()
	} else {
		// the blocked Accept still waits on the ring; release it once it returns
		go func(pending iouring.Request, iour *iouring.IOURing) {
			<-pending.Done()
			iour.Close()
		}(l.pending, l.iour)
	}

	return closeErr
}

// UringConn implements Conn for a socket accepted through io_uring
type UringConn struct {
	iour   *iouring.IOURing
	fd     int
	remote string
	closed bool
}

// Write sends data over the connection using io_uring
func (c *UringConn) Write(buf []byte) (int, error) {
	if c.closed {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed", nil)
	}

	totalWritten := 0
	for totalWritten < len(buf) {
		// Sendmsg carries MSG_NOSIGNAL and, unlike Send, resolves the byte count
		prepReq, err := iouring.Sendmsg(c.fd, buf[totalWritten:], nil, nil, syscall.MSG_NOSIGNAL)
		if err != nil {
			return totalWritten, httperrors.NewTransportError(httperrors.TransportErrorIoUringSubmit, "failed to prepare write request", err)
		}

		ch := make(chan iouring.Result, 1)
		if _, err := c.iour.SubmitRequest(prepReq, ch); err != nil {
			return totalWritten, httperrors.NewTransportError(httperrors.TransportErrorIoUringSubmit, "failed to submit write request", err)
		}

		result := <-ch
		n, err := result.ReturnInt()
		if err != nil {
			if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) {
				return totalWritten, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed during write", err)
			}
			return totalWritten, httperrors.NewTransportError(httperrors.TransportErrorSocketWriteFailure, "write failed", err)
		}

		if n <= 0 {
			return totalWritten, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed during write", nil)
		}

		totalWritten += n
	}

	return totalWritten, nil
}

// Read receives data from the connection using io_uring
func (c *UringConn) Read(buf []byte) (int, error) {
	if c.closed {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed", nil)
	}

	ch := make(chan iouring.Result, 1)
	// Read on a socket behaves as recv without flags; Recv leaves the result unresolved
	prepReq := iouring.Read(c.fd, buf)
	if _, err := c.iour.SubmitRequest(prepReq, ch); err != nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorIoUringSubmit, "failed to submit read request", err)
	}

	result := <-ch
	n, err := result.ReturnInt()
	if err != nil {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorSocketReadFailure, "read failed", err)
	}

	if n == 0 && len(buf) > 0 {
		return 0, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed by peer", io.EOF)
	}

	return n, nil
}

// File duplicates the socket descriptor with close-on-exec set
func (c *UringConn) File() (*os.File, error) {
	if c.closed {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "connection closed", nil)
	}

	nfd, err := unix.FcntlInt(uintptr(c.fd), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, httperrors.NewTransportError(httperrors.TransportErrorSocketCreateFailure, "failed to duplicate descriptor", err)
	}
	return os.NewFile(uintptr(nfd), "uring-conn"), nil
}

// RemoteAddr returns the peer address reported by accept
func (c *UringConn) RemoteAddr() string {
	return c.remote
}

// Close closes the socket; the ring belongs to the listener
func (c *UringConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true

	if err := syscall.Close(c.fd); err != nil {
		return httperrors.NewTransportError(httperrors.TransportErrorConnectionClosed, "failed to close socket", err)
	}
	c.fd = -1

	return nil
}

func sockaddrString(sa syscall.Sockaddr) string {
	switch a := sa.(type) {
	case *syscall.SockaddrInet4:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *syscall.SockaddrInet6:
		return net.JoinHostPort(net.IP(a.Addr[:]).String(), strconv.Itoa(a.Port))
	case *syscall.SockaddrUnix:
		return a.Name
	default:
		return ""
	}
}
