package transport

import (
	"fmt"
	"io"
	"os"
	"sync/atomic"
	"testing"

	httperrors "github.com/nczempin/tinyd-go-uring/errors"
)

var unixTestCounter uint64

func unixSocketPath(t *testing.T) string {
	t.Helper()

	// Generate unique socket path
	count := atomic.AddUint64(&unixTestCounter, 1)
	socketPath := fmt.Sprintf("/tmp/tinyd_test_%d_%d.sock", os.Getpid(), count)
	os.Remove(socketPath)
	return socketPath
}

func TestUnixListener_Construction(t *testing.T) {
	path := unixSocketPath(t)

	l, err := NewUnixListener(path)
	if err != nil {
		t.Fatalf("NewUnixListener failed: %v", err)
	}
	defer l.Close()

	if l.Addr() != path {
		t.Errorf("Expected address %q, got %q", path, l.Addr())
	}
}

func TestUnixListener_Construction_RemovesStaleSocket(t *testing.T) {
	path := unixSocketPath(t)

	first, err := NewUnixListener(path)
	if err != nil {
		t.Fatalf("NewUnixListener failed: %v", err)
	}
	// Leave the socket file behind like a crashed server would
	first.ln.(interface{ SetUnlinkOnClose(bool) }).SetUnlinkOnClose(false)
	first.Close()

	second, err := NewUnixListener(path)
	if err != nil {
		t.Fatalf("NewUnixListener over stale socket failed: %v", err)
	}
	second.Close()
}

func TestUnixListener_Construction_Failure_NotASocket(t *testing.T) {
	path := unixSocketPath(t)
	if err := os.WriteFile(path, []byte("regular file"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	defer os.Remove(path)

	_, err := NewUnixListener(path)
	expectTransportError(t, err, httperrors.TransportErrorSocketBindFailure)
}

func TestUnixListener_ReadWrite_Success(t *testing.T) {
	path := unixSocketPath(t)

	l, err := NewUnixListener(path)
	if err != nil {
		t.Fatalf("NewUnixListener failed: %v", err)
	}
	defer l.Close()

	conn, client := acceptOne(t, l, "unix")
	defer client.Close()

	client.Write([]byte("HEAD / HTTP/1.0\r\n"))

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "HEAD / HTTP/1.0\r\n" {
		t.Errorf("Unexpected request bytes %q", string(buf[:n]))
	}

	conn.Write([]byte("HTTP/1.0 200 OK\r\n\r\n"))
	conn.Close()

	received, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(received) != "HTTP/1.0 200 OK\r\n\r\n" {
		t.Errorf("Unexpected response bytes %q", string(received))
	}
}

func TestUnixListener_File_Success(t *testing.T) {
	path := unixSocketPath(t)

	l, err := NewUnixListener(path)
	if err != nil {
		t.Fatalf("NewUnixListener failed: %v", err)
	}
	defer l.Close()

	conn, client := acceptOne(t, l, "unix")
	defer client.Close()

	f, err := conn.File()
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}
	conn.Close()
	f.Write([]byte("cgi output"))
	f.Close()

	received, _ := io.ReadAll(client)
	if string(received) != "cgi output" {
		t.Errorf("Expected %q, got %q", "cgi output", string(received))
	}
}

func TestUnixListener_Close_RemovesSocket(t *testing.T) {
	path := unixSocketPath(t)

	l, err := NewUnixListener(path)
	if err != nil {
		t.Fatalf("NewUnixListener failed: %v", err)
	}
	l.Close()

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("Expected socket file to be removed, stat error: %v", err)
	}
}
