package transport

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	httperrors "github.com/nczempin/tinyd-go-uring/errors"
)

// acceptOne dials l from a client and returns both ends of the connection
func acceptOne(t *testing.T, l Listener, network string) (Conn, net.Conn) {
	t.Helper()

	accepted := make(chan Conn, 1)
	acceptErr := make(chan error, 1)
	go func() {
		conn, err := l.Accept()
		if err != nil {
			acceptErr <- err
			return
		}
		accepted <- conn
	}()

	client, err := net.Dial(network, l.Addr())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	select {
	case conn := <-accepted:
		return conn, client
	case err := <-acceptErr:
		client.Close()
		t.Fatalf("Accept failed: %v", err)
	case <-time.After(2 * time.Second):
		client.Close()
		t.Fatal("Timeout waiting for accept")
	}
	return nil, nil
}

func expectTransportError(t *testing.T, err error, want httperrors.TransportError) {
	t.Helper()

	if err == nil {
		t.Fatal("Expected an error")
	}

	var serverErr *httperrors.ServerError
	if !errors.As(err, &serverErr) {
		t.Fatalf("Expected *httperrors.ServerError, got %T", err)
	}

	if serverErr.Type != httperrors.ErrorTransport {
		t.Fatalf("Expected ErrorTransport, got %d", serverErr.Type)
	}

	if serverErr.TransportErr != want {
		t.Errorf("Expected transport error %d, got %d", want, serverErr.TransportErr)
	}
}

func TestTcpListener_Construction(t *testing.T) {
	l, err := NewTcpListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTcpListener failed: %v", err)
	}
	defer l.Close()

	if l.Addr() == "" {
		t.Error("Listener should report its bound address")
	}
}

func TestTcpListener_Bind_Failure_AddressInUse(t *testing.T) {
	first, err := NewTcpListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTcpListener failed: %v", err)
	}
	defer first.Close()

	_, err = NewTcpListener(first.Addr())
	expectTransportError(t, err, httperrors.TransportErrorSocketBindFailure)
}

func TestTcpListener_Read_Success(t *testing.T) {
	l, err := NewTcpListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTcpListener failed: %v", err)
	}
	defer l.Close()

	conn, client := acceptOne(t, l, "tcp")
	defer conn.Close()
	defer client.Close()

	messageFromClient := "GET / HTTP/1.0\r\n"
	client.Write([]byte(messageFromClient))

	buf := make([]byte, 1024)
	n, err := conn.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}

	if string(buf[:n]) != messageFromClient {
		t.Errorf("Expected %q, got %q", messageFromClient, string(buf[:n]))
	}

	if conn.RemoteAddr() != client.LocalAddr().String() {
		t.Errorf("Expected remote address %q, got %q", client.LocalAddr().String(), conn.RemoteAddr())
	}
}

func TestTcpListener_Write_Success(t *testing.T) {
	l, err := NewTcpListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTcpListener failed: %v", err)
	}
	defer l.Close()

	conn, client := acceptOne(t, l, "tcp")
	defer client.Close()

	messageToSend := "HTTP/1.0 200 OK\r\n\r\n"
	n, err := conn.Write([]byte(messageToSend))
	if err != nil {
		t.Errorf("Write failed: %v", err)
	}
	if n != len(messageToSend) {
		t.Errorf("Expected to write %d bytes, wrote %d", len(messageToSend), n)
	}
	conn.Close()

	received, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(received) != messageToSend {
		t.Errorf("Expected %q, got %q", messageToSend, string(received))
	}
}

func TestTcpListener_Read_Failure_ConnectionClosed(t *testing.T) {
	l, err := NewTcpListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTcpListener failed: %v", err)
	}
	defer l.Close()

	conn, client := acceptOne(t, l, "tcp")
	defer conn.Close()

	// Client immediately closes
	client.Close()

	buf := make([]byte, 1024)
	_, err = conn.Read(buf)
	expectTransportError(t, err, httperrors.TransportErrorConnectionClosed)

	if !errors.Is(err, io.EOF) {
		t.Error("Expected the error to unwrap to io.EOF")
	}
}

func TestTcpListener_File_KeepsConnectionOpen(t *testing.T) {
	l, err := NewTcpListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTcpListener failed: %v", err)
	}
	defer l.Close()

	conn, client := acceptOne(t, l, "tcp")
	defer client.Close()

	f, err := conn.File()
	if err != nil {
		t.Fatalf("File failed: %v", err)
	}

	// The duplicate must outlive the original descriptor
	conn.Close()
	f.Write([]byte("from duplicate"))
	f.Close()

	received, err := io.ReadAll(client)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(received) != "from duplicate" {
		t.Errorf("Expected %q, got %q", "from duplicate", string(received))
	}
}

func TestTcpListener_Close_Idempotent(t *testing.T) {
	l, err := NewTcpListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTcpListener failed: %v", err)
	}

	conn, client := acceptOne(t, l, "tcp")
	defer client.Close()

	if err := conn.Close(); err != nil {
		t.Errorf("First close failed: %v", err)
	}
	if err := conn.Close(); err != nil {
		t.Errorf("Second close failed: %v", err)
	}

	if err := l.Close(); err != nil {
		t.Errorf("First listener close failed: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Second listener close failed: %v", err)
	}
}

func TestTcpListener_Accept_Failure_Closed(t *testing.T) {
	l, err := NewTcpListener("127.0.0.1:0")
	if err != nil {
		t.Fatalf("NewTcpListener failed: %v", err)
	}
	l.Close()

	_, err = l.Accept()
	expectTransportError(t, err, httperrors.TransportErrorListenerClosed)
}

func TestTcpListener_Write_Failure_NoConnection(t *testing.T) {
	conn := &NetConn{}

	_, err := conn.Write([]byte("test"))
	expectTransportError(t, err, httperrors.TransportErrorSocketWriteFailure)

	_, err = conn.Read(make([]byte, 16))
	expectTransportError(t, err, httperrors.TransportErrorSocketReadFailure)
}
