package transport

import (
	"testing"

	httperrors "github.com/nczempin/tinyd-go-uring/errors"
)

func TestListen_UnknownNetwork(t *testing.T) {
	_, err := Listen("udp", "127.0.0.1:0", 8)
	expectTransportError(t, err, httperrors.TransportErrorSocketCreateFailure)
}

func TestListen_Tcp(t *testing.T) {
	l, err := Listen("tcp", "127.0.0.1:0", 8)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer l.Close()

	if _, ok := l.(*NetListener); !ok {
		t.Errorf("Expected *NetListener, got %T", l)
	}
}

func TestDial_ReadWrite(t *testing.T) {
	l, err := Listen("tcp", "127.0.0.1:0", 8)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	defer l.Close()

	accepted := make(chan Conn, 1)
	go func() {
		conn, err := l.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	client, err := Dial("tcp", l.Addr())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer client.Close()

	server := <-accepted
	defer server.Close()

	if _, err := client.Write([]byte("ping")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	buf := make([]byte, 4)
	n, err := server.Read(buf)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(buf[:n]) != "ping" {
		t.Errorf("Expected %q, got %q", "ping", string(buf[:n]))
	}
}

func TestDial_Refused(t *testing.T) {
	l, err := Listen("tcp", "127.0.0.1:0", 8)
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	addr := l.Addr()
	l.Close()

	_, err = Dial("tcp", addr)
	expectTransportError(t, err, httperrors.TransportErrorSocketConnectFailure)
}
