package protocol

import (
	"bytes"
	"strconv"
	"strings"
	"testing"
)

func TestResponse_WriteTo(t *testing.T) {
	resp := NewResponse(200, "OK").
		AddHeader("Server", "Tiny Web Server").
		AddHeader("Content-length", "5")
	resp.Body = []byte("hello")

	var buf bytes.Buffer
	n, err := resp.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}

	expected := "HTTP/1.0 200 OK\r\nServer: Tiny Web Server\r\nContent-length: 5\r\n\r\nhello"
	if buf.String() != expected {
		t.Errorf("Expected %q, got %q", expected, buf.String())
	}
	if n != int64(len(expected)) {
		t.Errorf("Expected %d bytes written, got %d", len(expected), n)
	}
}

func TestResponse_AppendHead_Unterminated(t *testing.T) {
	head := NewResponse(200, "OK").AddHeader("Server", "Tiny Web Server").AppendHead(nil, false)

	if string(head) != "HTTP/1.0 200 OK\r\nServer: Tiny Web Server\r\n" {
		t.Errorf("Unexpected head %q", string(head))
	}
}

func TestWriteError_Format(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteError(&buf, "./missing.html", 404, "Not found", "Tiny couldn't find this file"); err != nil {
		t.Fatalf("WriteError failed: %v", err)
	}

	body := "<html><title>Tiny Error</title><body bgcolor=\"ffffff\">\r\n" +
		"404: Not found\r\n" +
		"<p>Tiny couldn't find this file: ./missing.html\r\n" +
		"<hr><em>The Tiny Web server</em>\r\n"
	expected := "HTTP/1.0 404 Not found\r\n" +
		"Content-type: text/html\r\n" +
		"Content-length: " + strconv.Itoa(len(body)) + "\r\n\r\n" + body

	if buf.String() != expected {
		t.Errorf("Expected:\n%q\ngot:\n%q", expected, buf.String())
	}
}

func TestWriteError_ContentLengthMatchesBody(t *testing.T) {
	var buf bytes.Buffer
	WriteError(&buf, "DELETE", 501, "Not implemented", "Tiny does not implement this method")

	resp, err := ReadResponse(&buf)
	if err != nil {
		t.Fatalf("ReadResponse failed: %v", err)
	}
	if resp.StatusCode != 501 || resp.StatusMessage != "Not implemented" {
		t.Errorf("Unexpected status %d %q", resp.StatusCode, resp.StatusMessage)
	}
	if resp.ContentLength != len(resp.Body) {
		t.Errorf("Content-length %d does not match body length %d", resp.ContentLength, len(resp.Body))
	}
	if !strings.Contains(string(resp.Body), "Tiny does not implement this method: DELETE") {
		t.Errorf("Body does not carry the cause: %q", string(resp.Body))
	}
}
