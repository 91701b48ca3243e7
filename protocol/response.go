package protocol

import (
	"fmt"
	"io"
	"strconv"
)

// Response is an HTTP/1.0 response built from an ordered header list
// and an optional body
type Response struct {
	StatusCode    int
	StatusMessage string
	Headers       []HttpHeader
	Body          []byte
}

// NewResponse starts a response with the given status line
func NewResponse(code int, message string) *Response {
	return &Response{
		StatusCode:    code,
		StatusMessage: message,
	}
}

// AddHeader appends a header; order is preserved on the wire
func (r *Response) AddHeader(key, value string) *Response {
	r.Headers = append(r.Headers, HttpHeader{Key: key, Value: value})
	return r
}

// AppendHead appends the status line and headers to buf. When terminate is
// set the blank line ending the header block is appended as well.
func (r *Response) AppendHead(buf []byte, terminate bool) []byte {
	// Status line
	buf = append(buf, ProtocolVersion...)
	buf = append(buf, ' ')
	buf = strconv.AppendInt(buf, int64(r.StatusCode), 10)
	buf = append(buf, ' ')
	buf = append(buf, r.StatusMessage...)
	buf = append(buf, CRLF...)

	// Headers
	for _, header := range r.Headers {
		buf = append(buf, header.Key...)
		buf = append(buf, ": "...)
		buf = append(buf, header.Value...)
		buf = append(buf, CRLF...)
	}

	// Blank line
	if terminate {
		buf = append(buf, CRLF...)
	}
	return buf
}

// WriteTo writes the head, the blank line and the body in a single write
func (r *Response) WriteTo(w io.Writer) (int64, error) {
	buf := r.AppendHead(make([]byte, 0, 256+len(r.Body)), true)
	buf = append(buf, r.Body...)
	n, err := w.Write(buf)
	return int64(n), err
}

// ErrorPage builds the HTML error response embedding "code: short" and
// "long: cause"
func ErrorPage(cause string, code int, short, long string) *Response {
	body := "<html><title>Tiny Error</title>" +
		"<body bgcolor=\"ffffff\">" + CRLF +
		fmt.Sprintf("%d: %s", code, short) + CRLF +
		fmt.Sprintf("<p>%s: %s", long, cause) + CRLF +
		"<hr><em>The Tiny Web server</em>" + CRLF

	resp := NewResponse(code, short)
	resp.AddHeader("Content-type", "text/html")
	resp.AddHeader("Content-length", strconv.Itoa(len(body)))
	resp.Body = []byte(body)
	return resp
}

// WriteError sends a complete error response for code to w
func WriteError(w io.Writer, cause string, code int, short, long string) error {
	_, err := ErrorPage(cause, code, short, long).WriteTo(w)
	return err
}
