package protocol

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	httperrors "github.com/nczempin/tinyd-go-uring/errors"
)

var headerSeparator = []byte("\r\n\r\n")

// ReadResponse reads an HTTP/1.x response until the peer closes the
// connection or the declared Content-Length has arrived, then parses it.
// Responses without Content-Length (CGI output) run to end of stream.
func ReadResponse(r io.Reader) (*HttpResponse, error) {
	return readResponse(r, false)
}

// ReadHeadResponse reads the reply to a HEAD request. Content-Length
// describes the entity, not the payload, so the stream is read to its end
// and any bytes after the header block are returned as Body.
func ReadHeadResponse(r io.Reader) (*HttpResponse, error) {
	return readResponse(r, true)
}

func readResponse(r io.Reader, head bool) (*HttpResponse, error) {
	buffer := make([]byte, 0, 1024)
	readBuf := make([]byte, 1024)
	headerSize := 0
	contentLength := -1

	for {
		n, err := r.Read(readBuf)
		buffer = append(buffer, readBuf[:n]...)

		// Look for header separator if we haven't found it yet
		if headerSize == 0 {
			if pos := bytes.Index(buffer, headerSeparator); pos >= 0 {
				headerSize = pos + len(headerSeparator)
				contentLength = headerContentLength(buffer[:headerSize])
			}
		}

		// Check if we have complete response
		if !head && contentLength >= 0 && len(buffer) >= headerSize+contentLength {
			break
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				return nil, err
			}
			// Connection closed - check if we have complete response
			if !head && contentLength >= 0 && len(buffer) < headerSize+contentLength {
				return nil, httperrors.NewProtocolError(
					httperrors.ProtocolErrorIncompleteResponse,
					"connection closed before complete response received",
				)
			}
			break
		}
	}

	if headerSize == 0 {
		return nil, httperrors.NewProtocolError(
			httperrors.ProtocolErrorInvalidStatusLine,
			"failed to parse HTTP response headers",
		)
	}

	return parseResponse(buffer, headerSize, contentLength, head)
}

// headerContentLength extracts Content-Length from a header block, -1 if absent
func headerContentLength(headersView []byte) int {
	lines := bytes.Split(headersView, []byte("\n"))
	for _, line := range lines[1:] { // Skip status line
		line = bytes.TrimSuffix(line, []byte("\r"))
		if len(line) == 0 {
			break
		}

		if len(line) >= len(contentLengthKey) && strings.EqualFold(string(line[:len(contentLengthKey)]), contentLengthKey) {
			valueStr := strings.TrimSpace(string(line[len(contentLengthKey):]))
			if length, err := strconv.Atoi(valueStr); err == nil {
				return length
			}
		}
	}
	return -1
}

func parseResponse(buffer []byte, headerSize, contentLength int, head bool) (*HttpResponse, error) {
	headersBlock := buffer[:headerSize-len(headerSeparator)]

	// Split into status line and rest of headers
	parts := bytes.SplitN(headersBlock, []byte("\n"), 2)
	statusLine := bytes.TrimSuffix(parts[0], []byte("\r"))

	// Parse status line: "HTTP/1.0 200 OK"
	statusParts := bytes.SplitN(statusLine, []byte(" "), 3)
	if len(statusParts) < 2 {
		return nil, httperrors.NewProtocolError(
			httperrors.ProtocolErrorInvalidStatusLine,
			"invalid status line format",
		)
	}

	statusCode, err := strconv.Atoi(string(statusParts[1]))
	if err != nil {
		return nil, httperrors.NewProtocolError(
			httperrors.ProtocolErrorInvalidStatusLine,
			fmt.Sprintf("invalid status code: %s", statusParts[1]),
		)
	}

	statusMessage := ""
	if len(statusParts) >= 3 {
		statusMessage = string(statusParts[2])
	}

	// Parse headers
	var headers []HttpHeader
	if len(parts) > 1 {
		headerLines := bytes.Split(parts[1], []byte("\n"))
		for _, line := range headerLines {
			line = bytes.TrimSuffix(line, []byte("\r"))
			if len(line) == 0 {
				break
			}

			headerParts := bytes.SplitN(line, []byte(":"), 2)
			if len(headerParts) != 2 {
				return nil, httperrors.NewProtocolError(
					httperrors.ProtocolErrorInvalidHeader,
					fmt.Sprintf("invalid header line: %q", line),
				)
			}
			headers = append(headers, HttpHeader{
				Key:   string(headerParts[0]),
				Value: strings.TrimSpace(string(headerParts[1])),
			})
		}
	}

	// Extract body
	var body []byte
	if !head && contentLength >= 0 {
		body = buffer[headerSize : headerSize+contentLength]
	} else {
		body = buffer[headerSize:]
	}

	return &HttpResponse{
		Proto:         string(statusParts[0]),
		StatusCode:    statusCode,
		StatusMessage: statusMessage,
		Headers:       headers,
		Body:          append([]byte(nil), body...),
		ContentLength: contentLength,
	}, nil
}
