package protocol

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"math"
	"strings"

	httperrors "github.com/nczempin/tinyd-go-uring/errors"
)

var contentLengthKey = "Content-Length:"

// readLine returns one line including its terminator. A final line without
// a terminator is still returned when it carries data.
func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && line != "" {
			return line, nil
		}
		return line, err
	}
	return line, nil
}

// ReadRequestLine reads "METHOD SP Request-URI SP HTTP-Version" and returns a
// request with Method, Code, URI and Version set. Tokens are whitespace
// delimited and extra tokens are ignored.
func ReadRequestLine(r *bufio.Reader) (*HttpRequest, error) {
	line, err := readLine(r)
	if err != nil {
		return nil, httperrors.NewTransportError(
			httperrors.TransportErrorConnectionClosed,
			"no request line",
			err,
		)
	}

	fields := strings.Fields(line)
	if len(fields) < 3 {
		return nil, httperrors.NewRequestError(
			httperrors.RequestErrorMalformedRequestLine,
			strings.TrimRight(line, CRLF),
			"Tiny couldn't parse the request line",
		)
	}

	return &HttpRequest{
		Method:  fields[0],
		Code:    ParseMethod(fields[0]),
		URI:     fields[1],
		Version: fields[2],
	}, nil
}

// ReadHeaders consumes header lines up to and including the blank line and
// records them on req. Content-Length is matched case-insensitively as a
// prefix; an unparsable value leaves ContentLength at 0. End of stream
// before the blank line ends the header block.
func ReadHeaders(r *bufio.Reader, req *HttpRequest) error {
	for {
		line, err := readLine(r)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return httperrors.NewTransportError(
				httperrors.TransportErrorSocketReadFailure,
				"failed reading headers",
				err,
			)
		}

		if line == CRLF || line == "\n" {
			return nil
		}

		if len(line) >= len(contentLengthKey) && strings.EqualFold(line[:len(contentLengthKey)], contentLengthKey) {
			req.ContentLength = parseContentLength(line[len(contentLengthKey):])
		}

		trimmed := strings.TrimRight(line, CRLF)
		if key, value, ok := strings.Cut(trimmed, ":"); ok {
			req.Headers = append(req.Headers, HttpHeader{
				Key:   strings.TrimSpace(key),
				Value: strings.TrimSpace(value),
			})
		} else {
			req.Headers = append(req.Headers, HttpHeader{Key: trimmed})
		}
	}
}

// parseContentLength reads a decimal the way atoi does: leading blanks, an
// optional sign, then digits up to the first non-digit. Negative values and
// values without digits yield 0.
func parseContentLength(s string) int {
	i := 0
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\v' || s[i] == '\f') {
		i++
	}

	negative := false
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		negative = s[i] == '-'
		i++
	}

	n := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		if n > (math.MaxInt32-int(s[i]-'0'))/10 {
			n = math.MaxInt32
			break
		}
		n = n*10 + int(s[i]-'0')
	}

	if negative {
		return 0
	}
	return n
}

// ReadBody reads exactly req.ContentLength bytes into req.Body. The buffer
// grows with the data actually received rather than the declared length.
func ReadBody(r *bufio.Reader, req *HttpRequest) error {
	if req.ContentLength <= 0 {
		req.Body = []byte{}
		return nil
	}

	var body bytes.Buffer
	_, err := io.CopyN(&body, r, int64(req.ContentLength))
	req.Body = body.Bytes()
	if err != nil {
		return &httperrors.ServerError{
			Type:          httperrors.ErrorRequest,
			RequestErr:    httperrors.RequestErrorIncompleteBody,
			Message:       "body shorter than Content-Length",
			Cause:         req.URI,
			UnderlyingErr: err,
		}
	}
	return nil
}
