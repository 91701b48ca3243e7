package protocol

import "strings"

// ProtocolVersion is the only version this server speaks on responses
const ProtocolVersion = "HTTP/1.0"

// CRLF terminates every line of the wire format
const CRLF = "\r\n"

// HttpMethod represents HTTP request methods
type HttpMethod int

const (
	MethodOther HttpMethod = iota
	MethodGet
	MethodHead
	MethodPost
)

// ParseMethod classifies a request-line method token case-insensitively
func ParseMethod(token string) HttpMethod {
	switch {
	case strings.EqualFold(token, "GET"):
		return MethodGet
	case strings.EqualFold(token, "HEAD"):
		return MethodHead
	case strings.EqualFold(token, "POST"):
		return MethodPost
	default:
		return MethodOther
	}
}

func (m HttpMethod) String() string {
	switch m {
	case MethodGet:
		return "GET"
	case MethodHead:
		return "HEAD"
	case MethodPost:
		return "POST"
	default:
		return "OTHER"
	}
}

// HttpHeader represents an HTTP header key-value pair
type HttpHeader struct {
	Key   string
	Value string
}

// HttpRequest represents one HTTP request as read off the wire.
// Method holds the token exactly as sent; Code is its classification.
type HttpRequest struct {
	Method        string
	Code          HttpMethod
	URI           string
	Version       string
	Headers       []HttpHeader
	ContentLength int
	Body          []byte
}

// HttpResponse represents a parsed HTTP response
type HttpResponse struct {
	Proto         string
	StatusCode    int
	StatusMessage string
	Headers       []HttpHeader
	Body          []byte
	ContentLength int
}

// Header returns the first value of the header named key, compared
// case-insensitively, or "" when absent
func (r *HttpResponse) Header(key string) string {
	for _, h := range r.Headers {
		if strings.EqualFold(h.Key, key) {
			return h.Value
		}
	}
	return ""
}
