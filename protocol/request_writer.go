package protocol

// AppendRequest serializes req as "METHOD SP URI SP Version CRLF", its
// headers in order, a blank line and the body. An empty Version defaults
// to HTTP/1.0.
func AppendRequest(buf []byte, req *HttpRequest) []byte {
	version := req.Version
	if version == "" {
		version = ProtocolVersion
	}

	// Request line
	buf = append(buf, req.Method...)
	buf = append(buf, ' ')
	buf = append(buf, req.URI...)
	buf = append(buf, ' ')
	buf = append(buf, version...)
	buf = append(buf, CRLF...)

	// Headers
	for _, header := range req.Headers {
		buf = append(buf, header.Key...)
		buf = append(buf, ": "...)
		buf = append(buf, header.Value...)
		buf = append(buf, CRLF...)
	}

	buf = append(buf, CRLF...)
	return append(buf, req.Body...)
}
