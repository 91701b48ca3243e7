package client

import (
	"strconv"
	"strings"

	"github.com/nczempin/tinyd-go-uring/errors"
	"github.com/nczempin/tinyd-go-uring/protocol"
	"github.com/nczempin/tinyd-go-uring/transport"
)

// HttpClient issues HTTP/1.0 requests, one connection per request. The
// response is read until the server closes the connection or the declared
// Content-length has arrived.
type HttpClient struct {
	network string
	address string
}

// NewHttpClient creates a client for a server at address on network
// ("tcp" or "unix")
func NewHttpClient(network, address string) *HttpClient {
	return &HttpClient{
		network: network,
		address: address,
	}
}

// Get performs a GET request
func (c *HttpClient) Get(req *protocol.HttpRequest) (*protocol.HttpResponse, error) {
	if len(req.Body) > 0 {
		return nil, errors.NewInvalidArgumentError("GET request cannot have a body")
	}
	req.Method = protocol.MethodGet.String()
	return c.Do(req)
}

// Head performs a HEAD request
func (c *HttpClient) Head(req *protocol.HttpRequest) (*protocol.HttpResponse, error) {
	if len(req.Body) > 0 {
		return nil, errors.NewInvalidArgumentError("HEAD request cannot have a body")
	}
	req.Method = protocol.MethodHead.String()

	conn, err := c.send(protocol.AppendRequest(nil, req))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return protocol.ReadHeadResponse(conn)
}

// Post performs a POST request
func (c *HttpClient) Post(req *protocol.HttpRequest) (*protocol.HttpResponse, error) {
	if err := c.validatePostRequest(req); err != nil {
		return nil, err
	}
	req.Method = protocol.MethodPost.String()
	return c.Do(req)
}

// Do sends req as is, without validation
func (c *HttpClient) Do(req *protocol.HttpRequest) (*protocol.HttpResponse, error) {
	return c.SendRaw(protocol.AppendRequest(nil, req))
}

// SendRaw writes raw to a fresh connection and parses the reply
func (c *HttpClient) SendRaw(raw []byte) (*protocol.HttpResponse, error) {
	conn, err := c.send(raw)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	return protocol.ReadResponse(conn)
}

func (c *HttpClient) send(raw []byte) (transport.Conn, error) {
	conn, err := transport.Dial(c.network, c.address)
	if err != nil {
		return nil, err
	}

	if _, err := conn.Write(raw); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

// validatePostRequest validates that a POST request has required fields
func (c *HttpClient) validatePostRequest(req *protocol.HttpRequest) error {
	if len(req.Body) == 0 {
		return errors.NewInvalidArgumentError("POST request must have a body")
	}

	// Check for Content-Length header
	for _, header := range req.Headers {
		if strings.EqualFold(header.Key, "Content-Length") {
			if n, err := strconv.Atoi(strings.TrimSpace(header.Value)); err != nil || n != len(req.Body) {
				return errors.NewInvalidArgumentError("POST Content-Length does not match the body")
			}
			return nil
		}
	}

	return errors.NewInvalidArgumentError("POST request must have Content-Length header")
}
