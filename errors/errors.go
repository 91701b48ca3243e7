package errors

import "fmt"

// ErrorType represents the category of error
type ErrorType int

const (
	ErrorNone ErrorType = iota
	ErrorTransport
	ErrorProtocol
	ErrorRequest
	ErrorSpawn
	ErrorConfig
	ErrorStorage
	ErrorInvalidArgument
)

// TransportError represents transport-layer specific errors
type TransportError int

const (
	TransportErrorNone TransportError = iota
	TransportErrorSocketCreateFailure
	TransportErrorSocketBindFailure
	TransportErrorSocketConnectFailure
	TransportErrorSocketAcceptFailure
	TransportErrorSocketReadFailure
	TransportErrorSocketWriteFailure
	TransportErrorConnectionClosed
	TransportErrorListenerClosed
	TransportErrorIoUringInit
	TransportErrorIoUringSubmit
)

// ProtocolError represents malformed HTTP messages read back from a peer
type ProtocolError int

const (
	ProtocolErrorNone ProtocolError = iota
	ProtocolErrorInvalidStatusLine
	ProtocolErrorInvalidHeader
	ProtocolErrorIncompleteResponse
)

// RequestError represents failures of a single request/response cycle
type RequestError int

const (
	RequestErrorNone RequestError = iota
	RequestErrorMalformedRequestLine
	RequestErrorUnsupportedMethod
	RequestErrorTargetNotFound
	RequestErrorTargetForbidden
	RequestErrorIncompleteBody
)

// Status returns the HTTP status code reported to the client, or 0 when the
// error is not reported to the client at all.
func (e RequestError) Status() int {
	switch e {
	case RequestErrorMalformedRequestLine:
		return 400
	case RequestErrorUnsupportedMethod:
		return 501
	case RequestErrorTargetNotFound:
		return 404
	case RequestErrorTargetForbidden:
		return 403
	default:
		return 0
	}
}

// ShortMessage is the reason phrase that goes on the status line.
func (e RequestError) ShortMessage() string {
	switch e {
	case RequestErrorMalformedRequestLine:
		return "Bad request"
	case RequestErrorUnsupportedMethod:
		return "Not implemented"
	case RequestErrorTargetNotFound:
		return "Not found"
	case RequestErrorTargetForbidden:
		return "Forbidden"
	case RequestErrorIncompleteBody:
		return "Incomplete body"
	default:
		return fmt.Sprintf("Unknown request error: %d", e)
	}
}

// ServerError is the main error type of the server
type ServerError struct {
	Type          ErrorType
	TransportErr  TransportError
	ProtocolErr   ProtocolError
	RequestErr    RequestError
	Message       string
	Cause         string
	UnderlyingErr error
}

// Error implements the error interface
func (e *ServerError) Error() string {
	if e == nil {
		return "no error"
	}

	var typeStr string
	switch e.Type {
	case ErrorTransport:
		typeStr = fmt.Sprintf("Transport error (%d)", e.TransportErr)
	case ErrorProtocol:
		typeStr = fmt.Sprintf("Protocol error (%d)", e.ProtocolErr)
	case ErrorRequest:
		typeStr = fmt.Sprintf("Request error (%d %s)", e.RequestErr.Status(), e.RequestErr.ShortMessage())
	case ErrorSpawn:
		typeStr = "Spawn error"
	case ErrorConfig:
		typeStr = "Config error"
	case ErrorStorage:
		typeStr = "Storage error"
	case ErrorInvalidArgument:
		typeStr = "Invalid argument"
	default:
		typeStr = "Unknown error"
	}

	if e.Message != "" {
		typeStr = fmt.Sprintf("%s: %s", typeStr, e.Message)
	}

	if e.UnderlyingErr != nil {
		return fmt.Sprintf("%s (caused by: %v)", typeStr, e.UnderlyingErr)
	}

	return typeStr
}

// Unwrap returns the underlying error for error chain support
func (e *ServerError) Unwrap() error {
	return e.UnderlyingErr
}

// Status returns the client-facing status code, 0 if none applies.
func (e *ServerError) Status() int {
	if e == nil || e.Type != ErrorRequest {
		return 0
	}
	return e.RequestErr.Status()
}

// NewTransportError creates a new transport error
func NewTransportError(err TransportError, message string, underlying error) *ServerError {
	return &ServerError{
		Type:          ErrorTransport,
		TransportErr:  err,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewProtocolError creates a new protocol error
func NewProtocolError(err ProtocolError, message string) *ServerError {
	return &ServerError{
		Type:        ErrorProtocol,
		ProtocolErr: err,
		Message:     message,
	}
}

// NewRequestError creates a new request error. cause is the offending token
// (method, file name) echoed back in the error page; message is the long
// explanation shown next to it.
func NewRequestError(err RequestError, cause string, message string) *ServerError {
	return &ServerError{
		Type:       ErrorRequest,
		RequestErr: err,
		Cause:      cause,
		Message:    message,
	}
}

// NewSpawnError creates a new error for a failed dynamic-content process start
func NewSpawnError(path string, underlying error) *ServerError {
	return &ServerError{
		Type:          ErrorSpawn,
		Message:       fmt.Sprintf("failed to start %s", path),
		Cause:         path,
		UnderlyingErr: underlying,
	}
}

// NewConfigError creates a new configuration error
func NewConfigError(message string, underlying error) *ServerError {
	return &ServerError{
		Type:          ErrorConfig,
		Message:       message,
		UnderlyingErr: underlying,
	}
}

// NewStorageError creates a new error for file reads that fail after the
// response headers were committed
func NewStorageError(path string, underlying error) *ServerError {
	return &ServerError{
		Type:          ErrorStorage,
		Message:       fmt.Sprintf("failed to read %s", path),
		Cause:         path,
		UnderlyingErr: underlying,
	}
}

// NewInvalidArgumentError creates a new invalid argument error
func NewInvalidArgumentError(message string) *ServerError {
	return &ServerError{
		Type:    ErrorInvalidArgument,
		Message: message,
	}
}
