package server

import (
	"bufio"
	"errors"
	"io"
	"os"

	"github.com/rs/zerolog"

	"github.com/nczempin/tinyd-go-uring/config"
	httperrors "github.com/nczempin/tinyd-go-uring/errors"
	"github.com/nczempin/tinyd-go-uring/protocol"
	"github.com/nczempin/tinyd-go-uring/transport"
)

// Handler runs exactly one read-parse-respond cycle per connection
type Handler struct {
	resolver   Resolver
	serverName string
	files      FileReader
	spawner    Spawner
	log        zerolog.Logger
}

// NewHandler creates a handler serving cfg.DocumentRoot
func NewHandler(cfg config.Config, files FileReader, spawner Spawner, logger zerolog.Logger) *Handler {
	return &Handler{
		resolver: Resolver{
			Root:            cfg.DocumentRoot,
			Marker:          cfg.CGIMarker,
			DefaultDocument: cfg.DefaultDocument,
		},
		serverName: cfg.ServerName,
		files:      files,
		spawner:    spawner,
		log:        logger,
	}
}

// Handle serves one request from conn. The caller closes conn afterwards.
func (h *Handler) Handle(conn transport.Conn) {
	log := h.log.With().Str("remote", conn.RemoteAddr()).Logger()
	r := bufio.NewReader(conn)

	req, err := protocol.ReadRequestLine(r)
	if err != nil {
		var serverErr *httperrors.ServerError
		if errors.As(err, &serverErr) && serverErr.Status() != 0 {
			h.reportError(conn, log, "", "", serverErr)
			return
		}
		if errors.Is(err, io.EOF) {
			log.Debug().Msg("connection closed before request line")
		} else {
			log.Warn().Err(err).Msg("failed reading request line")
		}
		return
	}

	log.Debug().Str("line", req.Method+" "+req.URI+" "+req.Version).Msg("request line")

	if req.Code == protocol.MethodOther {
		h.reportError(conn, log, req.Method, req.URI, httperrors.NewRequestError(
			httperrors.RequestErrorUnsupportedMethod,
			req.Method,
			"Tiny does not implement this method",
		))
		return
	}

	if err := protocol.ReadHeaders(r, req); err != nil {
		log.Warn().Err(err).Msg("failed reading request headers")
		return
	}
	for _, header := range req.Headers {
		log.Debug().Str("name", header.Key).Str("value", header.Value).Msg("header")
	}

	target := h.resolver.Resolve(req.URI)

	if req.Code == protocol.MethodPost {
		if err := protocol.ReadBody(r, req); err != nil {
			log.Warn().Err(err).Int("content_length", req.ContentLength).Msg("aborting request")
			return
		}
		target.QueryString = string(req.Body)
	}

	info, err := os.Stat(target.Filename)
	if err != nil {
		h.reportError(conn, log, req.Method, req.URI, httperrors.NewRequestError(
			httperrors.RequestErrorTargetNotFound,
			target.Filename,
			"Tiny couldn't find this file",
		))
		return
	}

	readable := info.Mode().IsRegular() && info.Mode().Perm()&0400 != 0

	if target.IsStatic {
		if !readable {
			h.reportError(conn, log, req.Method, req.URI, httperrors.NewRequestError(
				httperrors.RequestErrorTargetForbidden,
				target.Filename,
				"Tiny couldn't read the file",
			))
			return
		}

		h.access(log, req.Method, req.URI, 200)
		if err := h.ServeStatic(conn, target.Filename, info.Size(), req.Code == protocol.MethodHead); err != nil {
			log.Error().Err(err).Str("file", target.Filename).Msg("static response aborted")
		}
		return
	}

	if !readable {
		h.reportError(conn, log, req.Method, req.URI, httperrors.NewRequestError(
			httperrors.RequestErrorTargetForbidden,
			target.Filename,
			"Tiny couldn't run the CGI program",
		))
		return
	}

	h.access(log, req.Method, req.URI, 200)
	pid, err := h.ServeDynamic(conn, target.Filename, target.QueryString)
	if err != nil {
		log.Error().Err(err).Str("program", target.Filename).Msg("dynamic response aborted")
		return
	}
	log.Debug().Int("pid", pid).Str("program", target.Filename).Msg("program started")
}

// reportError sends the HTML error page for a client-facing request error
func (h *Handler) reportError(conn transport.Conn, log zerolog.Logger, method, uri string, serverErr *httperrors.ServerError) {
	status := serverErr.Status()
	h.access(log, method, uri, status)

	if err := protocol.WriteError(conn, serverErr.Cause, status, serverErr.RequestErr.ShortMessage(), serverErr.Message); err != nil {
		log.Warn().Err(err).Int("status", status).Msg("failed to send error page")
	}
}

func (h *Handler) access(log zerolog.Logger, method, uri string, status int) {
	log.Info().
		Str("method", method).
		Str("uri", uri).
		Int("status", status).
		Msg("request")
}
