package server

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nczempin/tinyd-go-uring/config"
	httperrors "github.com/nczempin/tinyd-go-uring/errors"
	"github.com/nczempin/tinyd-go-uring/transport"
)

// Backoff bounds for repeated accept failures such as EMFILE
const (
	minAcceptRetryDelay = 5 * time.Millisecond
	maxAcceptRetryDelay = time.Second
)

// Server accepts connections one at a time and hands each to a Handler
type Server struct {
	listener transport.Listener
	handler  *Handler
	reaper   *Reaper
	files    FileReader
	log      zerolog.Logger
}

// Option customizes a Server built by New
type Option func(*options)

type options struct {
	spawner Spawner
	files   FileReader
}

// WithSpawner replaces the process spawner
func WithSpawner(s Spawner) Option {
	return func(o *options) { o.spawner = s }
}

// WithFileReader replaces the file reader chosen from the configuration
func WithFileReader(fr FileReader) Option {
	return func(o *options) { o.files = fr }
}

// New creates a server for listener. cfg is expected to be validated.
func New(cfg config.Config, listener transport.Listener, logger zerolog.Logger, opts ...Option) (*Server, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.files == nil {
		switch cfg.FileReader {
		case config.FileReaderUring:
			fr, err := NewUringFileReader(uint32(cfg.RingEntries))
			if err != nil {
				return nil, err
			}
			o.files = fr
		default:
			o.files = OSFileReader{}
		}
	}

	reaper := NewReaper(logger)
	if o.spawner == nil {
		o.spawner = NewProcessSpawner(reaper)
	}

	return &Server{
		listener: listener,
		handler:  NewHandler(cfg, o.files, o.spawner, logger),
		reaper:   reaper,
		files:    o.files,
		log:      logger,
	}, nil
}

// Reaper returns the child reaper of the server
func (s *Server) Reaper() *Reaper {
	return s.reaper
}

// Serve runs the accept loop until ctx is cancelled or the listener is
// closed. Each connection is fully handled and closed before the next
// accept. Accept failures are logged and retried with a growing delay.
func (s *Server) Serve(ctx context.Context) error {
	s.reaper.Start()
	defer s.reaper.Stop()

	var wg sync.WaitGroup
	stop := make(chan struct{})
	defer func() {
		close(stop)
		wg.Wait()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		select {
		case <-ctx.Done():
			s.listener.Close()
		case <-stop:
		}
	}()

	s.log.Info().Str("addr", s.listener.Addr()).Msg("listening")

	var retryDelay time.Duration
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			var serverErr *httperrors.ServerError
			if errors.As(err, &serverErr) && serverErr.TransportErr == httperrors.TransportErrorListenerClosed {
				return err
			}

			if retryDelay == 0 {
				retryDelay = minAcceptRetryDelay
			} else {
				retryDelay = min(2*retryDelay, maxAcceptRetryDelay)
			}
			s.log.Error().Err(err).Dur("retry_in", retryDelay).Msg("accept failed")

			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		retryDelay = 0

		s.log.Info().Str("remote", conn.RemoteAddr()).Msg("accepted connection")
		s.handler.Handle(conn)

		if err := conn.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close failed")
		}
	}
}

// Close closes the listener and releases the file reader
func (s *Server) Close() error {
	err := s.listener.Close()
	if closer, ok := s.files.(interface{ Close() error }); ok {
		closer.Close()
	}
	return err
}
