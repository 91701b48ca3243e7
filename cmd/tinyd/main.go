package main

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nczempin/tinyd-go-uring/config"
	"github.com/nczempin/tinyd-go-uring/server"
	"github.com/nczempin/tinyd-go-uring/transport"
)

func main() {
	os.Exit(run(os.Args, os.Stderr))
}

func run(args []string, stderr io.Writer) int {
	if len(args) != 2 {
		fmt.Fprintf(stderr, "usage: %s <port>\n", args[0])
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", args[0], err)
		return 1
	}

	level, _ := cfg.Level()
	logger := zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: time.RFC3339}).
		Level(level).
		With().
		Timestamp().
		Logger()

	listener, err := transport.Listen(cfg.Network, listenAddress(cfg.Network, args[1]), uint(cfg.RingEntries))
	if err != nil {
		logger.Error().Err(err).Str("network", cfg.Network).Msg("failed to listen")
		return 1
	}

	srv, err := server.New(cfg, listener, logger)
	if err != nil {
		listener.Close()
		logger.Error().Err(err).Msg("failed to create server")
		return 1
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Serve(ctx); err != nil {
		logger.Error().Err(err).Msg("server stopped")
		return 1
	}

	logger.Info().Msg("shutting down")
	return 0
}

// listenAddress turns the command line argument into a listen address:
// a port for TCP, a socket path for unix
func listenAddress(network, arg string) string {
	if network == config.NetworkUnix {
		return arg
	}
	return net.JoinHostPort("", arg)
}
