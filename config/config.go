package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/rs/zerolog"

	httperrors "github.com/nczempin/tinyd-go-uring/errors"
)

// EnvConfigFile names the environment variable pointing at a config file
const EnvConfigFile = "TINYD_CONFIG"

// DefaultConfigFile is read from the working directory when present
const DefaultConfigFile = "tinyd.hcl"

// Network kinds accepted by the Network setting
const (
	NetworkTCP   = "tcp"
	NetworkUnix  = "unix"
	NetworkUring = "uring"
)

// File reader kinds accepted by the FileReader setting
const (
	FileReaderOS    = "os"
	FileReaderUring = "uring"
)

// Config holds the server settings. Attributes missing from a file keep
// their default value.
type Config struct {
	DocumentRoot    string `hcl:"document_root,optional"`
	CGIMarker       string `hcl:"cgi_marker,optional"`
	DefaultDocument string `hcl:"default_document,optional"`
	ServerName      string `hcl:"server_name,optional"`
	Network         string `hcl:"network,optional"`
	FileReader      string `hcl:"file_reader,optional"`
	LogLevel        string `hcl:"log_level,optional"`
	RingEntries     int    `hcl:"ring_entries,optional"`
}

// Default returns the settings of a server run from its document root
func Default() Config {
	return Config{
		DocumentRoot:    ".",
		CGIMarker:       "cgi-bin",
		DefaultDocument: "home.html",
		ServerName:      "Tiny Web Server",
		Network:         NetworkTCP,
		FileReader:      FileReaderOS,
		LogLevel:        "info",
		RingEntries:     32,
	}
}

// Load reads the file named by TINYD_CONFIG, else ./tinyd.hcl if it exists,
// else returns the defaults
func Load() (Config, error) {
	if path := os.Getenv(EnvConfigFile); path != "" {
		return LoadFile(path)
	}

	if _, err := os.Stat(DefaultConfigFile); err == nil {
		return LoadFile(DefaultConfigFile)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return Config{}, httperrors.NewConfigError("cannot stat "+DefaultConfigFile, err)
	}

	cfg := Default()
	return cfg, cfg.Validate()
}

// LoadFile decodes an HCL file over the defaults and validates the result
func LoadFile(path string) (Config, error) {
	cfg := Default()
	if err := hclsimple.DecodeFile(path, nil, &cfg); err != nil {
		return Config{}, httperrors.NewConfigError("failed to decode "+path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the server cannot run with
func (c Config) Validate() error {
	switch c.Network {
	case NetworkTCP, NetworkUnix, NetworkUring:
	default:
		return httperrors.NewConfigError(fmt.Sprintf("unknown network %q", c.Network), nil)
	}

	switch c.FileReader {
	case FileReaderOS, FileReaderUring:
	default:
		return httperrors.NewConfigError(fmt.Sprintf("unknown file reader %q", c.FileReader), nil)
	}

	if strings.TrimSpace(c.CGIMarker) == "" {
		return httperrors.NewConfigError("cgi_marker must not be empty", nil)
	}

	if c.DefaultDocument == "" {
		return httperrors.NewConfigError("default_document must not be empty", nil)
	}

	if c.RingEntries <= 0 || c.RingEntries > 4096 {
		return httperrors.NewConfigError(fmt.Sprintf("ring_entries %d out of range 1..4096", c.RingEntries), nil)
	}

	if _, err := c.Level(); err != nil {
		return err
	}

	return nil
}

// Level parses LogLevel
func (c Config) Level() (zerolog.Level, error) {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.NoLevel, httperrors.NewConfigError(fmt.Sprintf("unknown log level %q", c.LogLevel), err)
	}
	return level, nil
}
