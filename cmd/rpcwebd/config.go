// Copyright (c) 2026 The rpcweb developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitcoin-rpc-web/rpcweb/eventfeed"
	"github.com/bitcoin-rpc-web/rpcweb/internal/control"
	"github.com/bitcoin-rpc-web/rpcweb/internal/version"
	"github.com/dustin/go-humanize"
	flags "github.com/jessevdk/go-flags"
	"golang.org/x/term"
)

const (
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "rpcwebd.log"
	defaultStatusInterval = time.Minute

	// insecureRPCEnv enables non-local RPC hosts when set to "1".
	insecureRPCEnv = "DANGER_INSECURE_RPC"
)

var (
	defaultHomeDir = appDataDir("rpcweb")
	defaultLogDir  = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// appDataDir returns the per-user directory rpcwebd keeps its files in.
func appDataDir(appName string) string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, appName)
	}
	return "." + appName
}

// config defines the configuration options for rpcwebd.
//
// See loadConfig for details on the configuration load process.
type config struct {
	ShowVersion bool `short:"V" long:"version" description:"Display version information and exit"`

	// RPC options.
	RPCURL    string `long:"rpcurl" env:"RPCWEB_RPCURL" description:"Base URL of the node RPC server"`
	RPCUser   string `short:"u" long:"rpcuser" env:"RPCWEB_RPCUSER" description:"Username for RPC connections"`
	RPCPass   string `short:"P" long:"rpcpass" env:"RPCWEB_RPCPASS" default-mask:"-" description:"Password for RPC connections; - prompts for it"`
	Wallet    string `long:"wallet" env:"RPCWEB_WALLET" description:"Scope RPC calls to the named wallet"`
	Proxy     string `long:"proxy" description:"Connect to the RPC server through a SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser string `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass string `long:"proxypass" default-mask:"-" description:"Password for proxy server"`

	AllowInsecureRPC bool `long:"allowinsecurerpc" description:"Allow RPC servers outside loopback and private networks (also enabled by DANGER_INSECURE_RPC=1)"`

	// Notification feed options.
	ZMQAddr   string `long:"zmqaddr" env:"RPCWEB_ZMQADDR" description:"ZeroMQ notification address of the node (eg. tcp://127.0.0.1:28332)"`
	ZMQBuffer int    `long:"zmqbuffer" description:"Number of notifications to retain"`

	// Refresh options.
	PollInterval   time.Duration `long:"pollinterval" description:"Interval between full dashboard refreshes"`
	StatusInterval time.Duration `long:"statusinterval" description:"Interval between status log lines; 0 disables them"`
	Workers        int           `long:"workers" description:"Number of worker goroutines"`
	MaxInFlight    int           `long:"maxinflight" description:"Maximum number of RPC requests in flight"`
	MemLimit       string        `long:"memlimit" description:"Soft memory limit for the Go runtime (eg. 512MiB); empty leaves the default"`

	// Logging options.
	LogDir        string `long:"logdir" description:"Directory to log output"`
	NoFileLogging bool   `long:"nofilelogging" description:"Disable file logging"`
	DebugLevel    string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	// memLimit is MemLimit parsed into bytes.
	memLimit uint64
}

// errSuppressUsage signifies that an error that happened during the initial
// configuration phase should suppress the usage output since it was not caused
// by the user.
type errSuppressUsage string

// Error implements the error interface.
func (e errSuppressUsage) Error() string {
	return string(e)
}

// defaultConfig returns the configuration prior to parsing flags.
func defaultConfig() config {
	return config{
		RPCURL:         control.DefaultURL,
		ZMQBuffer:      eventfeed.DefaultBufferLimit,
		PollInterval:   control.DefaultPollInterval,
		StatusInterval: defaultStatusInterval,
		Workers:        control.DefaultWorkers,
		MaxInFlight:    control.DefaultMaxInFlight,
		LogDir:         defaultLogDir,
		DebugLevel:     defaultLogLevel,
	}
}

// promptPassword reads a password from the terminal attached to stdin.
func promptPassword(prompt string) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("stdin is not a terminal")
	}
	fmt.Fprint(os.Stderr, prompt)
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("unable to read password: %w", err)
	}
	return string(pass), nil
}

// loadConfig initializes and parses the config using command line options and
// environment variables.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Override with environment variables for options that support them
//  3. Override with command line options
//
// No configuration file is read.
func loadConfig(appName string, args []string) (*config, []string, error) {
	cfg := defaultConfig()
	parser := flags.NewParser(&cfg, flags.Default)
	remainingArgs, err := parser.ParseArgs(args)
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			return nil, nil, errSuppressUsage(err.Error())
		}
		return nil, nil, err
	}

	// Show the version and exit if the version flag was specified.
	if cfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, version.Full())
		os.Exit(0)
	}

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	if os.Getenv(insecureRPCEnv) == "1" {
		cfg.AllowInsecureRPC = true
	}

	if cfg.ZMQBuffer != eventfeed.ClampBufferLimit(cfg.ZMQBuffer) {
		cfg.ZMQBuffer = eventfeed.ClampBufferLimit(cfg.ZMQBuffer)
		fmt.Fprintf(os.Stderr, "zmqbuffer clamped to %d\n", cfg.ZMQBuffer)
	}
	cfg.PollInterval = control.ClampPollInterval(cfg.PollInterval)
	if cfg.StatusInterval < 0 {
		return nil, nil, fmt.Errorf("statusinterval may not be negative: %v",
			cfg.StatusInterval)
	}
	if cfg.Workers < 1 || cfg.MaxInFlight < 1 {
		return nil, nil, errors.New("workers and maxinflight must be at " +
			"least 1")
	}

	if cfg.MemLimit != "" {
		cfg.memLimit, err = humanize.ParseBytes(cfg.MemLimit)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid memlimit %q: %w",
				cfg.MemLimit, err)
		}
	}

	if cfg.ProxyUser != "" && cfg.Proxy == "" {
		return nil, nil, errors.New("proxyuser requires proxy")
	}

	if cfg.RPCPass == "-" {
		pass, err := promptPassword("RPC password: ")
		if err != nil {
			return nil, nil, errSuppressUsage(err.Error())
		}
		cfg.RPCPass = pass
	}

	// Initialize log rotation.  After log rotation has been initialized, the
	// logger variables may be used.
	if !cfg.NoFileLogging {
		logFile := filepath.Join(cleanAndExpandPath(cfg.LogDir),
			defaultLogFilename)
		if err := initLogRotator(logFile); err != nil {
			return nil, nil, errSuppressUsage(err.Error())
		}
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, nil, err
	}

	return &cfg, remainingArgs, nil
}

// cleanAndExpandPath expands a leading ~ and environment variables in path
// and cleans the result.
func cleanAndExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[1:])
		}
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// redacted returns "set" for non-empty secrets for display purposes.
func redacted(secret string) string {
	if secret == "" {
		return "unset"
	}
	return "set"
}

// describe writes the effective configuration without secrets to w.
func (cfg *config) describe(w io.Writer) {
	fmt.Fprintf(w, "RPC %s (user %q, password %s, wallet %q)", cfg.RPCURL,
		cfg.RPCUser, redacted(cfg.RPCPass), cfg.Wallet)
	if cfg.ZMQAddr != "" {
		fmt.Fprintf(w, ", notifications %s (buffer %d)", cfg.ZMQAddr,
			cfg.ZMQBuffer)
	}
	if cfg.Proxy != "" {
		fmt.Fprintf(w, ", proxy %s", cfg.Proxy)
	}
}
