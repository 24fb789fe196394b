// Package cmd wires up the CLI flags and dispatches to the core modes.
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"insitu/config"
	"insitu/internal/core"
	"insitu/internal/metrics"
	"insitu/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X insitu/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the listener or the probe.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("insitu", flag.ContinueOnError)

	// ── listener ─────────────────────────────────────────────────
	fs.StringVarP(&cfg.BindAddress, "bind", "b", cfg.BindAddress, "Listen address")
	fs.IntVarP(&cfg.Port, "port", "p", cfg.Port, "Listen port (probe: default server port)")
	fs.IntVar(&cfg.MaxSessions, "max-sessions", cfg.MaxSessions, "Concurrent session limit (0 = unbounded)")
	fs.BoolVar(&cfg.ReusePort, "reuse-port", cfg.ReusePort, "Set SO_REUSEADDR and SO_REUSEPORT")

	// ── session timeouts (seconds, 0 = block) ────────────────────
	readSec := fs.Int("read-timeout", seconds(cfg.ReadTimeout), "Inbound read timeout in seconds")
	connectSec := fs.IntP("connect-timeout", "w", seconds(cfg.ConnectTimeout), "Callback connect timeout in seconds")
	writeSec := fs.Int("write-timeout", seconds(cfg.WriteTimeout), "Echo write timeout in seconds")

	// ── SSH tunnel ───────────────────────────────────────────────
	fs.StringVarP(&cfg.TunnelSpec, "tunnel", "T", cfg.TunnelSpec, "Dial callbacks via SSH [user@]host[:port]")
	fs.StringVar(&cfg.SSHKeyPath, "ssh-key", cfg.SSHKeyPath, "SSH private key file")
	fs.BoolVar(&cfg.SSHPassword, "ssh-password", cfg.SSHPassword, "Prompt for SSH password")
	fs.BoolVar(&cfg.UseSSHAgent, "ssh-agent", cfg.UseSSHAgent, "Use SSH agent")
	fs.BoolVar(&cfg.StrictHostKey, "strict-hostkey", cfg.StrictHostKey, "Verify SSH host keys")
	fs.StringVar(&cfg.KnownHostsPath, "known-hosts", cfg.KnownHostsPath, "Custom known_hosts path")

	// ── probe ────────────────────────────────────────────────────
	fs.StringVarP(&cfg.ProbeTarget, "probe", "P", cfg.ProbeTarget, "Probe the server at host[:port]")
	fs.IntVar(&cfg.CallbackPort, "callback-port", cfg.CallbackPort, "Probe callback port (0 = ephemeral)")
	probeSec := fs.Int("probe-timeout", seconds(cfg.ProbeTimeout), "Probe I/O and callback wait in seconds")
	fs.IntVar(&cfg.ProbeRetries, "retries", cfg.ProbeRetries, "Probe connect attempts")
	fs.StringVar(&cfg.DNSHost, "dns-host", cfg.DNSHost, "Probe: host to resolve")
	fs.StringVar(&cfg.DNSExpect, "dns-expect", cfg.DNSExpect, "Probe: expected IPv4 answer for --dns-host")

	// ── output ───────────────────────────────────────────────────
	var verbose int
	fs.CountVarP(&verbose, "verbose", "v", "Increase verbosity (repeatable)")
	quiet := fs.BoolP("quiet", "q", false, "Only print errors")
	fs.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "Write logs to a rotating file")
	fs.BoolVar(&cfg.ShowMetrics, "metrics", false, "Print a metrics snapshot on shutdown")

	var dryRun, showVersion, showHelp bool
	fs.BoolVar(&dryRun, "dry-run", false, "Validate configuration and exit")
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("insitu %s\n", version)
		return nil
	}
	if fs.NArg() > 0 {
		return fmt.Errorf("unexpected argument %q (use --help for usage)", fs.Arg(0))
	}

	cfg.ReadTimeout = time.Duration(*readSec) * time.Second
	cfg.ConnectTimeout = time.Duration(*connectSec) * time.Second
	cfg.WriteTimeout = time.Duration(*writeSec) * time.Second
	cfg.ProbeTimeout = time.Duration(*probeSec) * time.Second

	switch {
	case *quiet:
		cfg.Verbose = int(util.LogQuiet)
	case verbose > 0:
		cfg.Verbose = max(cfg.Verbose, config.DefaultVerbosity+verbose)
	}

	// ── tunnel spec ──────────────────────────────────────────────
	if cfg.TunnelSpec != "" {
		user, host, port, err := config.ParseTunnelSpec(cfg.TunnelSpec)
		if err != nil {
			return fmt.Errorf("tunnel: %w", err)
		}
		cfg.TunnelEnabled = true
		cfg.TunnelUser = user
		cfg.TunnelHost = host
		cfg.TunnelPort = port
	}

	// ── validate ─────────────────────────────────────────────────
	if err := cfg.Validate(); err != nil {
		return err
	}

	// ── build components ─────────────────────────────────────────
	logger := util.NewLogger(cfg.Verbose)
	if cfg.LogFile != "" {
		if err := logger.SetFile(cfg.LogFile); err != nil {
			return err
		}
	}
	defer logger.Close()

	if dryRun {
		describe(cfg, logger)
		return nil
	}

	m := metrics.New()
	mode, err := core.Build(cfg, logger, m)
	if err != nil {
		return err
	}

	err = mode.Run(ctx)
	if cfg.ShowMetrics {
		fmt.Fprintln(os.Stderr, m.JSON())
	}
	return err
}

// ── helpers ──────────────────────────────────────────────────────────

func seconds(d time.Duration) int { return int(d / time.Second) }

// describe logs what a real run would do.
func describe(cfg *config.Config, logger *util.Logger) {
	if cfg.Probing() {
		logger.Info("would probe %s (callback port %d, %d attempts)",
			util.FormatAddr(cfg.ProbeHost, cfg.ProbePort), cfg.CallbackPort, cfg.ProbeRetries)
	} else {
		logger.Info("would listen on %s", cfg.ListenAddress())
	}
	if cfg.TunnelEnabled {
		logger.Info("callbacks via ssh %s@%s:%d", cfg.TunnelUser, cfg.TunnelHost, cfg.TunnelPort)
	}
	logger.Info("configuration OK")
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `insitu – in-situ network tester v%s

Listens for a callback request, connects back to the client on the
requested port and echoes the request.

Usage:
  insitu [options]                            Serve on 0.0.0.0:9999
  insitu -P <host>[:port] [options]           Probe a server

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  insitu                                      Serve on the default port
  insitu -b 127.0.0.1 -p 7000 -v              Serve on loopback, verbose
  insitu -T ops@bastion                       Dial callbacks through SSH
  insitu -P insitu.example.com --callback-port 4000
  printf '4000x' | nc insitu.example.com 9999 Manual request
`)
}
