package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"keyvisor/internal/app"
	"keyvisor/internal/config"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

type options struct {
	configPath string
	cfg        config.Config
	corsCSV    string
}

// newRootCmd builds the command tree that serves with app.Run.
func newRootCmd(out io.Writer) *cobra.Command {
	return newRootCmdWith(out, func(ctx context.Context, cfg config.Config) error {
		return app.Run(ctx, cfg, out, nil)
	})
}

// newRootCmdWith builds the command tree with run as the serve action.
func newRootCmdWith(out io.Writer, run func(context.Context, config.Config) error) *cobra.Command {
	opts := &options{}
	serve := func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, opts)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	}

	root := &cobra.Command{
		Use:           "keyvisord",
		Short:         "Per-entity task supervisor serving counters and uploads over HTTP",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE:          serve,
	}
	serveCmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP server (default)",
		Example: "  keyvisord serve --addr :8080 --spool-dir ~/inbox --upload-endpoint http://files.local/in",
		Args:    cobra.NoArgs,
		RunE:    serve,
	}
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "keyvisord", version)
			return err
		},
	}

	defaultAddr := config.DefaultAddr
	if v := os.Getenv("KEYVISOR_ADDR"); v != "" {
		defaultAddr = v
	}
	f := root.PersistentFlags()
	f.StringVar(&opts.configPath, "config", "", "Config file (.yaml, .yml, .json, .toml)")
	f.StringVar(&opts.cfg.Addr, "addr", defaultAddr, "HTTP listen address, e.g. :8080 (defaults KEYVISOR_ADDR)")
	f.StringVar(&opts.cfg.LogLevel, "log-level", "", "Log level: debug|info|warn|error")
	f.StringVar(&opts.cfg.LogFormat, "log-format", "", "Log format: console|json")
	f.StringVar(&opts.cfg.HTTPLogLevel, "http-log-level", "", "Request log level: off|error|info|debug")
	f.Int64Var(&opts.cfg.CounterIntervalMS, "counter-interval-ms", 0, "Default counter tick interval in ms")
	f.IntVar(&opts.cfg.CounterLimit, "counter-limit", 0, "Default counter limit (0=unbounded)")
	f.StringVar(&opts.cfg.UploadEndpoint, "upload-endpoint", "", "Base URL uploads are PUT to")
	f.IntVar(&opts.cfg.UploadMaxAttempts, "upload-max-attempts", 0, "Attempts per upload")
	f.StringVar(&opts.cfg.SpoolDir, "spool-dir", "", "Directory watched for files to upload")
	f.StringVar(&opts.cfg.StateFile, "state-file", "", "File counters are saved to on shutdown")
	f.Int64Var(&opts.cfg.MaxBodyBytes, "max-body-bytes", 0, "Maximum JSON request body size")
	f.StringVar(&opts.corsCSV, "cors-origins", "", "Comma separated CORS origins; enables CORS when set")

	root.AddCommand(serveCmd, versionCmd)
	root.SetOut(out)
	root.SetContext(context.Background())
	return root
}

// resolveConfig loads the config file, if any, and applies the flags the
// user set explicitly on top of it.
func resolveConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	var cfg config.Config
	if opts.configPath != "" {
		loaded, err := config.Load(opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	set := func(name string, apply func()) {
		if flags.Changed(name) {
			apply()
		}
	}
	set("addr", func() { cfg.Addr = opts.cfg.Addr })
	set("log-level", func() { cfg.LogLevel = opts.cfg.LogLevel })
	set("log-format", func() { cfg.LogFormat = opts.cfg.LogFormat })
	set("http-log-level", func() { cfg.HTTPLogLevel = opts.cfg.HTTPLogLevel })
	set("counter-interval-ms", func() { cfg.CounterIntervalMS = opts.cfg.CounterIntervalMS })
	set("counter-limit", func() { cfg.CounterLimit = opts.cfg.CounterLimit })
	set("upload-endpoint", func() { cfg.UploadEndpoint = opts.cfg.UploadEndpoint })
	set("upload-max-attempts", func() { cfg.UploadMaxAttempts = opts.cfg.UploadMaxAttempts })
	set("spool-dir", func() { cfg.SpoolDir = opts.cfg.SpoolDir })
	set("state-file", func() { cfg.StateFile = opts.cfg.StateFile })
	set("max-body-bytes", func() { cfg.MaxBodyBytes = opts.cfg.MaxBodyBytes })
	set("cors-origins", func() {
		cfg.CORS.Origins = splitCSV(opts.corsCSV)
		cfg.CORS.Enabled = len(cfg.CORS.Origins) > 0
	})
	if cfg.Addr == "" {
		// Flag default, which honours KEYVISOR_ADDR.
		cfg.Addr = opts.cfg.Addr
	}
	cfg.ApplyDefaults()
	return cfg, cfg.Validate()
}

func splitCSV(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
