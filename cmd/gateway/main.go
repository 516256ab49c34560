// Package main is the entry point for the lending platform API gateway.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/vyrodovalexey/loangw/internal/config"
	"github.com/vyrodovalexey/loangw/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

const defaultConfigPath = "configs/gateway.yaml"

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if flags.showVersion {
		printVersion(os.Stdout)
		return
	}

	cfg, err := loadAndValidateConfig(flags.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	logger := initLogger(flags, cfg)
	defer func() { _ = logger.Sync() }()

	logger.Info("starting loangw",
		observability.String("version", version),
		observability.String("config", flags.configPath),
		observability.Int("services", len(cfg.Services)),
		observability.Int("routes", len(cfg.Routes)),
	)

	app, err := initApplication(context.Background(), cfg, logger)
	if err != nil {
		fatalWithSync(logger, "failed to initialize gateway", observability.Error(err))
		return
	}

	runGateway(app, logger)
}

// parseFlags parses command line flags. Flag defaults come from GATEWAY_*
// environment variables; empty log settings defer to the config file.
func parseFlags(args []string) (cliFlags, error) {
	fs := flag.NewFlagSet("gateway", flag.ContinueOnError)

	var flags cliFlags
	fs.StringVar(&flags.configPath, "config", getEnvOrDefault("GATEWAY_CONFIG_PATH", defaultConfigPath),
		"Path to configuration file (empty for built-in defaults)")
	fs.StringVar(&flags.logLevel, "log-level", getEnvOrDefault("GATEWAY_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error)")
	fs.StringVar(&flags.logFormat, "log-format", getEnvOrDefault("GATEWAY_LOG_FORMAT", ""),
		"Log format (json, console)")
	fs.BoolVar(&flags.showVersion, "version", getEnvBool("GATEWAY_SHOW_VERSION", false),
		"Show version information")

	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return flags, nil
}

// printVersion prints version information.
func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "loangw version %s\n", version)
	_, _ = fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	_, _ = fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

// loadAndValidateConfig loads the file at path over the defaults and
// validates the result. An empty path uses the defaults alone.
func loadAndValidateConfig(path string) (*config.GatewayConfig, error) {
	cfg := config.DefaultConfig()
	if path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration: %w", err)
		}
		cfg = loaded
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// initLogger builds the process logger. Flags win over the config file.
func initLogger(flags cliFlags, cfg *config.GatewayConfig) observability.Logger {
	logCfg := observability.DefaultLogConfig()
	logCfg.Level = firstNonEmpty(flags.logLevel, cfg.Observability.Logging.Level, logCfg.Level)
	logCfg.Format = firstNonEmpty(flags.logFormat, cfg.Observability.Logging.Format, logCfg.Format)

	logger, err := observability.NewLogger(logCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	observability.SetGlobalLogger(logger)
	return logger
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// fatalWithSync flushes the logger before exiting.
func fatalWithSync(logger observability.Logger, msg string, fields ...observability.Field) {
	_ = logger.Sync()
	logger.Fatal(msg, fields...)
}
