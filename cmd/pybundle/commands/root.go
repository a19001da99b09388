// Package commands implements the pybundle cobra commands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/pybundle/pkg/config"
	"github.com/Sumatoshi-tech/pybundle/pkg/observability"
	"github.com/Sumatoshi-tech/pybundle/pkg/version"
)

const (
	formatText = "text"
	formatJSON = "json"
)

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	verbose    bool
	quiet      bool
	noColor    bool
	logFormat  string
}

// NewRootCommand builds the pybundle command tree.
func NewRootCommand() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "pybundle",
		Short: "Bundle Python scripts and strip type annotations",
		Long: `pybundle inlines the locally authored modules an entry script imports
into one flat script, and removes type annotations from Python sources.

Commands:
  bundle    Inline local imports into one script
  strip     Remove function annotations and typing imports
  graph     Print the module import graph
  mcp       Serve bundle and strip as MCP tools over stdio`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			if flags.noColor {
				color.NoColor = true //nolint:reassign // intentional override of library global
			}
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default is ./pybundle.yaml)")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "verbose output")
	pf.BoolVarP(&flags.quiet, "quiet", "q", false, "only log errors")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	pf.StringVar(&flags.logFormat, "log-format", "", "log format: text or json (default from config)")

	rootCmd.AddCommand(newBundleCommand(flags))
	rootCmd.AddCommand(newStripCommand(flags))
	rootCmd.AddCommand(newGraphCommand(flags))
	rootCmd.AddCommand(newMCPCommand(flags))
	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

// PrintError reports err in red.
func PrintError(w io.Writer, err error) {
	color.New(color.FgRed).Fprintf(w, "Error: %v\n", err)
}

// session is the loaded configuration and logging of one command run.
type session struct {
	cfg       *config.Config
	providers observability.Providers
}

func (s *session) logger() *slog.Logger {
	return s.providers.Logger
}

func (s *session) close(ctx context.Context) {
	err := s.providers.Shutdown(context.WithoutCancel(ctx))
	if err != nil {
		s.providers.Logger.Warn("observability shutdown failed", "error", err)
	}
}

// open loads the configuration and initializes logging and tracing.
func (g *globalFlags) open(cmd *cobra.Command, mode observability.AppMode) (*session, error) {
	cfg, err := config.LoadConfig(g.configPath)
	if err != nil {
		return nil, err
	}

	obsCfg, err := g.observabilityConfig(cfg, mode)
	if err != nil {
		return nil, err
	}

	obsCfg.LogWriter = cmd.ErrOrStderr()

	providers, err := observability.Init(obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	return &session{cfg: cfg, providers: providers}, nil
}

func (g *globalFlags) observabilityConfig(cfg *config.Config, mode observability.AppMode) (observability.Config, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.Mode = mode
	obsCfg.ServiceVersion = version.Get().Version
	obsCfg.OTLPEndpoint = os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	obsCfg.OTLPHeaders = observability.ParseOTLPHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS"))
	obsCfg.OTLPInsecure = os.Getenv("OTEL_EXPORTER_OTLP_INSECURE") == "true"

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return obsCfg, err
	}

	switch {
	case g.verbose:
		level = slog.LevelDebug
		obsCfg.DebugTrace = true
	case g.quiet:
		level = slog.LevelError
	}

	obsCfg.LogLevel = level

	format := cfg.Logging.Format
	if g.logFormat != "" {
		format = g.logFormat
	}

	switch format {
	case formatJSON:
		obsCfg.LogJSON = true
	case formatText:
	default:
		return obsCfg, fmt.Errorf("%w: %q", ErrUnknownLogFormat, format)
	}

	return obsCfg, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.Get().String())
		},
	}
}
