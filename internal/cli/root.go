// Package cli builds the netprobe command tree with cobra/pflag: one
// root command carrying the shared flags from spec.md §6, and five
// mode subcommands that realize the --mode selector as the subcommand
// name itself.
package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/plyul/netprobe/detect"
	"github.com/plyul/netprobe/internal/logging"
)

// cmdContext returns cmd's context, falling back to context.Background
// when none was set (e.g. a test driving Execute() directly rather
// than ExecuteContext()).
func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// globalFlags holds the persistent flag values shared by every
// subcommand.
type globalFlags struct {
	protocol     string
	concurrency  int
	timeoutSec   float64
	input        string
	inputFormat  string
	output       string
	outputFormat string
	verbosity    int
}

// env bundles the collaborators a subcommand needs, built once the
// global flags are parsed.
type env struct {
	log    zerolog.Logger
	out    io.Writer
	errOut io.Writer
	flags  *globalFlags
	detect func() *detect.Detector
}

// NewRootCommand builds the full netprobe command tree. version is the
// build-time version string printed by --version.
func NewRootCommand(version string, stdout, stderr io.Writer) *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:           "netprobe",
		Short:         "Protocol detection and Telnet client toolkit",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return newUsageError("%s", err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&flags.protocol, "protocol", "auto", "protocol hint: auto|http|https|ssh|telnet")
	pf.IntVar(&flags.concurrency, "concurrency", 50, "max concurrent probes")
	pf.Float64Var(&flags.timeoutSec, "timeout", 10.0, "per-probe timeout in seconds")
	pf.StringVar(&flags.input, "input", "", "input target list path (scan mode)")
	pf.StringVar(&flags.inputFormat, "input-format", "csv", "input format: csv|json")
	pf.StringVar(&flags.output, "output", "", "output path (any mode); defaults to stdout")
	pf.StringVar(&flags.outputFormat, "output-format", "plain", "output format: csv|json|plain")
	pf.CountVarP(&flags.verbosity, "verbose", "v", "increase log verbosity (repeatable)")

	newEnv := func() *env {
		return &env{
			log:    logging.New(stderr, flags.verbosity),
			out:    stdout,
			errOut: stderr,
			flags:  flags,
			detect: func() *detect.Detector { return detect.New(logging.New(stderr, flags.verbosity)) },
		}
	}

	root.AddCommand(
		newBannerCommand(newEnv),
		newConnectCommand(newEnv),
		newFingerprintCommand(newEnv),
		newProbeCommand(newEnv),
		newScanCommand(newEnv),
	)

	return root
}

// exactlyTwoArgs validates the <host> <port> positional pair shared by
// the single-target subcommands, wrapping a mismatch as a usageError so
// it maps to exit code 2 like every other argument-misuse path.
func exactlyTwoArgs(cmd *cobra.Command, args []string) error {
	if len(args) != 2 {
		return newUsageError("expected arguments: <host> <port>")
	}
	return nil
}

func parseHostPort(args []string) (string, string, error) {
	if len(args) != 2 {
		return "", "", newUsageError("expected arguments: <host> <port>")
	}
	return args[0], args[1], nil
}

func fmtErr(format string, args ...any) error {
	return fmt.Errorf(format, args...)
}

// classify runs protocol detection for host:port, unless the user
// pinned --protocol to ssh, http, https or telnet, in which case the
// hint is trusted outright and no classification traffic is sent. Any
// other value runs detection as "auto" does.
//
// banner/fingerprint never adopt the classification stream into a
// Telnet client, so the detector is always closed here to release any
// connection a positive Telnet classification would otherwise retain.
func classify(ctx context.Context, e *env, host string, port int) detect.Result {
	switch e.flags.protocol {
	case "", "auto":
		d := e.detect()
		defer d.Close()
		return d.Detect(ctx, host, port)
	case "ssh":
		return detect.Result{Protocol: detect.SSH}
	case "http":
		return detect.Result{Protocol: detect.HTTP}
	case "https":
		return detect.Result{Protocol: detect.HTTPS}
	case "telnet":
		return detect.Result{Protocol: detect.Telnet}
	default:
		d := e.detect()
		defer d.Close()
		return d.Detect(ctx, host, port)
	}
}
