package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/plyul/netprobe/internal/files"
	"github.com/plyul/netprobe/internal/progress"
	"github.com/plyul/netprobe/scan"
)

func newScanCommand(newEnv func() *env) *cobra.Command {
	var ports []int

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Batch-scan hosts read from --input across every --port",
		RunE: func(cmd *cobra.Command, args []string) error {
			e := newEnv()
			if e.flags.input == "" {
				return newUsageError("scan mode requires --input")
			}
			if len(ports) == 0 {
				return newUsageError("scan mode requires at least one --port")
			}

			targets, err := files.ReadTargets(e.flags.input, files.Format(e.flags.inputFormat))
			if err != nil {
				return fmtErr("read targets: %w", err)
			}

			hosts := make([]string, 0, len(targets))
			seen := make(map[string]bool)
			for _, t := range targets {
				if !seen[t.Host] {
					seen[t.Host] = true
					hosts = append(hosts, t.Host)
				}
			}

			bar := progress.New(e.errOut, "scanning")
			timeout := time.Duration(e.flags.timeoutSec * float64(time.Second))
			reports, err := scan.Run(cmdContext(cmd), hosts, ports, scan.Options{
				Concurrency: e.flags.concurrency,
				Timeout:     timeout,
				NewDetector: e.detect,
				Progress:    bar,
			}, time.Now)
			if err != nil {
				return fmtErr("scan: %w", err)
			}

			if e.flags.output == "" {
				return files.WriteReportsTo(e.out, files.Format(e.flags.outputFormat), reports)
			}
			return files.WriteReports(e.flags.output, files.Format(e.flags.outputFormat), reports)
		},
	}

	cmd.Flags().IntSliceVar(&ports, "port", nil, "port to scan (repeatable)")
	return cmd
}
