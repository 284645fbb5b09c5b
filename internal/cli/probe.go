package cli

import (
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/plyul/netprobe/probe"
)

func newProbeCommand(newEnv func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "probe <host> <port>",
		Short: "Open a single TCP connection and report elapsed time",
		Args:  exactlyTwoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e := newEnv()
			host, portStr, err := parseHostPort(args)
			if err != nil {
				return err
			}
			port, err := strconv.Atoi(portStr)
			if err != nil {
				return newUsageError("invalid port %q: %v", portStr, err)
			}

			timeout := time.Duration(e.flags.timeoutSec * float64(time.Second))
			result := probe.TryConnect(cmdContext(cmd), host, port, timeout)

			values := map[string]string{
				"host":       result.Host,
				"port":       strconv.Itoa(result.Port),
				"connected":  strconv.FormatBool(result.Success),
				"elapsed_ms": strconv.FormatFloat(result.ElapsedMS, 'f', 2, 64),
			}
			keys := []string{"host", "port", "connected", "elapsed_ms"}
			if result.Err != nil {
				values["error"] = result.Err.Error()
				keys = append(keys, "error")
			}
			return writeKeyedResult(e, keys, values)
		},
	}
}
