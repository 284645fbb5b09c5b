package cli

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/plyul/netprobe/telnet"
)

func newConnectCommand(newEnv func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "connect <host> <port>",
		Short: "Open an interactive Telnet session",
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
			client, err := telnet.ConnectTo(cmdContext(cmd), host, port,
				telnet.WithConnectTimeout(timeout),
				telnet.WithLogger(e.log),
			)
			if err != nil {
				return fmtErr("connect to %s:%d: %w", host, port, err)
			}
			defer client.Close()

			e.log.Info().Str("host", host).Int("port", port).Msg("connected")
			return client.Interact(cmdContext(cmd), os.Stdin, e.out)
		},
	}
}
