package cli

import (
	"strconv"

	"github.com/spf13/cobra"
)

func newBannerCommand(newEnv func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "banner <host> <port>",
		Short: "Capture and classify the server's opening banner",
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

			result := classify(cmdContext(cmd), e, host, port)

			keys := []string{"host", "port", "protocol", "banner"}
			values := map[string]string{
				"host":     host,
				"port":     strconv.Itoa(port),
				"protocol": string(result.Protocol),
				"banner":   string(result.Banner),
			}
			return writeKeyedResult(e, keys, values)
		},
	}
}
