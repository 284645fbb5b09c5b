package cli

import (
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

func newFingerprintCommand(newEnv func() *env) *cobra.Command {
	return &cobra.Command{
		Use:   "fingerprint <host> <port>",
		Short: "Classify the protocol spoken at host:port (passive then active)",
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

			values := map[string]string{
				"host":     host,
				"port":     strconv.Itoa(port),
				"protocol": string(result.Protocol),
			}
			keys := []string{"host", "port", "protocol"}
			for k, v := range result.Extras {
				key := "extras." + k
				values[key] = v
				keys = append(keys, key)
			}
			sort.Strings(keys[3:])
			return writeKeyedResult(e, keys, values)
		},
	}
}
