package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/plyul/netprobe/internal/files"
)

// writeKeyedResult renders a single keyed record (banner/fingerprint/
// probe mode output) to e.out in e.flags.outputFormat, or to
// e.flags.output if set.
func writeKeyedResult(e *env, keys []string, values map[string]string) error {
	w, closeFn, err := openOutput(e)
	if err != nil {
		return err
	}
	defer closeFn()

	switch files.Format(e.flags.outputFormat) {
	case files.CSV:
		writer := csv.NewWriter(w)
		if err := writer.Write(keys); err != nil {
			return err
		}
		row := make([]string, len(keys))
		for i, k := range keys {
			row[i] = values[k]
		}
		if err := writer.Write(row); err != nil {
			return err
		}
		writer.Flush()
		return writer.Error()
	case files.JSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		ordered := make(map[string]string, len(keys))
		for _, k := range keys {
			ordered[k] = values[k]
		}
		return enc.Encode(ordered)
	default:
		return files.WritePlainMap(w, keys, values)
	}
}

func openOutput(e *env) (io.Writer, func(), error) {
	if e.flags.output == "" {
		return e.out, func() {}, nil
	}
	f, err := os.Create(e.flags.output)
	if err != nil {
		return nil, nil, fmt.Errorf("create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}
