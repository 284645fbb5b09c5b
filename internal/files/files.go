// Package files implements the target-list readers and result-report
// writers for netprobe's scan mode: CSV and JSON via the standard
// library (no third-party tabular/JSON library appears anywhere in the
// retrieved corpus; every config/report loader in the reference repos
// reaches directly for encoding/csv or encoding/json), plus a
// hand-rolled plain renderer for human-facing output.
package files

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/plyul/netprobe/scan"
)

// Format names accepted by --input-format / --output-format.
type Format string

const (
	CSV   Format = "csv"
	JSON  Format = "json"
	Plain Format = "plain"
)

// ReadTargets loads a host/port target list from path in the given
// format. CSV and JSON are the only accepted input formats (Plain is
// output-only, per spec.md §6).
func ReadTargets(path string, format Format) ([]scan.Target, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open targets file: %w", err)
	}
	defer f.Close()

	switch format {
	case CSV:
		return readTargetsCSV(f)
	case JSON:
		return readTargetsJSON(f)
	default:
		return nil, fmt.Errorf("unsupported input format %q", format)
	}
}

func readTargetsCSV(r io.Reader) ([]scan.Target, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv targets: %w", err)
	}
	if len(records) == 0 {
		return nil, nil
	}

	header := records[0]
	hostCol, portCol := -1, -1
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "host":
			hostCol = i
		case "port":
			portCol = i
		}
	}
	if hostCol == -1 || portCol == -1 {
		return nil, fmt.Errorf("csv targets file missing host/port header")
	}

	targets := make([]scan.Target, 0, len(records)-1)
	for _, row := range records[1:] {
		port, err := strconv.Atoi(strings.TrimSpace(row[portCol]))
		if err != nil {
			return nil, fmt.Errorf("parse port %q: %w", row[portCol], err)
		}
		targets = append(targets, scan.Target{Host: strings.TrimSpace(row[hostCol]), Port: port})
	}
	return targets, nil
}

func readTargetsJSON(r io.Reader) ([]scan.Target, error) {
	var raw []struct {
		Host string `json:"host"`
		Port int    `json:"port"`
	}
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("parse json targets: %w", err)
	}
	targets := make([]scan.Target, 0, len(raw))
	for _, t := range raw {
		targets = append(targets, scan.Target{Host: t.Host, Port: t.Port})
	}
	return targets, nil
}

// reportRow is the flattened keyed record written for one scan.Report,
// shared by the CSV and Plain encoders.
type reportRow struct {
	Host      string `json:"host"`
	Port      string `json:"port"`
	Connected string `json:"connected"`
	ElapsedMS string `json:"elapsed_ms"`
	ConnErr   string `json:"connect_error"`
	Protocol  string `json:"protocol"`
	Version   string `json:"version"`
}

func flatten(r scan.Report) reportRow {
	row := reportRow{
		Host:      r.Target.Host,
		Port:      strconv.Itoa(r.Target.Port),
		Connected: strconv.FormatBool(r.Connect.Success),
		ElapsedMS: strconv.FormatFloat(r.Connect.ElapsedMS, 'f', 2, 64),
	}
	if r.Connect.Err != nil {
		row.ConnErr = r.Connect.Err.Error()
	}
	if r.Detection != nil {
		row.Protocol = string(r.Detection.Protocol)
		row.Version = r.Detection.Extras["version"]
	}
	return row
}

// WriteReports renders reports to path in the given format.
func WriteReports(path string, format Format, reports []scan.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report file: %w", err)
	}
	defer f.Close()
	return WriteReportsTo(f, format, reports)
}

// WriteReportsTo renders reports to an already-open writer, for
// callers (such as the CLI's default-to-stdout path) that don't want a
// file created.
func WriteReportsTo(w io.Writer, format Format, reports []scan.Report) error {
	switch format {
	case CSV:
		return writeReportsCSV(w, reports)
	case JSON:
		return writeReportsJSON(w, reports)
	case Plain:
		return writeReportsPlain(w, reports)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func writeReportsCSV(w io.Writer, reports []scan.Report) error {
	writer := csv.NewWriter(w)
	header := []string{"host", "port", "connected", "elapsed_ms", "connect_error", "protocol", "version"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, r := range reports {
		row := flatten(r)
		if err := writer.Write([]string{row.Host, row.Port, row.Connected, row.ElapsedMS, row.ConnErr, row.Protocol, row.Version}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeReportsJSON(w io.Writer, reports []scan.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(reports)
}

// writeReportsPlain renders one report per line as comma-separated
// "key: value" fields: "host: ..., port: ..., connected: ..., elapsed_ms: ..."
// followed by protocol, version and connect_error when non-empty.
// A bare list of scalars would render one-per-line too, but reports are
// always keyed records, so every line is a map rendering per spec.md §6.
func writeReportsPlain(w io.Writer, reports []scan.Report) error {
	for _, r := range reports {
		row := flatten(r)
		fields := []string{
			fmt.Sprintf("host: %s", row.Host),
			fmt.Sprintf("port: %s", row.Port),
			fmt.Sprintf("connected: %s", row.Connected),
			fmt.Sprintf("elapsed_ms: %s", row.ElapsedMS),
		}
		if row.Protocol != "" {
			fields = append(fields, fmt.Sprintf("protocol: %s", row.Protocol))
		}
		if row.Version != "" {
			fields = append(fields, fmt.Sprintf("version: %s", row.Version))
		}
		if row.ConnErr != "" {
			fields = append(fields, fmt.Sprintf("connect_error: %s", row.ConnErr))
		}
		if _, err := fmt.Fprintln(w, strings.Join(fields, ", ")); err != nil {
			return err
		}
	}
	return nil
}

// WritePlainList renders a bare list of strings one per line, per
// spec.md §6's "list rendered one item per line" rule. The CLI's
// single-target output is keyed and goes through WritePlainMap instead.
func WritePlainList(w io.Writer, items []string) error {
	for _, item := range items {
		if _, err := fmt.Fprintln(w, item); err != nil {
			return err
		}
	}
	return nil
}

// WritePlainMap renders a mapping as "key: value" per line, in
// insertion order of keys.
func WritePlainMap(w io.Writer, keys []string, values map[string]string) error {
	for _, k := range keys {
		if _, err := fmt.Fprintf(w, "%s: %s\n", k, values[k]); err != nil {
			return err
		}
	}
	return nil
}
