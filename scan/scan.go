// Package scan implements the bounded-parallelism fan-out harness:
// probe every (host, port) pair in the Cartesian product of a host list
// and a port list, subject to a semaphore of size max-concurrency, and
// report results in target order as each probe completes.
package scan

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/plyul/netprobe/detect"
	"github.com/plyul/netprobe/probe"
)

// Target is a single host/port pair to scan.
type Target struct {
	Host string
	Port int
}

// Report is the keyed record produced for one Target: the TCP connect
// outcome and, when detection was requested, the protocol
// classification.
type Report struct {
	Target    Target
	Detection *detect.Result
	Connect   probe.Result
	Timestamp time.Time
}

// Progress is the narrow interface the harness drives as probes
// complete. Implementations decide how (or whether) to render it; the
// harness only calls Advance once per completed probe and Close
// exactly once, regardless of success or failure.
type Progress interface {
	Advance(done, total int)
	Close()
}

// noopProgress satisfies Progress when the caller supplies none.
type noopProgress struct{}

func (noopProgress) Advance(int, int) {}
func (noopProgress) Close()           {}

// Options configures a Run call.
type Options struct {
	Concurrency int
	Timeout     time.Duration
	// NewDetector, when non-nil, is called once per target to build the
	// *detect.Detector consulted in addition to the plain TCP connect
	// probe; its Result is attached to the Report. A fresh Detector per
	// target is required since a Detector retains per-call connection
	// state (detect.Detector) and is not safe to share across the
	// concurrent goroutines Run fans out. Pass nil to skip protocol
	// detection and produce connect-only reports.
	NewDetector func() *detect.Detector
	Progress    Progress
}

// Run fans out TryConnect (and, if opts.NewDetector is set, protocol
// detection) across hosts × ports, bounded by opts.Concurrency
// concurrent probes. Results are returned in the deterministic order of
// the host×port product, not completion order. now is a function
// returning the timestamp to stamp onto each Report; callers pass
// time.Now in production and a fixed clock in tests.
func Run(ctx context.Context, hosts []string, ports []int, opts Options, now func() time.Time) ([]Report, error) {
	targets := make([]Target, 0, len(hosts)*len(ports))
	for _, h := range hosts {
		for _, p := range ports {
			targets = append(targets, Target{Host: h, Port: p})
		}
	}

	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	progress := opts.Progress
	if progress == nil {
		progress = noopProgress{}
	}

	reports := make([]Report, len(targets))
	sem := semaphore.NewWeighted(int64(concurrency))

	var (
		done     int
		total    = len(targets)
		resultCh = make(chan int, total)
	)
	defer progress.Close()

	for i, t := range targets {
		if err := sem.Acquire(ctx, 1); err != nil {
			// Cancellation during acquisition: report cleanly and
			// re-raise after the progress indicator is closed (via
			// the deferred Close above).
			return nil, err
		}

		go func(i int, t Target) {
			defer sem.Release(1)
			reports[i] = runOne(ctx, t, opts, timeout, now)
			resultCh <- i
		}(i, t)
	}

	for done < total {
		select {
		case <-resultCh:
			done++
			progress.Advance(done, total)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return reports, nil
}

func runOne(ctx context.Context, t Target, opts Options, timeout time.Duration, now func() time.Time) Report {
	report := Report{
		Target:    t,
		Connect:   probe.TryConnect(ctx, t.Host, t.Port, timeout),
		Timestamp: now(),
	}
	if opts.NewDetector != nil {
		d := opts.NewDetector()
		result := d.Detect(ctx, t.Host, t.Port)
		d.Close()
		report.Detection = &result
	}
	return report
}
