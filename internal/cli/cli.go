package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"prload/internal/runner"
)

// Start runs r and draws a one-line progress bar on w until the run,
// including setup and teardown, has finished.
func Start(ctx context.Context, r *runner.Runner, w io.Writer) {
	printHeader(w, r)

	go r.Run(ctx)

	Monitor(r, w, 200*time.Millisecond)
}

// Monitor redraws progress every interval until r is done.
func Monitor(r *runner.Runner, w io.Writer, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	total := r.Scenario.TotalDuration()

	for {
		select {
		case <-r.Updates:
			// Drain updates
		case <-r.Done():
			fmt.Fprintln(w, "\r"+progressLine(r.Snapshot(), total))
			return
		case <-ticker.C:
			fmt.Fprint(w, "\r"+progressLine(r.Snapshot(), total))
		}
	}
}

func progressLine(s runner.StatsSnapshot, total time.Duration) string {
	pct := 0.0
	if total > 0 {
		pct = s.Elapsed.Seconds() / total.Seconds()
	}
	if pct > 1.0 {
		pct = 1.0
	}

	rps := 0.0
	if s.Elapsed.Seconds() > 0 {
		rps = float64(s.Requests) / s.Elapsed.Seconds()
	}

	if s.Elapsed >= total && s.ActiveVUs > 0 {
		return fmt.Sprintf("%s %3.0f%% | %s/%s | Draining: %d VUs, %d requests...      ",
			progressBar(1.0, 20), 100.0,
			s.Elapsed.Round(time.Second), total,
			s.ActiveVUs, s.Inflight)
	}

	return fmt.Sprintf("%s %3.0f%% | %s/%s | VUs: %3d/%-3d | RPS: %6.1f | Reqs: %d | Failed: %d | p95: %.0fms",
		progressBar(pct, 20), pct*100,
		s.Elapsed.Round(time.Second), total,
		s.ActiveVUs, s.TargetVUs,
		rps,
		s.Requests,
		s.Failed,
		s.P95Ms,
	)
}

func printHeader(w io.Writer, r *runner.Runner) {
	sc := r.Scenario
	fmt.Fprintf(w, "\nSTARTING LOAD TEST\n")
	fmt.Fprintf(w, "======================================================================\n")
	fmt.Fprintf(w, "Target URL    : %s\n", r.Cfg.BaseURL)
	fmt.Fprintf(w, "Scenario      : %s\n", sc.Name)
	if len(sc.Stages) > 0 {
		parts := make([]string, len(sc.Stages))
		for i, st := range sc.Stages {
			parts[i] = fmt.Sprintf("%s→%d", st.Duration, st.Target)
		}
		fmt.Fprintf(w, "Stages        : %s\n", strings.Join(parts, ", "))
	} else {
		fmt.Fprintf(w, "VUs           : %d for %s\n", sc.VUs, sc.Duration)
	}
	fmt.Fprintf(w, "Max VUs       : %d\n", sc.MaxVUs())
	fmt.Fprintf(w, "Graceful stop : %s\n", sc.GracefulStop)
	fmt.Fprintf(w, "Timeout       : %s\n", r.Cfg.Timeout)
	fmt.Fprintf(w, "======================================================================\n\n")
}

func progressBar(pct float64, width int) string {
	filled := int(pct * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return "[" + strings.Repeat("█", filled) + strings.Repeat("-", width-filled) + "]"
}
