package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"prload/internal/tui/styles"
)

const rule = "======================================================================"

// Print writes the end-of-run report in the terminal layout used by the
// headless runner.
func Print(w io.Writer, s *Summary) {
	fmt.Fprintf(w, "\n\n%s\n", styles.Title.Render("LOAD TEST RESULTS"))
	fmt.Fprintln(w, rule)
	fmt.Fprintf(w, "Run ID         : %s\n", s.RunID)
	fmt.Fprintf(w, "Scenario       : %s\n", s.Scenario)
	fmt.Fprintf(w, "Target         : %s\n", s.BaseURL)
	fmt.Fprintf(w, "Total Duration : %s\n", s.Duration.Round(time.Second))

	if m := s.Metrics[MetricReqs]; m != nil {
		fmt.Fprintf(w, "Requests Sent  : %.0f (%.2f/s)\n", m.Values["count"], m.Values["rate"])
	}
	if m := s.Metrics[MetricIterations]; m != nil {
		fmt.Fprintf(w, "Iterations     : %.0f\n", m.Values["count"])
	}
	if m := s.Metrics[MetricVUsMax]; m != nil {
		fmt.Fprintf(w, "VUs Max        : %.0f\n", m.Values["value"])
	}
	if m := s.Metrics[MetricFailed]; m != nil {
		fmt.Fprintf(w, "Failed         : %s\n", pct(m.Values["rate"]))
	}

	fmt.Fprintf(w, "\nRESPONSE TIMES (ms)\n")
	for _, name := range s.MetricNames() {
		if !strings.HasPrefix(name, MetricDuration) {
			continue
		}
		v := s.Metrics[name].Values
		fmt.Fprintf(w, "   %-44s avg=%-8.2f med=%-8.2f p(95)=%-8.2f p(99)=%-8.2f max=%.2f\n",
			name, v["avg"], v["med"], v["p(95)"], v["p(99)"], v["max"])
	}

	if len(s.Checks) > 0 {
		fmt.Fprintf(w, "\nCHECKS\n")
		for _, c := range s.Checks {
			mark := styles.Success.Render("✓")
			if c.Fails > 0 {
				mark = styles.Error.Render("✗")
			}
			fmt.Fprintf(w, "   %s %-40s %d / %d\n", mark, c.Name, c.Passes, c.Passes+c.Fails)
		}
	}

	if len(s.StatusCodes) > 0 {
		codes := make([]string, 0, len(s.StatusCodes))
		for c := range s.StatusCodes {
			codes = append(codes, c)
		}
		sort.Strings(codes)
		fmt.Fprintf(w, "\nSTATUS CODES\n")
		for _, c := range codes {
			label := c
			if c == "0" {
				label = "no response"
			}
			fmt.Fprintf(w, "   %-12s %d\n", label, s.StatusCodes[c])
		}
	}

	if len(s.Errors) > 0 {
		fmt.Fprintf(w, "\nFAILURE SUMMARY\n")
		for errStr, count := range s.Errors {
			fmt.Fprintf(w, "   %d x %s\n", count, errStr)
		}
	}

	if len(s.Thresholds) > 0 {
		fmt.Fprintf(w, "\nTHRESHOLDS\n")
		for _, t := range s.Thresholds {
			fmt.Fprintf(w, "   %s %s %s (actual %.4g)\n", styles.Verdict(t.OK), t.Metric, t.Expr, t.Actual)
		}
	}

	fmt.Fprintln(w, rule)
	if s.Passed {
		fmt.Fprintln(w, styles.Verdict(true), styles.Success.Render("All thresholds passed"))
	} else {
		fmt.Fprintln(w, styles.Verdict(false), styles.Error.Render(fmt.Sprintf("%d threshold(s) crossed", len(s.Failed()))))
	}
}

func pct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}
