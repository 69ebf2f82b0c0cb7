package report

import (
	"encoding/csv"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"prload/internal/runner"
)

var csvHeader = []string{
	"timeStamp", "elapsed", "label", "responseCode", "responseMessage",
	"threadName", "dataType", "success", "failureMessage", "bytes",
	"sentBytes", "grpThreads", "allThreads", "URL", "Latency", "IdleTime", "Connect",
}

// ExportCSV writes per-request results in JMeter's CSV layout so they load
// into the usual result viewers.
func ExportCSV(results []runner.ExperimentResult, filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("export csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return err
	}

	for _, res := range results {
		ms := strconv.FormatInt(res.Latency.Milliseconds(), 10)
		record := []string{
			strconv.FormatInt(res.TimeStamp.UnixMilli(), 10),
			ms,
			res.Name,
			strconv.Itoa(res.Status),
			http.StatusText(res.Status),
			fmt.Sprintf("VU %d-%d", res.VU, res.Iteration),
			"text",
			strconv.FormatBool(res.Success),
			res.Err,
			strconv.FormatInt(res.Bytes, 10),
			"0", // not tracked
			"1",
			"1",
			res.URL,
			ms,
			"0",
			"0",
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}

	w.Flush()
	return w.Error()
}
