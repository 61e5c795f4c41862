package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/datapulse/ingest/models"
)

// maxReportErrors caps how many errors the rendered report repeats; the
// full list stays in the exported batch metadata.
const maxReportErrors = 20

// RunReport is the run summary persisted to pipeline_runs and the object
// store.
type RunReport struct {
	BatchID    string                         `json:"batch_id"`
	Status     string                         `json:"status"`
	StartTime  time.Time                      `json:"start_time"`
	EndTime    time.Time                      `json:"end_time"`
	DurationMS int64                          `json:"duration_ms"`
	Domains    map[string]*models.DomainStats `json:"domains"`
	ErrorCount int                            `json:"error_count"`
	Errors     []string                       `json:"errors,omitempty"`
}

func buildReport(batch *models.BatchMetadata, status string) *RunReport {
	errs := batch.Errors
	if len(errs) > maxReportErrors {
		errs = errs[:maxReportErrors]
	}
	return &RunReport{
		BatchID:    batch.BatchID,
		Status:     status,
		StartTime:  batch.StartTime,
		EndTime:    batch.EndTime,
		DurationMS: batch.EndTime.Sub(batch.StartTime).Milliseconds(),
		Domains:    batch.Domains,
		ErrorCount: len(batch.Errors),
		Errors:     errs,
	}
}

// Completed reports whether every domain ran without a fatal error.
func (r *RunReport) Completed() bool {
	return r.Status == "completed"
}

// JSON renders the report for storage.
func (r *RunReport) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Summary renders a short human-readable form for the CLI.
func (r *RunReport) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "batch %s: %s in %dms\n", r.BatchID, r.Status, r.DurationMS)
	for domain, s := range r.Domains {
		fmt.Fprintf(&b, "  %-10s extracted=%d transformed=%d loaded=%d\n",
			domain, s.Extracted, s.Transformed, s.Loaded)
	}
	if r.ErrorCount > 0 {
		fmt.Fprintf(&b, "  errors: %d", r.ErrorCount)
		if r.ErrorCount > len(r.Errors) {
			fmt.Fprintf(&b, " (first %d shown)", len(r.Errors))
		}
		b.WriteString("\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "    - %s\n", e)
		}
	}
	return b.String()
}
