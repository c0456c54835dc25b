package pipeline

import (
	"time"
)

// TargetOutcome reports one target's result in the run report.
type TargetOutcome struct {
	Position   int    `json:"position" yaml:"position"`
	Prompt     string `json:"prompt" yaml:"prompt"`
	Succeeded  bool   `json:"succeeded" yaml:"succeeded"`
	Commentary string `json:"commentary,omitempty" yaml:"commentary,omitempty"`
	Error      string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Report summarizes a completed run. It is assembled from the same tagged
// results the collector folds; tasks do no extra bookkeeping.
type Report struct {
	RunID      string          `json:"run_id" yaml:"run_id"`
	Mode       string          `json:"mode" yaml:"mode"`
	Input      string          `json:"input" yaml:"input"`
	Output     string          `json:"output" yaml:"output"`
	Backend    string          `json:"backend" yaml:"backend"`
	Resolution string          `json:"resolution" yaml:"resolution"`
	Requested  int             `json:"requested" yaml:"requested"`
	Succeeded  int             `json:"succeeded" yaml:"succeeded"`
	Failed     int             `json:"failed" yaml:"failed"`
	Targets    []TargetOutcome `json:"targets" yaml:"targets"`
	Elapsed    time.Duration   `json:"elapsed" yaml:"elapsed"`
}

// buildReport folds task results into a run report, ordered by submission.
func buildReport(mode, runID, input, output, backend, resolution string, results []TaskResult, elapsed time.Duration) *Report {
	report := &Report{
		RunID:      runID,
		Mode:       mode,
		Input:      input,
		Output:     output,
		Backend:    backend,
		Resolution: resolution,
		Requested:  len(results),
		Elapsed:    elapsed,
	}

	outcomes := make([]TargetOutcome, len(results))
	for _, r := range results {
		outcome := TargetOutcome{
			Position:   r.Task.Key,
			Prompt:     r.Task.Prompt,
			Succeeded:  r.Err == nil,
			Commentary: r.Commentary,
		}
		if r.Err != nil {
			outcome.Error = r.Err.Error()
			report.Failed++
		} else {
			report.Succeeded++
		}
		outcomes[r.Task.Seq] = outcome
	}
	report.Targets = outcomes

	return report
}
