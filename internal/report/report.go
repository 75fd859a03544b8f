// Package report assembles the outcome of a completed execution: the
// definition, the frozen field values, the stamped event log, and an
// optional natural-language summary attached after the fact.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"faultctl/internal/catalog"
	"faultctl/internal/pipeline"
)

// SummaryPlaceholder is shown when the summarizer errors or times out. The
// rest of the report is never blocked by it.
const SummaryPlaceholder = "analysis unavailable"

// Summarizer turns a finished run's log into a short natural-language
// summary. Implementations live outside the core; unavailability is normal.
type Summarizer interface {
	Summarize(ctx context.Context, req pipeline.Request, logText string) (string, error)
}

// Report is the final record of one execution.
type Report struct {
	ID          string
	Experiment  *catalog.Experiment
	FinalValues map[string]string
	Events      []pipeline.Event
	Summary     string // empty until attached
	CreatedAt   time.Time
}

// Assemble builds a report with no summary. Inputs are copied so later
// sessions cannot retroactively alter it.
func Assemble(exp *catalog.Experiment, finalValues map[string]string, events []pipeline.Event) Report {
	values := make(map[string]string, len(finalValues))
	for k, v := range finalValues {
		values[k] = v
	}
	log := make([]pipeline.Event, len(events))
	copy(log, events)
	return Report{
		ID:          uuid.NewString(),
		Experiment:  exp,
		FinalValues: values,
		Events:      log,
		CreatedAt:   time.Now().UTC(),
	}
}

// AttachSummary returns a copy of the report with the summary set. A blank
// summary degrades to the visible placeholder.
func AttachSummary(r Report, text string) Report {
	text = strings.TrimSpace(text)
	if text == "" {
		text = SummaryPlaceholder
	}
	r.Summary = text
	return r
}

// LogText concatenates the event log for the summarizer collaborator.
func (r Report) LogText() string {
	var b strings.Builder
	for _, ev := range r.Events {
		fmt.Fprintf(&b, "[%s] %s\n", ev.Kind, ev.Text)
	}
	return b.String()
}

type persistedReport struct {
	ID          string            `yaml:"id"`
	Experiment  string            `yaml:"experiment"`
	Kind        string            `yaml:"kind"`
	CreatedAt   time.Time         `yaml:"created_at"`
	FinalValues map[string]string `yaml:"final_values"`
	Events      []persistedEvent  `yaml:"events"`
	Summary     string            `yaml:"summary,omitempty"`
}

type persistedEvent struct {
	Elapsed string `yaml:"elapsed"`
	Kind    string `yaml:"kind"`
	Text    string `yaml:"text"`
}

// Save writes the report as YAML under dir and returns the file path.
func Save(dir string, r Report) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("report: ensure dir: %w", err)
	}
	record := persistedReport{
		ID:          r.ID,
		Experiment:  r.Experiment.Name,
		Kind:        r.Experiment.Kind,
		CreatedAt:   r.CreatedAt,
		FinalValues: r.FinalValues,
		Summary:     r.Summary,
	}
	for _, ev := range r.Events {
		record.Events = append(record.Events, persistedEvent{
			Elapsed: ev.Elapsed.String(),
			Kind:    ev.Kind.String(),
			Text:    ev.Text,
		})
	}
	data, err := yaml.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("report: encode: %w", err)
	}
	name := fmt.Sprintf("%s-%s.yaml", r.CreatedAt.Format("20060102-150405"), r.ID)
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	return path, nil
}
