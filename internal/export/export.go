// Package export writes accepted entries and run records to disk.
// Entries are markdown documents with YAML front matter and a
// validation appendix; records are JSON files carrying the full
// assessment even when the run failed.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scriptorium-ai/scriptorium/internal/refine"
	"github.com/scriptorium-ai/scriptorium/internal/validate"
)

// FrontMatter is the YAML block at the head of an exported entry.
type FrontMatter struct {
	Subject string  `yaml:"subject"`
	Date    string  `yaml:"date"`
	RunID   string  `yaml:"run_id"`
	Backend string  `yaml:"backend,omitempty"`
	Score   float64 `yaml:"score"`
	Tier    string  `yaml:"tier"`
}

// Entry bundles what the markdown writer needs for one document.
type Entry struct {
	Meta       FrontMatter
	Content    string
	Assessment validate.Assessment
	Attempts   int
}

// Result is the machine-readable record of one run. It is written for
// failed runs too, so batch post-processing sees every outcome.
type Result struct {
	RunID       string                  `json:"run_id"`
	Subject     string                  `json:"subject"`
	Backend     string                  `json:"backend,omitempty"`
	Accepted    bool                    `json:"accepted"`
	Score       float64                 `json:"score"`
	Tier        string                  `json:"tier,omitempty"`
	Attempts    int                     `json:"attempts"`
	Exhausted   bool                    `json:"exhausted,omitempty"`
	Error       string                  `json:"error,omitempty"`
	GeneratedAt time.Time               `json:"generated_at"`
	Assessment  validate.Assessment     `json:"assessment"`
	Trail       []refine.AttemptSummary `json:"trail,omitempty"`
}

// Writer renders entries through a text/template and writes them under
// a single output directory.
type Writer struct {
	outDir string
	tmpl   *template.Template
}

// NewWriter creates a Writer rooted at outDir, creating the directory
// if needed.
func NewWriter(outDir string) (*Writer, error) {
	tmpl, err := template.New("entry").Parse(entryTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse entry template: %w", err)
	}
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &Writer{outDir: outDir, tmpl: tmpl}, nil
}

// entryView is the data shape the entry template executes over.
type entryView struct {
	FrontMatter string
	Body        string
	Score       float64
	Tier        string
	Attempts    int
	Findings    []validate.Result
}

// Render returns the markdown document for an entry.
func (w *Writer) Render(e Entry) (string, error) {
	fm, err := yaml.Marshal(e.Meta)
	if err != nil {
		return "", fmt.Errorf("failed to marshal front matter: %w", err)
	}
	view := entryView{
		FrontMatter: string(fm),
		Body:        strings.TrimRight(e.Content, "\n"),
		Score:       e.Meta.Score,
		Tier:        e.Meta.Tier,
		Attempts:    e.Attempts,
		Findings:    openFindings(e.Assessment.Results),
	}
	var buf bytes.Buffer
	if err := w.tmpl.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("failed to execute entry template: %w", err)
	}
	return buf.String(), nil
}

// WriteEntry renders the entry and writes it as <slug>.md.
// Returns the written path.
func (w *Writer) WriteEntry(e Entry) (string, error) {
	content, err := w.Render(e)
	if err != nil {
		return "", err
	}
	path := filepath.Join(w.outDir, Slug(e.Meta.Subject)+".md")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return "", fmt.Errorf("failed to write entry: %w", err)
	}
	return path, nil
}

// WriteResult writes the JSON run record as <slug>.json.
// Returns the written path.
func (w *Writer) WriteResult(r Result) (string, error) {
	raw, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal result: %w", err)
	}
	path := filepath.Join(w.outDir, Slug(r.Subject)+".json")
	if err := os.WriteFile(path, append(raw, '\n'), 0644); err != nil {
		return "", fmt.Errorf("failed to write result: %w", err)
	}
	return path, nil
}

// openFindings returns the unresolved findings ranked most severe first.
func openFindings(results []validate.Result) []validate.Result {
	var open []validate.Result
	for _, r := range results {
		if !r.Passed {
			open = append(open, r)
		}
	}
	return validate.RankResults(open)
}
