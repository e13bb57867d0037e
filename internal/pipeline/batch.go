package pipeline

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
)

// BatchReport aggregates the outcomes of one batch run.
type BatchReport struct {
	Total    int
	Accepted int
	Rejected int
	Failed   int
	Reports  []RunReport
}

// Batch generates entries for every subject listed in the file, one per
// line. Blank lines and '#' comments are skipped, duplicates collapse to
// their first occurrence. A failing subject is logged and counted; it
// never stops the rest of the batch. The returned error covers only an
// unreadable subjects file or context cancellation.
func (p *Pipeline) Batch(ctx context.Context, subjectsPath string) (BatchReport, error) {
	subjects, err := readSubjects(subjectsPath)
	if err != nil {
		return BatchReport{}, &ConfigurationError{Err: err}
	}
	if len(subjects) == 0 {
		return BatchReport{}, &ConfigurationError{Err: fmt.Errorf("no subjects in %s", subjectsPath)}
	}

	report := BatchReport{Total: len(subjects)}
	for i, subject := range subjects {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		p.logger.Printf("pipeline: batch %d/%d %q", i+1, len(subjects), subject)

		rep, err := p.Generate(ctx, subject)
		report.Reports = append(report.Reports, rep)
		switch {
		case err != nil && ctx.Err() != nil:
			report.Failed++
			return report, ctx.Err()
		case err != nil:
			report.Failed++
			p.logger.Printf("pipeline: batch subject %q failed: %v", subject, err)
		case rep.Result.Accepted:
			report.Accepted++
		default:
			report.Rejected++
		}
	}
	return report, nil
}

// readSubjects parses the one-subject-per-line batch file.
func readSubjects(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var subjects []string
	seen := make(map[string]bool)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if seen[line] {
			continue
		}
		seen[line] = true
		subjects = append(subjects, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return subjects, nil
}
