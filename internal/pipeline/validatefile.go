package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/scriptorium-ai/scriptorium/internal/export"
)

// ValidateFile assesses an existing markdown entry without generating
// anything. Front matter, when present, supplies the subject and is
// excluded from scoring. The result record lands next to generated ones
// so batch post-processing treats both alike.
func (p *Pipeline) ValidateFile(ctx context.Context, path string) (export.Result, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return export.Result{}, "", &ValidationError{Subject: path, Err: err}
	}

	meta, content := splitFrontMatter(string(data))
	subject := meta.Subject
	if subject == "" {
		subject = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	assessment, err := p.composite.Assess(ctx, content)
	if err != nil {
		return export.Result{}, "", &ValidationError{Subject: subject, Err: err}
	}

	veto := p.cfg.Generation.CriticalVeto == nil || *p.cfg.Generation.CriticalVeto
	accepted := assessment.Score >= p.cfg.Generation.Threshold &&
		!(veto && assessment.HasCritical())

	result := export.Result{
		RunID:       newRunID(),
		Subject:     subject,
		Accepted:    accepted,
		Score:       assessment.Score,
		Tier:        assessment.Tier,
		Attempts:    1,
		GeneratedAt: time.Now().UTC(),
		Assessment:  assessment,
	}
	resultPath, err := p.writer.WriteResult(result)
	if err != nil {
		return result, "", &ValidationError{Subject: subject, Err: err}
	}
	return result, resultPath, nil
}

// splitFrontMatter separates a leading YAML front matter block from the
// body. Content without a parseable block comes back whole.
func splitFrontMatter(s string) (export.FrontMatter, string) {
	var fm export.FrontMatter
	if !strings.HasPrefix(s, "---\n") {
		return fm, s
	}
	rest := s[len("---\n"):]
	end := strings.Index(rest, "\n---\n")
	if end < 0 {
		return fm, s
	}
	if err := yaml.Unmarshal([]byte(rest[:end+1]), &fm); err != nil {
		return export.FrontMatter{}, s
	}
	return fm, strings.TrimLeft(rest[end+len("\n---\n"):], "\n")
}
