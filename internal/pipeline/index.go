package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/scriptorium-ai/scriptorium/internal/retry"
	"github.com/scriptorium-ai/scriptorium/internal/router"
	"github.com/scriptorium-ai/scriptorium/internal/vector"
)

// IndexReport summarizes one indexing pass.
type IndexReport struct {
	Files    int
	Passages int
	Skipped  int
}

// Index chunks the given documents, embeds each chunk, and stores the
// passages in the vector index. Directories are walked for .md and .txt
// files. Re-indexing a file replaces its previous passages; the file
// name is the source key.
func (p *Pipeline) Index(ctx context.Context, paths []string) (IndexReport, error) {
	var report IndexReport
	if p.vectors == nil {
		return report, &ConfigurationError{Err: fmt.Errorf("vector store unavailable")}
	}

	files, skipped, err := collectIndexFiles(paths)
	if err != nil {
		return report, &ConfigurationError{Err: err}
	}
	report.Skipped = skipped
	if len(files) == 0 {
		return report, &ConfigurationError{Err: fmt.Errorf("no indexable files in %v", paths)}
	}

	backendName, ok := p.router.Route(router.TaskEntry)
	if !ok {
		return report, &RouteError{TaskType: router.TaskEntry}
	}
	handle, err := p.acquireHandle(ctx, backendName)
	if err != nil {
		return report, &GenerationError{Subject: "index", Backend: backendName, Err: err}
	}

	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return report, fmt.Errorf("reading %s: %w", file, err)
		}
		_, body := splitFrontMatter(string(data))

		source := filepath.Base(file)
		if err := p.vectors.DeleteSource(ctx, source); err != nil {
			return report, fmt.Errorf("clearing previous passages for %s: %w", source, err)
		}

		chunks := vector.Chunk(body, p.cfg.Vector.ChunkWords)
		for i, chunk := range chunks {
			embedding, err := retry.Do(ctx, p.genPolicy, p.logger, "embed "+backendName,
				func(ctx context.Context) ([]float32, error) {
					return handle.Embed(ctx, chunk)
				}, nil)
			if err != nil {
				return report, &GenerationError{Subject: source, Backend: backendName, Err: err}
			}
			passage := vector.Passage{
				Source:  source,
				Ref:     fmt.Sprintf("chunk %d/%d", i+1, len(chunks)),
				Content: chunk,
			}
			if err := p.vectors.Add(ctx, passage, embedding); err != nil {
				return report, fmt.Errorf("storing passage %s %s: %w", source, passage.Ref, err)
			}
			report.Passages++
		}
		report.Files++
		p.logger.Printf("pipeline: indexed %s, %d passages", source, len(chunks))
	}
	return report, nil
}

// collectIndexFiles expands the argument list: files pass through,
// directories are walked for markdown and plain text.
func collectIndexFiles(paths []string) ([]string, int, error) {
	var files []string
	skipped := 0
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, 0, err
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(sub string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			switch strings.ToLower(filepath.Ext(sub)) {
			case ".md", ".txt":
				files = append(files, sub)
			default:
				skipped++
			}
			return nil
		})
		if err != nil {
			return nil, 0, err
		}
	}
	return files, skipped, nil
}
