package prompt

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/scriptorium-ai/scriptorium/prompts"
)

// LoadSystemPrompt reads SYSTEM.md from the working directory's prompts
// folder. Falls back to the embedded default when the file does not
// exist, so a bare checkout generates without setup.
func LoadSystemPrompt(workDir string) (string, error) {
	systemMDPath := filepath.Join(workDir, "prompts", "SYSTEM.md")
	data, err := os.ReadFile(systemMDPath)
	if err != nil {
		if os.IsNotExist(err) {
			return prompts.System, nil
		}
		return "", fmt.Errorf("failed to read system prompt %s: %w", systemMDPath, err)
	}
	return string(data), nil
}

// LoadStylePrompt reads STYLE.md from the given directory root. The file
// carries project-specific editorial instructions appended to the system
// prompt. Returns empty string with nil error if the file does not
// exist.
func LoadStylePrompt(workDir string) (string, error) {
	styleMDPath := filepath.Join(workDir, "STYLE.md")

	data, err := os.ReadFile(styleMDPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read style prompt %s: %w", styleMDPath, err)
	}

	return string(data), nil
}

// LoadMergedSystemPrompt combines SYSTEM.md with an optional STYLE.md
// override into one system prompt.
func LoadMergedSystemPrompt(workDir string) (string, error) {
	system, err := LoadSystemPrompt(workDir)
	if err != nil {
		return "", err
	}

	style, err := LoadStylePrompt(workDir)
	if err != nil {
		return "", err
	}
	if style == "" {
		return system, nil
	}

	return system + "\n\n---\n\n## Project Style Instructions\n\n" + style, nil
}
