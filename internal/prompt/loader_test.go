package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeSystemPrompt(t *testing.T, dir, content string) {
	t.Helper()
	promptsDir := filepath.Join(dir, "prompts")
	if err := os.MkdirAll(promptsDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(promptsDir, "SYSTEM.md"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadSystemPrompt_FileExists(t *testing.T) {
	tmpDir := t.TempDir()
	expected := "# System Prompt\nYou are an encyclopedia author."
	writeSystemPrompt(t, tmpDir, expected)

	result, err := LoadSystemPrompt(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != expected {
		t.Errorf("got %q, want %q", result, expected)
	}
}

func TestLoadSystemPrompt_FileNotExists(t *testing.T) {
	tmpDir := t.TempDir()

	result, err := LoadSystemPrompt(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(result, "SCRIPTORIUM SYSTEM PROMPT") {
		t.Errorf("expected embedded default prompt, got %q", result)
	}
}

func TestLoadStylePrompt_FileExists(t *testing.T) {
	tmpDir := t.TempDir()
	expected := "# Style\nPrefer British spelling."
	if err := os.WriteFile(filepath.Join(tmpDir, "STYLE.md"), []byte(expected), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := LoadStylePrompt(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != expected {
		t.Errorf("got %q, want %q", result, expected)
	}
}

func TestLoadStylePrompt_FileNotExists(t *testing.T) {
	tmpDir := t.TempDir()

	result, err := LoadStylePrompt(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "" {
		t.Errorf("expected empty string for missing file, got %q", result)
	}
}

func TestLoadMergedSystemPrompt_WithStyle(t *testing.T) {
	tmpDir := t.TempDir()
	writeSystemPrompt(t, tmpDir, "system body")
	if err := os.WriteFile(filepath.Join(tmpDir, "STYLE.md"), []byte("style body"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := LoadMergedSystemPrompt(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(result, "system body") {
		t.Errorf("merged prompt should start with the system prompt: %q", result)
	}
	if !strings.Contains(result, "Project Style Instructions") || !strings.Contains(result, "style body") {
		t.Errorf("merged prompt missing style section: %q", result)
	}
}

func TestLoadMergedSystemPrompt_WithoutStyle(t *testing.T) {
	tmpDir := t.TempDir()
	writeSystemPrompt(t, tmpDir, "system body")

	result, err := LoadMergedSystemPrompt(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "system body" {
		t.Errorf("got %q, want the bare system prompt", result)
	}
}

func TestBuildEntryPrompt(t *testing.T) {
	passages := []ContextPassage{
		{Source: "creeds.md", Ref: "Nicene Creed", Content: "We believe in one God."},
		{Source: "fathers.md", Content: "Athanasius on the incarnation."},
	}

	prompt := BuildEntryPrompt("Justification", passages, 2000, 6000)

	for _, substr := range []string{
		`"Justification"`,
		"between 2000 and 6000 words",
		"Reference Passages",
		"creeds.md",
		"(Nicene Creed)",
		"We believe in one God.",
		"fathers.md",
	} {
		if !strings.Contains(prompt, substr) {
			t.Errorf("BuildEntryPrompt() missing %q", substr)
		}
	}
}

func TestBuildEntryPrompt_NoPassages(t *testing.T) {
	prompt := BuildEntryPrompt("Grace", nil, 2000, 6000)
	if strings.Contains(prompt, "Reference Passages") {
		t.Error("prompt should omit the reference section when no passages were retrieved")
	}
}
