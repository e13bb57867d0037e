package events

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// FileSink appends RunEvents to a per-run JSONL file.
// It is safe for concurrent use from multiple goroutines.
type FileSink struct {
	mu   sync.Mutex
	path string
	file *os.File
	buf  *bufio.Writer
	enc  *json.Encoder
}

// runFile returns the JSONL path for a run ID inside dir.
func runFile(dir, runID string) string {
	return filepath.Join(dir, runID+".jsonl")
}

// NewFileSink opens dir/<runID>.jsonl for appending, creating the
// directory if needed. Events from an earlier process with the same
// run ID are preserved.
func NewFileSink(dir, runID string) (*FileSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create events directory: %w", err)
	}

	path := runFile(dir, runID)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}

	buf := bufio.NewWriter(file)
	return &FileSink{
		path: path,
		file: file,
		buf:  buf,
		enc:  json.NewEncoder(buf),
	}, nil
}

// Path returns the path of the events file.
func (s *FileSink) Path() string {
	return s.path
}

// Write appends a batch of events, one JSON object per line.
func (s *FileSink) Write(events []RunEvent) error {
	if len(events) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range events {
		if err := s.enc.Encode(&events[i]); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}

	// Flush so a crashed run still leaves its trail on disk
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush events: %w", err)
	}
	return nil
}

// WriteOne appends a single event.
func (s *FileSink) WriteOne(event RunEvent) error {
	return s.Write([]RunEvent{event})
}

// Flush forces buffered events to disk.
func (s *FileSink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

// Close flushes buffered events and closes the file. Closing an
// already closed sink is a no-op.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}

	flushErr := s.buf.Flush()
	closeErr := s.file.Close()
	s.file = nil

	if flushErr != nil {
		return fmt.Errorf("failed to flush before close: %w", flushErr)
	}
	if closeErr != nil {
		return fmt.Errorf("failed to close events file: %w", closeErr)
	}
	return nil
}

// ReadEvents decodes every event in a JSONL file.
func ReadEvents(path string) ([]RunEvent, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var events []RunEvent
	dec := json.NewDecoder(bufio.NewReader(file))
	for {
		var event RunEvent
		if err := dec.Decode(&event); err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return nil, fmt.Errorf("failed to parse event %d: %w", len(events)+1, err)
		}
		events = append(events, event)
	}
}

// ReadRun reads the event stream for one run ID from dir.
func ReadRun(dir, runID string) ([]RunEvent, error) {
	return ReadEvents(runFile(dir, runID))
}

// FilterByType keeps events whose type is one of types. With no types
// given, all events are returned.
func FilterByType(events []RunEvent, types ...EventType) []RunEvent {
	if len(types) == 0 {
		return events
	}

	var filtered []RunEvent
	for _, event := range events {
		for _, typ := range types {
			if event.Type == typ {
				filtered = append(filtered, event)
				break
			}
		}
	}
	return filtered
}

// FilterByAttempt keeps events recorded during one generation attempt.
// Attempt numbers start at 1; zero or negative returns all events.
func FilterByAttempt(events []RunEvent, attempt int) []RunEvent {
	if attempt <= 0 {
		return events
	}

	var filtered []RunEvent
	for _, event := range events {
		if event.Attempt == attempt {
			filtered = append(filtered, event)
		}
	}
	return filtered
}
