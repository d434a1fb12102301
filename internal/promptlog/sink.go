package promptlog

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const (
	defaultMaxBytes = 10 * 1024 * 1024 // 10MB per file
	defaultMaxFiles = 5
)

// Sink appends JSON-Lines entries to a rotating file. A disabled Sink
// (Enabled=false, the zero value included) silently no-ops Write.
type Sink struct {
	dir      string
	enabled  bool
	maxBytes int64
	maxFiles int

	mu   sync.Mutex
	file *os.File
	size int64
}

// New builds a Sink writing into dir. enabled=false (or an empty dir)
// makes Write a no-op, matching PROMPT_LOG_ENABLED=false.
func New(dir string, enabled bool) *Sink {
	return &Sink{
		dir:      dir,
		enabled:  enabled && dir != "",
		maxBytes: defaultMaxBytes,
		maxFiles: defaultMaxFiles,
	}
}

// Write appends one entry as a JSON line. Failures are logged at
// slog.Warn and swallowed — this is a diagnostic side channel, never a
// reason to fail the call it's logging.
func (s *Sink) Write(e Entry) {
	if !s.enabled {
		return
	}
	line, err := json.Marshal(e)
	if err != nil {
		slog.Warn("promptlog: marshal entry failed", slog.String("error", err.Error()))
		return
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureOpenLocked(); err != nil {
		slog.Warn("promptlog: open log file failed", slog.String("error", err.Error()))
		return
	}
	if s.size+int64(len(line)) > s.maxBytes {
		if err := s.rotateLocked(); err != nil {
			slog.Warn("promptlog: rotate failed", slog.String("error", err.Error()))
			return
		}
	}
	n, err := s.file.Write(line)
	if err != nil {
		slog.Warn("promptlog: write failed", slog.String("error", err.Error()))
		return
	}
	s.size += int64(n)
}

// Close flushes and closes the current log file, if one is open.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *Sink) currentPath() string {
	return filepath.Join(s.dir, "prompts.jsonl")
}

func (s *Sink) ensureOpenLocked() error {
	if s.file != nil {
		return nil
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create prompt log dir: %w", err)
	}
	f, err := os.OpenFile(s.currentPath(), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open prompt log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("stat prompt log: %w", err)
	}
	s.file = f
	s.size = info.Size()
	return nil
}

// rotateLocked closes the current file, shifts prompts.jsonl.N -> N+1
// (dropping anything beyond maxFiles), and opens a fresh prompts.jsonl.
func (s *Sink) rotateLocked() error {
	if s.file != nil {
		s.file.Close()
		s.file = nil
	}

	oldest := fmt.Sprintf("%s.%d", s.currentPath(), s.maxFiles)
	os.Remove(oldest)

	for i := s.maxFiles - 1; i >= 1; i-- {
		from := fmt.Sprintf("%s.%d", s.currentPath(), i)
		to := fmt.Sprintf("%s.%d", s.currentPath(), i+1)
		if _, err := os.Stat(from); err == nil {
			os.Rename(from, to)
		}
	}
	if _, err := os.Stat(s.currentPath()); err == nil {
		if err := os.Rename(s.currentPath(), s.currentPath()+".1"); err != nil {
			return err
		}
	}
	return s.ensureOpenLocked()
}
