package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
)

// Sink persists audit records. Write, Flush and Close are only ever
// called from the audit writer goroutine.
type Sink interface {
	Write(rec Record) error
	Flush() error
	Close() error
}

// MultiSink fans a record out to every sink. Write returns the first
// error but still attempts the remaining sinks.
type MultiSink []Sink

func (m MultiSink) Write(rec Record) error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Write(rec); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiSink) Flush() error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Flush(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m MultiSink) Close() error {
	var firstErr error
	for _, sink := range m {
		if err := sink.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FileSink appends audit records to a file, one JSON object per line.
type FileSink struct {
	file *os.File
	w    *bufio.Writer
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit file: %w", err)
	}
	return &FileSink{file: f, w: bufio.NewWriter(f)}, nil
}

func (s *FileSink) Write(rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write audit record: %w", err)
	}
	return s.w.WriteByte('\n')
}

func (s *FileSink) Flush() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.file.Sync()
}

func (s *FileSink) Close() error {
	if err := s.w.Flush(); err != nil {
		_ = s.file.Close()
		return err
	}
	return s.file.Close()
}
