// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"bufio"
	"io"
	"log/slog"
	"sync"
)

// defaultSinkLines bounds the in-memory server log per handle.
const defaultSinkLines = 1000

// LogSink captures a server process's output streams.
//
// Description:
//
//	Keeps a bounded ring of the most recent output lines so callers can
//	surface the server log on demand, and mirrors every line to slog at
//	debug level for live observability.
//
// Thread Safety: Safe for concurrent use.
type LogSink struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
	root  string
}

// NewLogSink creates a sink bounded to defaultSinkLines lines.
func NewLogSink(root string) *LogSink {
	return &LogSink{
		lines: make([]string, defaultSinkLines),
		root:  root,
	}
}

// Consume reads a stream line by line until EOF, recording each line.
// Run it in its own goroutine per stream; it returns when the pipe closes.
func (s *LogSink) Consume(stream string, r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		s.append(line)
		slog.Debug("Analysis server output",
			slog.String("root", s.root),
			slog.String("stream", stream),
			slog.String("line", line),
		)
	}
}

// append records one line in the ring.
func (s *LogSink) append(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines[s.next] = line
	s.next = (s.next + 1) % len(s.lines)
	if s.next == 0 {
		s.full = true
	}
}

// Tail returns up to n most recent lines, oldest first.
func (s *LogSink) Tail(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	size := s.next
	start := 0
	if s.full {
		size = len(s.lines)
		start = s.next
	}
	if n > size {
		n = size
	}

	out := make([]string, 0, n)
	for i := size - n; i < size; i++ {
		out = append(out, s.lines[(start+i)%len(s.lines)])
	}
	return out
}

// Len returns the number of lines currently buffered.
func (s *LogSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.full {
		return len(s.lines)
	}
	return s.next
}
