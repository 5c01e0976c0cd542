// Package sse decodes the SSE (Server-Sent Events) wire format used by
// the agent backend's streaming run endpoint.
//
// The decoder is push-driven: the caller feeds raw response chunks to a
// Splitter as they arrive and classifies each completed line with
// ParseFrame. Nothing here performs I/O, so transport chunk boundaries can
// fall anywhere, including inside a "\r\n" terminator or in the middle of
// the "data:" marker, without affecting the decoded line sequence.
//
// This package intentionally does NOT provide SSE writer or server
// capabilities.
//
// See the SSE specification:
// https://html.spec.whatwg.org/multipage/server-sent-events.html
package sse

import "strings"

// Splitter accumulates raw stream chunks and yields complete lines.
//
// A line is terminated by "\n" or "\r\n"; terminators are stripped from
// the returned lines. Bytes after the last terminator seen so far are
// retained between calls, so a line split across any number of chunks is
// reassembled before it is returned. The retained tail is never returned
// by Process, even when non-empty, because a future chunk may complete it.
//
// A Splitter serves exactly one stream. It is not safe for concurrent use.
type Splitter struct {
	// tail holds the bytes seen since the last line terminator.
	tail string

	flushed bool
}

// NewSplitter returns a Splitter with an empty buffer.
func NewSplitter() *Splitter {
	return &Splitter{}
}

// Process appends chunk to the retained buffer and returns all complete
// lines now available, in order. It returns nil when the chunk completes
// no line. Process must not be called after Flush.
func (s *Splitter) Process(chunk string) []string {
	if s.flushed {
		return nil
	}

	s.tail += chunk

	if !strings.Contains(s.tail, "\n") {
		return nil
	}

	segments := strings.Split(s.tail, "\n")
	last := len(segments) - 1

	// The final segment follows the last terminator. It may be empty, or
	// it may be the prefix of a line the next chunk will complete.
	s.tail = segments[last]

	lines := segments[:last]
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}

	return lines
}

// Flush returns the retained tail as a final line, for streams that end
// without a trailing terminator. The boolean reports whether a line was
// produced. A lone trailing "\r" is not a terminator and stays part of
// the line.
//
// Flush is one-shot: after it returns, the splitter is spent and further
// Process or Flush calls yield nothing.
func (s *Splitter) Flush() (string, bool) {
	if s.flushed {
		return "", false
	}
	s.flushed = true

	if s.tail == "" {
		return "", false
	}

	line := s.tail
	s.tail = ""

	return line, true
}
