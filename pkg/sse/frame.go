package sse

import "strings"

// dataMarker is the only SSE field the reel client interprets. Other field
// types ("event:", "id:", "retry:", comments) pass through as non-data
// frames and are dropped by the pipeline.
const dataMarker = "data:"

// Frame is a classified line from the event stream.
type Frame struct {
	// Data reports whether the line carried the data field marker.
	Data bool

	// Payload is the text after the marker with at most one leading space
	// stripped. Meaningful only when Data is true. An empty payload is
	// preserved rather than dropped here so validation can reject it
	// explicitly.
	Payload string

	// Line is the line as received, terminator already stripped.
	Line string
}

// ParseFrame classifies a single complete line.
//
// The marker match is case-sensitive and must start at the first byte of
// the line. Per the SSE spec, a single space after the colon is optional
// and stripped if present; any further whitespace belongs to the payload.
// ParseFrame retains no state between calls.
func ParseFrame(line string) Frame {
	if !strings.HasPrefix(line, dataMarker) {
		return Frame{Line: line}
	}

	payload := strings.TrimPrefix(line, dataMarker)
	payload = strings.TrimPrefix(payload, " ")

	return Frame{Data: true, Payload: payload, Line: line}
}
