// Package stream serializes incremental generation events into
// newline-delimited JSON frames for transport to a client.
package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Event is one frame of a streamed answer. Exactly one terminal event is
// emitted per stream: either an Error frame or a final Done frame.
// Error text travels in its own field so clients never mistake it for
// answer content.
type Event struct {
	Content string `json:"content,omitempty"`
	Replace bool   `json:"replace,omitempty"`
	Error   string `json:"error,omitempty"`
	Done    bool   `json:"done,omitempty"`
}

// Content builds a delta frame carrying filtered answer text.
func Content(text string) Event {
	return Event{Content: text}
}

// Replacement builds a corrective frame: the client must replace
// everything it has accumulated with this text.
func Replacement(text string) Event {
	return Event{Content: text, Replace: true}
}

// Failure builds a terminal error frame.
func Failure(msg string) Event {
	return Event{Error: msg}
}

// Done builds the terminal completion frame.
func Done() Event {
	return Event{Done: true}
}

// Terminal reports whether the event ends the stream.
func (e Event) Terminal() bool {
	return e.Error != "" || (e.Done && e.Content == "")
}

// Encoder writes events as newline-delimited JSON frames, flushing after
// each frame when the destination supports it.
type Encoder struct {
	w io.Writer
}

// NewEncoder returns an encoder writing frames to w.
func NewEncoder(w io.Writer) *Encoder {
	return &Encoder{w: w}
}

// Encode writes one frame.
func (e *Encoder) Encode(ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("stream: marshal event: %w", err)
	}
	if _, err := e.w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("stream: write frame: %w", err)
	}
	if f, ok := e.w.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}
