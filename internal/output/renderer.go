package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/emmett/sublive/internal/transcript"
)

// StatusKind classifies a status line
type StatusKind string

const (
	StatusInfo    StatusKind = "info"
	StatusWarning StatusKind = "warning"
	StatusError   StatusKind = "error"
)

// Renderer draws subtitle snapshots and session status
type Renderer interface {
	// Render draws the snapshot. It is called only when the snapshot changed.
	Render(snap transcript.Snapshot) error

	// Status shows a session message such as a reconnect warning
	Status(kind StatusKind, msg string) error

	// Close flushes anything still pending
	Close() error
}

// New creates the renderer for a display format
func New(format string, w io.Writer) (Renderer, error) {
	if w == nil {
		w = os.Stdout
	}
	switch format {
	case "", "console":
		return NewConsoleRenderer(ConsoleConfig{Writer: w, Redraw: true}), nil
	case "json":
		return NewJSONRenderer(w), nil
	case "text":
		return NewTextRenderer(w), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// Prettify replaces ASCII stand-ins with typographic glyphs
func Prettify(text string) string {
	return strings.ReplaceAll(text, "--", "—")
}

// TrimHead keeps the end of text within limit runes, marking the cut
// with an ellipsis. Subtitles are read from the newest words backwards.
func TrimHead(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	const ellipsis = "..."
	if limit <= len(ellipsis) {
		r := []rune(text)
		return string(r[len(r)-limit:])
	}
	r := []rune(text)
	tail := strings.TrimLeft(string(r[len(r)-(limit-len(ellipsis)):]), " ")
	return ellipsis + tail
}

// SpeakerLabel names a speaker for display
func SpeakerLabel(speaker string) string {
	if speaker == "" {
		return ""
	}
	return "Speaker " + speaker
}
