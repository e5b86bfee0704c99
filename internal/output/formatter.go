package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/emmett/sublive/internal/transcript"
)

// SnapshotRecord is one JSON line describing the screen
type SnapshotRecord struct {
	Type      string               `json:"type"`
	Version   uint64               `json:"version"`
	Replicas  []transcript.Replica `json:"replicas"`
	Timestamp time.Time            `json:"timestamp"`
}

// Event represents a system event
type Event struct {
	Type      string     `json:"type"`
	Kind      StatusKind `json:"kind"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// JSONRenderer writes one JSON object per line
type JSONRenderer struct {
	mu      sync.Mutex
	encoder *json.Encoder
}

// NewJSONRenderer creates a new JSON renderer
func NewJSONRenderer(writer io.Writer) *JSONRenderer {
	return &JSONRenderer{encoder: json.NewEncoder(writer)}
}

// Render writes the snapshot's replicas
func (j *JSONRenderer) Render(snap transcript.Snapshot) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	replicas := snap.Replicas
	if replicas == nil {
		replicas = []transcript.Replica{}
	}
	return j.encoder.Encode(SnapshotRecord{
		Type:      "snapshot",
		Version:   snap.Version,
		Replicas:  replicas,
		Timestamp: time.Now(),
	})
}

// Status writes a system event
func (j *JSONRenderer) Status(kind StatusKind, msg string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.encoder.Encode(Event{
		Type:      "status",
		Kind:      kind,
		Message:   msg,
		Timestamp: time.Now(),
	})
}

// Close closes the renderer
func (j *JSONRenderer) Close() error {
	return nil
}

// TextRenderer prints each final block once it is complete. Interim text
// is never printed.
type TextRenderer struct {
	mu      sync.Mutex
	writer  io.Writer
	pending transcript.Block
}

// NewTextRenderer creates a new plain text renderer
func NewTextRenderer(writer io.Writer) *TextRenderer {
	return &TextRenderer{writer: writer}
}

// Render prints the blocks that were superseded since the last snapshot.
// The newest block may still grow, so it is held back.
func (p *TextRenderer) Render(snap transcript.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	finals := snap.Finals
	if len(finals) == 0 {
		return p.flush()
	}

	start := -1
	if p.pending.Text != "" {
		for i := len(finals) - 1; i >= 0; i-- {
			if finals[i].Speaker == p.pending.Speaker && strings.HasPrefix(finals[i].Text, p.pending.Text) {
				start = i
				break
			}
		}
	}
	if start < 0 {
		// the held block is gone from the screen
		if err := p.flush(); err != nil {
			return err
		}
		start = 0
	}

	for _, b := range finals[start : len(finals)-1] {
		if err := p.print(b); err != nil {
			return err
		}
	}
	p.pending = finals[len(finals)-1]
	return nil
}

func (p *TextRenderer) flush() error {
	if p.pending.Text == "" {
		return nil
	}
	b := p.pending
	p.pending = transcript.Block{}
	return p.print(b)
}

func (p *TextRenderer) print(b transcript.Block) error {
	text := strings.TrimSpace(Prettify(b.Text))
	if text == "" {
		return nil
	}
	timestamp := time.Now().Format("15:04:05")
	if label := SpeakerLabel(b.Speaker); label != "" {
		text = label + ": " + text
	}
	_, err := fmt.Fprintf(p.writer, "[%s] %s\n", timestamp, text)
	return err
}

// Status writes a system event
func (p *TextRenderer) Status(kind StatusKind, msg string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	timestamp := time.Now().Format("15:04:05")
	_, err := fmt.Fprintf(p.writer, "[%s] [%s] %s\n", timestamp, kind, msg)
	return err
}

// Close prints the block still being held
func (p *TextRenderer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flush()
}
