package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/emmett/sublive/internal/transcript"
)

// speakerColors cycles through distinguishable ANSI 256 colors
var speakerColors = []string{"255", "226", "45", "213", "118", "208", "141", "203"}

// ConsoleRenderer redraws the subtitle replicas in place
type ConsoleRenderer struct {
	mu       sync.Mutex
	writer   io.Writer
	redraw   bool
	width    int
	speakers map[string]int

	label   lipgloss.Style
	interim lipgloss.Style
	status  map[StatusKind]lipgloss.Style
	styles  []lipgloss.Style

	lastStatus string
	lastLines  []string
}

// ConsoleConfig configures console output behavior
type ConsoleConfig struct {
	// Writer is the output destination (default: os.Stdout)
	Writer io.Writer

	// Redraw clears the screen before every frame
	Redraw bool

	// Width is the rune budget per subtitle line (default: 100)
	Width int
}

// NewConsoleRenderer creates a new console renderer
func NewConsoleRenderer(config ConsoleConfig) *ConsoleRenderer {
	writer := config.Writer
	if writer == nil {
		writer = os.Stdout
	}
	width := config.Width
	if width <= 0 {
		width = 100
	}

	r := lipgloss.NewRenderer(writer)
	c := &ConsoleRenderer{
		writer:   writer,
		redraw:   config.Redraw,
		width:    width,
		speakers: make(map[string]int),
		label:    r.NewStyle().Bold(true),
		interim:  r.NewStyle().Faint(true),
		status: map[StatusKind]lipgloss.Style{
			StatusInfo:    r.NewStyle().Foreground(lipgloss.Color("241")),
			StatusWarning: r.NewStyle().Foreground(lipgloss.Color("208")),
			StatusError:   r.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		},
	}
	for _, col := range speakerColors {
		c.styles = append(c.styles, r.NewStyle().Foreground(lipgloss.Color(col)))
	}
	return c
}

// speakerStyle assigns colors in order of first appearance so a speaker
// keeps its color for the whole session.
func (c *ConsoleRenderer) speakerStyle(speaker string) lipgloss.Style {
	i, ok := c.speakers[speaker]
	if !ok {
		i = len(c.speakers)
		c.speakers[speaker] = i
	}
	return c.styles[i%len(c.styles)]
}

// Render draws every replica on its own line
func (c *ConsoleRenderer) Render(snap transcript.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	lines := make([]string, 0, len(snap.Replicas))
	for _, r := range snap.Replicas {
		lines = append(lines, c.line(r))
	}
	c.lastLines = lines
	return c.draw()
}

func (c *ConsoleRenderer) line(r transcript.Replica) string {
	style := c.speakerStyle(r.Speaker)

	var b strings.Builder
	budget := c.width
	label := SpeakerLabel(r.Speaker)
	if label != "" {
		b.WriteString(c.label.Inherit(style).Render(label + ":"))
		b.WriteByte(' ')
		budget -= len([]rune(label)) + 2
	}

	// trim from the oldest element so the newest words stay visible
	texts := make([]string, len(r.Elements))
	total := 0
	for i, e := range r.Elements {
		texts[i] = Prettify(e.Text)
		total += len([]rune(texts[i]))
	}
	skip := total - budget
	for i, e := range r.Elements {
		text := texts[i]
		if skip > 0 {
			n := len([]rune(text))
			if n <= skip {
				skip -= n
				continue
			}
			text = TrimHead(text, n-skip)
			skip = 0
		}
		if e.Interim {
			b.WriteString(c.interim.Inherit(style).Render(text))
		} else {
			b.WriteString(style.Render(text))
		}
	}
	return b.String()
}

// Status replaces the status line
func (c *ConsoleRenderer) Status(kind StatusKind, msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	style, ok := c.status[kind]
	if !ok {
		style = c.status[StatusInfo]
	}
	c.lastStatus = style.Render("[*] " + msg)
	return c.draw()
}

func (c *ConsoleRenderer) draw() error {
	var b strings.Builder
	if c.redraw {
		b.WriteString("\x1b[H\x1b[2J")
	}
	for _, l := range c.lastLines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	if c.lastStatus != "" {
		b.WriteString(c.lastStatus)
		b.WriteByte('\n')
	}
	_, err := io.WriteString(c.writer, b.String())
	return err
}

// Close leaves the last frame on screen
func (c *ConsoleRenderer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.redraw {
		_, err := fmt.Fprintln(c.writer)
		return err
	}
	return nil
}
