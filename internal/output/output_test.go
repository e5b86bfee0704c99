package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/emmett/sublive/internal/soniox"
	"github.com/emmett/sublive/internal/transcript"
)

func snapshotOf(t *testing.T, capacity int, tokens ...soniox.Token) (*transcript.Store, transcript.Snapshot) {
	t.Helper()
	s := transcript.NewStore(capacity)
	s.Update(&soniox.Response{Tokens: tokens})
	return s, s.Snapshot()
}

func TestTrimHead(t *testing.T) {
	tests := []struct {
		text  string
		limit int
		want  string
	}{
		{"short", 10, "short"},
		{"exactly ten", 11, "exactly ten"},
		{"the quick brown fox", 10, "...own fox"},
		{"abc def", 6, "...def"},
		{"héllo wörld", 8, "...wörld"},
		{"abcdef", 2, "ef"},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := TrimHead(tt.text, tt.limit); got != tt.want {
			t.Errorf("TrimHead(%q, %d) = %q, want %q", tt.text, tt.limit, got, tt.want)
		}
	}
}

func TestPrettify(t *testing.T) {
	if got := Prettify("wait -- what"); got != "wait — what" {
		t.Errorf("Prettify = %q", got)
	}
}

func TestNew(t *testing.T) {
	for _, format := range []string{"", "console", "json", "text"} {
		if _, err := New(format, &bytes.Buffer{}); err != nil {
			t.Errorf("New(%q): %v", format, err)
		}
	}
	if _, err := New("html", nil); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestConsoleRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleRenderer(ConsoleConfig{Writer: &buf, Width: 40})

	_, snap := snapshotOf(t, 3,
		soniox.Token{Text: "Hello -- there", Speaker: "1", IsFinal: true},
		soniox.Token{Text: " friend", Speaker: "1"},
		soniox.Token{Text: "hi", Speaker: "2", IsFinal: true},
	)
	if err := r.Render(snap); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	for _, want := range []string{"Speaker 1:", "Hello — there", " friend", "Speaker 2:", "hi"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[2J") {
		t.Error("cleared the screen without Redraw")
	}

	buf.Reset()
	r.Status(StatusWarning, "connection interrupted, reconnecting")
	if !strings.Contains(buf.String(), "reconnecting") || !strings.Contains(buf.String(), "Hello") {
		t.Errorf("status frame lost subtitles:\n%s", buf.String())
	}
}

func TestConsoleRendererTrimsOldestText(t *testing.T) {
	var buf bytes.Buffer
	r := NewConsoleRenderer(ConsoleConfig{Writer: &buf, Width: 20})

	_, snap := snapshotOf(t, 3,
		soniox.Token{Text: "this part scrolls off the left edge", IsFinal: true},
		soniox.Token{Text: " newest"},
	)
	r.Render(snap)

	out := buf.String()
	if !strings.Contains(out, " newest") || !strings.Contains(out, "...left edge") {
		t.Errorf("newest words not kept: %q", out)
	}
	if strings.Contains(out, "this part") {
		t.Errorf("old text not trimmed: %q", out)
	}
}

func TestConsoleRendererStableColors(t *testing.T) {
	r := NewConsoleRenderer(ConsoleConfig{Writer: &bytes.Buffer{}})
	a := r.speakerStyle("1")
	r.speakerStyle("2")
	if got := r.speakerStyle("1"); got.GetForeground() != a.GetForeground() {
		t.Error("speaker color changed")
	}
	if r.speakerStyle("2").GetForeground() == a.GetForeground() {
		t.Error("two speakers share a color")
	}
}

func TestJSONRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewJSONRenderer(&buf)

	_, snap := snapshotOf(t, 3, soniox.Token{Text: "hello", Speaker: "1", IsFinal: true})
	r.Render(snap)
	r.Render(transcript.Snapshot{})
	r.Status(StatusError, "invalid api key")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}

	var rec SnapshotRecord
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatal(err)
	}
	if rec.Type != "snapshot" || len(rec.Replicas) != 1 || rec.Replicas[0].Text() != "hello" {
		t.Errorf("record = %+v", rec)
	}
	if !strings.Contains(lines[1], `"replicas":[]`) {
		t.Errorf("empty snapshot should encode an empty list: %s", lines[1])
	}

	var ev Event
	json.Unmarshal([]byte(lines[2]), &ev)
	if ev.Type != "status" || ev.Kind != StatusError || ev.Message != "invalid api key" {
		t.Errorf("event = %+v", ev)
	}
}

func TestTextRenderer(t *testing.T) {
	var buf bytes.Buffer
	r := NewTextRenderer(&buf)
	s := transcript.NewStore(2)

	update := func(tokens ...soniox.Token) {
		s.Update(&soniox.Response{Tokens: tokens})
		if err := r.Render(s.Snapshot()); err != nil {
			t.Fatal(err)
		}
	}

	update(soniox.Token{Text: "Hello ", Speaker: "1", IsFinal: true})
	update(soniox.Token{Text: "world", Speaker: "1", IsFinal: true}, soniox.Token{Text: " and", Speaker: "1"})
	if buf.Len() != 0 {
		t.Fatalf("printed a block that may still grow: %q", buf.String())
	}

	update(soniox.Token{Text: "bye", Speaker: "2", IsFinal: true})
	update(soniox.Token{Text: "again", Speaker: "1", IsFinal: true}, soniox.Token{Text: "later", Speaker: "2", IsFinal: true})

	s.Clear()
	r.Render(s.Snapshot())
	r.Close()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	want := []string{"Speaker 1: Hello world", "Speaker 2: bye", "Speaker 1: again", "Speaker 2: later"}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines:\n%s", len(lines), buf.String())
	}
	for i, w := range want {
		if !strings.HasSuffix(lines[i], w) {
			t.Errorf("line %d = %q, want suffix %q", i, lines[i], w)
		}
		if strings.Contains(lines[i], " and") {
			t.Errorf("interim text printed: %q", lines[i])
		}
	}
}
