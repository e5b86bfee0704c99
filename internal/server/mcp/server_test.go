package mcp

import (
	"context"
	"strings"
	"testing"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/sublive/internal/app"
	"github.com/emmett/sublive/internal/soniox"
	"github.com/emmett/sublive/internal/transcript"
)

func resultText(t *testing.T, res *sdk.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}
	tc, ok := res.Content[0].(*sdk.TextContent)
	if !ok {
		t.Fatalf("content is %T, want text", res.Content[0])
	}
	return tc.Text
}

func hubWith(tokens ...soniox.Token) *app.Hub {
	s := transcript.NewStore(3)
	s.Update(&soniox.Response{Tokens: tokens})
	hub := app.NewHub()
	hub.Publish(s.Snapshot())
	return hub
}

func TestGetSubtitles(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		s := NewServer(Config{}, app.NewHub())
		res, _, err := s.handleGetSubtitles(context.Background(), nil, GetSubtitlesArgs{})
		if err != nil {
			t.Fatal(err)
		}
		if got := resultText(t, res); got != "(no subtitles)" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("replicas", func(t *testing.T) {
		s := NewServer(Config{}, hubWith(
			soniox.Token{Text: "Good morning -- everyone.", Speaker: "1", IsFinal: true},
			soniox.Token{Text: "Hi", Speaker: "2", IsFinal: true},
			soniox.Token{Text: " there", Speaker: "2"},
		))
		res, _, err := s.handleGetSubtitles(context.Background(), nil, GetSubtitlesArgs{})
		if err != nil {
			t.Fatal(err)
		}
		want := "Speaker 1: Good morning — everyone.\nSpeaker 2: Hi there…"
		if got := resultText(t, res); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})
}

func TestGetStatus(t *testing.T) {
	hub := hubWith(soniox.Token{Text: "x", IsFinal: true})
	hub.SetStatus(app.StatusReconnecting, "connection interrupted, reconnecting")
	s := NewServer(Config{}, hub)

	res, _, err := s.handleGetStatus(context.Background(), nil, GetStatusArgs{})
	if err != nil {
		t.Fatal(err)
	}
	got := resultText(t, res)
	for _, want := range []string{"Status: reconnecting", "Message: connection interrupted", "Capacity: 3", "Final blocks: 1"} {
		if !strings.Contains(got, want) {
			t.Errorf("status missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Last activity: none") {
		t.Error("last activity not reported")
	}
}

func TestSetCapacity(t *testing.T) {
	hub := app.NewHub()
	s := NewServer(Config{}, hub)

	if _, _, err := s.handleSetCapacity(context.Background(), nil, SetCapacityArgs{Capacity: 0}); err == nil {
		t.Error("accepted capacity 0")
	}

	res, _, err := s.handleSetCapacity(context.Background(), nil, SetCapacityArgs{Capacity: 5})
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); got != "Capacity set to 5" {
		t.Errorf("got %q", got)
	}
	if n := <-hub.Resizes(); n != 5 {
		t.Errorf("requested %d, want 5", n)
	}
}

func TestToolsOverSession(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := NewServer(Config{ServerVersion: "test"}, hubWith(soniox.Token{Text: "hello", IsFinal: true}))
	clientT, serverT := sdk.NewInMemoryTransports()
	ss, err := s.Connect(ctx, serverT)
	if err != nil {
		t.Fatal(err)
	}
	defer ss.Close()

	client := sdk.NewClient(&sdk.Implementation{Name: "test-client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, tool := range tools.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"get_subtitles", "get_status", "set_capacity"} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}

	res, err := cs.CallTool(ctx, &sdk.CallToolParams{Name: "get_subtitles", Arguments: map[string]any{}})
	if err != nil {
		t.Fatal(err)
	}
	if got := resultText(t, res); got != "hello" {
		t.Errorf("get_subtitles = %q", got)
	}
}
