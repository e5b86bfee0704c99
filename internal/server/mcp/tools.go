package mcp

import (
	"context"
	"fmt"
	"strings"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/emmett/sublive/internal/output"
	"github.com/emmett/sublive/internal/transcript"
)

type GetSubtitlesArgs struct{}

type GetStatusArgs struct{}

type SetCapacityArgs struct {
	Capacity int `json:"capacity" jsonschema:"number of final subtitle blocks to keep, at least 1"`
}

func (s *Server) handleGetSubtitles(ctx context.Context, req *sdk.CallToolRequest, args GetSubtitlesArgs) (*sdk.CallToolResult, any, error) {
	snap := s.hub.Snapshot()
	if snap.Empty() {
		return textResult("(no subtitles)"), nil, nil
	}

	lines := make([]string, 0, len(snap.Replicas))
	for _, r := range snap.Replicas {
		lines = append(lines, formatReplica(r))
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

// formatReplica renders one speaker turn as plain text
func formatReplica(r transcript.Replica) string {
	var b strings.Builder
	if label := output.SpeakerLabel(r.Speaker); label != "" {
		b.WriteString(label)
		b.WriteString(": ")
	}
	var interim strings.Builder
	for _, e := range r.Elements {
		if e.Interim {
			interim.WriteString(e.Text)
		} else {
			b.WriteString(e.Text)
		}
	}
	if interim.Len() > 0 {
		b.WriteString(interim.String())
		b.WriteString("…")
	}
	return strings.TrimSpace(output.Prettify(b.String()))
}

func (s *Server) handleGetStatus(ctx context.Context, req *sdk.CallToolRequest, args GetStatusArgs) (*sdk.CallToolResult, any, error) {
	st := s.hub.Status()
	snap := s.hub.Snapshot()

	lines := []string{
		fmt.Sprintf("Status: %s", st.Status),
	}
	if st.Message != "" {
		lines = append(lines, fmt.Sprintf("Message: %s", st.Message))
	}
	lines = append(lines,
		fmt.Sprintf("Since: %s", st.Since.Format(time.RFC3339)),
		fmt.Sprintf("Capacity: %d", snap.Capacity),
		fmt.Sprintf("Final blocks: %d", len(snap.Finals)),
	)
	if snap.LastActivity.IsZero() {
		lines = append(lines, "Last activity: none")
	} else {
		lines = append(lines, fmt.Sprintf("Last activity: %s", snap.LastActivity.Format(time.RFC3339)))
	}
	return textResult(strings.Join(lines, "\n")), nil, nil
}

func (s *Server) handleSetCapacity(ctx context.Context, req *sdk.CallToolRequest, args SetCapacityArgs) (*sdk.CallToolResult, any, error) {
	if err := s.hub.RequestCapacity(args.Capacity); err != nil {
		return nil, nil, fmt.Errorf("failed to set capacity: %w", err)
	}
	return textResult(fmt.Sprintf("Capacity set to %d", args.Capacity)), nil, nil
}

func textResult(text string) *sdk.CallToolResult {
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: text}},
	}
}
