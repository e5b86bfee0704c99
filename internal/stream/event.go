package stream

import (
	"fmt"

	"github.com/emmett/sublive/internal/soniox"
)

// EventKind tags a Stream Event
type EventKind int

const (
	// EventConnected is sent once, the first time a session becomes active
	EventConnected EventKind = iota
	// EventResponse carries a recognition response
	EventResponse
	// EventWarning reports a transient problem the worker is recovering from
	EventWarning
	// EventError reports a fatal error; the worker stops after sending it
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventResponse:
		return "response"
	case EventWarning:
		return "warning"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is what the worker hands to the display layer
type Event struct {
	Kind     EventKind
	Response *soniox.Response
	Message  string
	Err      error
}

func (e Event) String() string {
	switch e.Kind {
	case EventResponse:
		if e.Response == nil {
			return "response"
		}
		return fmt.Sprintf("response (%d tokens)", len(e.Response.Tokens))
	case EventError:
		return fmt.Sprintf("error: %v", e.Err)
	case EventWarning:
		return "warning: " + e.Message
	default:
		return e.Kind.String()
	}
}
