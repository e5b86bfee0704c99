package transcript

import (
	"strings"
	"time"
)

// Element is a run of text inside a replica
type Element struct {
	Text    string `json:"text"`
	Interim bool   `json:"interim,omitempty"`
}

// Replica is what a renderer draws for one speaker turn: neighbouring
// blocks of the same speaker joined together, finals before interims.
type Replica struct {
	Speaker  string    `json:"speaker,omitempty"`
	Elements []Element `json:"elements"`
}

// Text returns the replica's full text
func (r Replica) Text() string {
	var b strings.Builder
	for _, e := range r.Elements {
		b.WriteString(e.Text)
	}
	return b.String()
}

// FinalText returns only the committed part
func (r Replica) FinalText() string {
	var b strings.Builder
	for _, e := range r.Elements {
		if !e.Interim {
			b.WriteString(e.Text)
		}
	}
	return b.String()
}

// Snapshot is an immutable copy of a Store, safe to share between
// goroutines.
type Snapshot struct {
	Version      uint64    `json:"version"`
	Capacity     int       `json:"capacity"`
	LastActivity time.Time `json:"last_activity,omitzero"`
	Finals       []Block   `json:"finals"`
	Interim      []Block   `json:"interim"`
	Replicas     []Replica `json:"replicas"`
}

// Empty reports whether there is nothing to show
func (s Snapshot) Empty() bool {
	return len(s.Replicas) == 0
}

// Snapshot copies the current state
func (s *Store) Snapshot() Snapshot {
	return Snapshot{
		Version:      s.version,
		Capacity:     s.capacity,
		LastActivity: s.lastActivity,
		Finals:       s.Blocks(),
		Interim:      s.Interim(),
		Replicas:     s.Replicas(),
	}
}

// Replicas merges consecutive same-speaker blocks, finals first
func (s *Store) Replicas() []Replica {
	return buildReplicas(s.finals, s.interim)
}

func buildReplicas(finals, interim []Block) []Replica {
	var out []Replica
	add := func(b Block) {
		if b.Text == "" {
			return
		}
		el := Element{Text: b.Text, Interim: !b.Final}
		if n := len(out); n > 0 && out[n-1].Speaker == b.Speaker {
			out[n-1].Elements = append(out[n-1].Elements, el)
			return
		}
		out = append(out, Replica{Speaker: b.Speaker, Elements: []Element{el}})
	}
	for _, b := range finals {
		add(b)
	}
	for _, b := range interim {
		add(b)
	}
	return out
}
