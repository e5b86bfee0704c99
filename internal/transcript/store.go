// Package transcript folds recognition responses into the bounded set of
// subtitle blocks shown on screen.
package transcript

import (
	"time"
	"unicode/utf8"

	"github.com/emmett/sublive/internal/soniox"
)

const (
	// DefaultMaxBlocks is the number of final blocks kept on screen
	DefaultMaxBlocks = 3
	// DefaultSilenceTimeout clears the screen after this much silence
	DefaultSilenceTimeout = 15 * time.Second
	// MaxBlockRunes is the length past which a block stops growing
	MaxBlockRunes = 200
)

// Block is one speaker's run of text
type Block struct {
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
	Final   bool   `json:"final"`
}

// Option configures a Store
type Option func(*Store)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store holds committed final blocks and the live interim preview.
//
// Final blocks are kept oldest first and never exceed the capacity. The
// interim collection is rebuilt from scratch on every non-empty update.
// A Store is owned by a single goroutine; callers serialize access.
type Store struct {
	finals       []Block
	interim      []Block
	capacity     int
	lastActivity time.Time
	version      uint64
	now          func() time.Time
}

// NewStore creates a store keeping at most capacity final blocks
func NewStore(capacity int, opts ...Option) *Store {
	if capacity < 1 {
		capacity = 1
	}
	s := &Store{
		finals:   make([]Block, 0, capacity+1),
		capacity: capacity,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Update folds one response into the store. A response without tokens
// changes nothing.
func (s *Store) Update(resp *soniox.Response) {
	if resp == nil || len(resp.Tokens) == 0 {
		return
	}
	s.lastActivity = s.now()
	s.version++

	for _, tok := range resp.Tokens {
		if !tok.IsFinal || tok.TranslationStatus == soniox.TranslationOriginal {
			continue
		}
		s.appendFinal(tok.Speaker, tok.Text)
	}

	s.interim = s.interim[:0]
	for _, tok := range resp.Tokens {
		if tok.IsFinal || tok.TranslationStatus == soniox.TranslationOriginal {
			continue
		}
		s.appendInterim(tok.Speaker, tok.Text)
	}
}

func (s *Store) appendFinal(speaker, text string) {
	n := len(s.finals)
	if n == 0 || s.finals[n-1].Speaker != speaker || utf8.RuneCountInString(s.finals[n-1].Text) > MaxBlockRunes {
		s.finals = append(s.finals, Block{Speaker: speaker, Final: true})
		s.evict()
		n = len(s.finals)
	}
	s.finals[n-1].Text += text
}

// appendInterim keeps one interim block per speaker, ordered by the
// speaker's first token in the response.
func (s *Store) appendInterim(speaker, text string) {
	for i := range s.interim {
		if s.interim[i].Speaker == speaker {
			s.interim[i].Text += text
			return
		}
	}
	s.interim = append(s.interim, Block{Speaker: speaker, Text: text})
}

func (s *Store) evict() {
	if over := len(s.finals) - s.capacity; over > 0 {
		s.finals = append(s.finals[:0], s.finals[over:]...)
	}
}

// ClearIfSilent empties both collections once timeout has passed since
// the last non-empty update. It reports whether anything was cleared.
func (s *Store) ClearIfSilent(timeout time.Duration) bool {
	if s.lastActivity.IsZero() || s.now().Sub(s.lastActivity) < timeout {
		return false
	}
	s.Clear()
	return true
}

// Clear drops all blocks and marks the store inactive
func (s *Store) Clear() {
	s.finals = s.finals[:0]
	s.interim = s.interim[:0]
	s.lastActivity = time.Time{}
	s.version++
}

// Resize changes the capacity, evicting the oldest blocks if it shrank
func (s *Store) Resize(capacity int) {
	if capacity < 1 {
		capacity = 1
	}
	if capacity == s.capacity {
		return
	}
	s.capacity = capacity
	s.evict()
	s.version++
}

// Blocks returns a copy of the final blocks, oldest first
func (s *Store) Blocks() []Block {
	return append([]Block(nil), s.finals...)
}

// Interim returns a copy of the interim blocks
func (s *Store) Interim() []Block {
	return append([]Block(nil), s.interim...)
}

// Capacity returns the maximum number of final blocks
func (s *Store) Capacity() int {
	return s.capacity
}

// LastActivity returns when tokens last arrived. The zero time means the
// store is inactive.
func (s *Store) LastActivity() time.Time {
	return s.lastActivity
}

// Version increases on every mutation
func (s *Store) Version() uint64 {
	return s.version
}
