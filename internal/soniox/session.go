package soniox

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	handshakeTimeout = 10 * time.Second
	writeTimeout     = 5 * time.Second
	frameBuffer      = 16
)

// FrameKind classifies an inbound frame
type FrameKind int

const (
	FrameText FrameKind = iota
	FrameBinary
	FramePing
	FramePong
	FrameClose
)

func (k FrameKind) String() string {
	switch k {
	case FrameText:
		return "text"
	case FrameBinary:
		return "binary"
	case FramePing:
		return "ping"
	case FramePong:
		return "pong"
	case FrameClose:
		return "close"
	default:
		return "unknown"
	}
}

// Frame is one inbound WebSocket frame
type Frame struct {
	Kind FrameKind
	Data []byte
	// CloseCode is set for FrameClose
	CloseCode int
}

// Session is a thin duplex wrapper around one WebSocket connection.
// It has no reconnect policy: once the connection ends, Frames is closed
// and Err reports why.
//
// SendText and SendBytes must be called from a single goroutine.
// SendPong and Close may be called from any goroutine.
type Session struct {
	conn      *websocket.Conn
	frames    chan Frame
	done      chan struct{}
	closeOnce sync.Once
	mu        sync.Mutex
	err       error
}

// Dial connects to url and returns a session for the connection
func Dial(ctx context.Context, url string) (*Session, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshakeTimeout,
	}
	conn, resp, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			return nil, fmt.Errorf("failed to connect to %s (status %d): %w", url, resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	return NewSession(conn), nil
}

// NewSession wraps an established connection and starts its reader
func NewSession(conn *websocket.Conn) *Session {
	s := &Session{
		conn:   conn,
		frames: make(chan Frame, frameBuffer),
		done:   make(chan struct{}),
	}
	// Control frames are surfaced to the owner instead of being answered here.
	conn.SetPingHandler(func(appData string) error {
		s.deliver(Frame{Kind: FramePing, Data: []byte(appData)})
		return nil
	})
	conn.SetPongHandler(func(appData string) error {
		s.deliver(Frame{Kind: FramePong, Data: []byte(appData)})
		return nil
	})
	go s.readLoop()
	return s
}

func (s *Session) readLoop() {
	defer close(s.frames)
	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				s.deliver(Frame{Kind: FrameClose, Data: []byte(ce.Text), CloseCode: ce.Code})
			}
			s.setErr(err)
			return
		}
		f := Frame{Kind: FrameText, Data: data}
		if kind == websocket.BinaryMessage {
			f.Kind = FrameBinary
		}
		if !s.deliver(f) {
			s.setErr(ErrSessionClosed)
			return
		}
	}
}

func (s *Session) deliver(f Frame) bool {
	select {
	case s.frames <- f:
		return true
	case <-s.done:
		return false
	}
}

func (s *Session) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}

// Frames returns inbound frames in arrival order. The channel is closed
// when the connection ends.
func (s *Session) Frames() <-chan Frame {
	return s.frames
}

// Err returns the error that ended the connection, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// RecvMessage waits for the next inbound frame
func (s *Session) RecvMessage(ctx context.Context) (Frame, error) {
	select {
	case f, ok := <-s.frames:
		if !ok {
			if err := s.Err(); err != nil {
				return Frame{}, err
			}
			return Frame{}, io.EOF
		}
		return f, nil
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	}
}

// SendText sends a text frame
func (s *Session) SendText(data []byte) error {
	return s.write(websocket.TextMessage, data)
}

// SendBytes sends a binary frame. An empty frame signals end of audio.
func (s *Session) SendBytes(data []byte) error {
	return s.write(websocket.BinaryMessage, data)
}

// SendPong answers a ping with the same payload
func (s *Session) SendPong(data []byte) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	return s.conn.WriteControl(websocket.PongMessage, data, time.Now().Add(writeTimeout))
}

func (s *Session) write(kind int, data []byte) error {
	if s.isClosed() {
		return ErrSessionClosed
	}
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(kind, data)
}

func (s *Session) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// Close sends a normal close frame and tears the connection down
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = s.conn.Close()
	})
	return err
}
