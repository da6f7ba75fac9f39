package websocket

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

type mockFrame struct {
	Type int
	Data []byte
}

// mockConnection serves queued frames to ReadMessage and records writes.
// Closing the reads channel ends the read loop with a going-away close.
type mockConnection struct {
	mu      sync.Mutex
	reads   chan mockFrame
	written []mockFrame
	closed  bool
	failOn  int
	limit   int64
}

func newMockConnection() *mockConnection {
	return &mockConnection{reads: make(chan mockFrame, 16)}
}

func (m *mockConnection) WriteMessage(messageType int, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return errors.New("connection closed")
	}
	if m.failOn > 0 && len(m.written)+1 == m.failOn {
		return errors.New("write failed")
	}
	m.written = append(m.written, mockFrame{Type: messageType, Data: data})
	return nil
}

func (m *mockConnection) ReadMessage() (int, []byte, error) {
	f, ok := <-m.reads
	if !ok {
		return 0, nil, &websocket.CloseError{Code: websocket.CloseGoingAway}
	}
	return f.Type, f.Data, nil
}

func (m *mockConnection) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConnection) SetReadDeadline(time.Time) error  { return nil }
func (m *mockConnection) SetWriteDeadline(time.Time) error { return nil }
func (m *mockConnection) SetPongHandler(func(string) error) {}

func (m *mockConnection) SetReadLimit(limit int64) {
	m.mu.Lock()
	m.limit = limit
	m.mu.Unlock()
}

func (m *mockConnection) RemoteAddr() string { return "127.0.0.1:50000" }

func (m *mockConnection) frames() []mockFrame {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mockFrame(nil), m.written...)
}

func (m *mockConnection) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
