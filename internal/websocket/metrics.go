package websocket

import (
	"sync"
	"time"
)

// durationWindow is how many recent connection durations feed the average
const durationWindow = 100

// Metrics tracks hub and client activity
type Metrics struct {
	mu sync.RWMutex

	totalConnections  int64
	activeConnections int64
	maxConcurrent     int64
	connectionTimes   []time.Duration

	messagesSent     int64
	messagesReceived int64
	bytesSent        int64
	bytesReceived    int64
	messageErrors    int64
	droppedMessages  int64

	avgQueueDepth int64
	maxQueueDepth int64

	errorsByType map[string]int64
	since        time.Time
}

// Snapshot is a point-in-time copy of Metrics, shaped for the health endpoint
type Snapshot struct {
	TotalConnections  int64            `json:"total_connections"`
	ActiveConnections int64            `json:"active_connections"`
	MaxConcurrent     int64            `json:"max_concurrent"`
	AvgConnectionMs   int64            `json:"avg_connection_ms"`
	MessagesSent      int64            `json:"messages_sent"`
	MessagesReceived  int64            `json:"messages_received"`
	BytesSent         int64            `json:"bytes_sent"`
	BytesReceived     int64            `json:"bytes_received"`
	MessageErrors     int64            `json:"message_errors"`
	DroppedMessages   int64            `json:"dropped_messages"`
	AvgQueueDepth     int64            `json:"avg_queue_depth"`
	MaxQueueDepth     int64            `json:"max_queue_depth"`
	Errors            map[string]int64 `json:"errors,omitempty"`
	UptimeSeconds     float64          `json:"uptime_seconds"`
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		errorsByType:    make(map[string]int64),
		since:           time.Now(),
		connectionTimes: make([]time.Duration, 0, durationWindow),
	}
}

// RecordConnection records a new connection
func (m *Metrics) RecordConnection() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totalConnections++
	m.activeConnections++
	if m.activeConnections > m.maxConcurrent {
		m.maxConcurrent = m.activeConnections
	}
}

// RecordDisconnection records a disconnection
func (m *Metrics) RecordDisconnection(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.activeConnections > 0 {
		m.activeConnections--
	}
	m.connectionTimes = append(m.connectionTimes, duration)
	if len(m.connectionTimes) > durationWindow {
		m.connectionTimes = m.connectionTimes[1:]
	}
}

// RecordMessage records one message in the given direction ("sent" or "received")
func (m *Metrics) RecordMessage(direction string, size int64, success bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch direction {
	case "sent":
		m.messagesSent++
		m.bytesSent += size
	case "received":
		m.messagesReceived++
		m.bytesReceived += size
	}
	if !success {
		m.messageErrors++
	}
}

// RecordError records an error by type
func (m *Metrics) RecordError(errorType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorsByType[errorType]++
}

// RecordQueueDepth records the broadcast queue depth after a publish
func (m *Metrics) RecordQueueDepth(depth int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if depth > m.maxQueueDepth {
		m.maxQueueDepth = depth
	}
	if m.avgQueueDepth == 0 {
		m.avgQueueDepth = depth
	} else {
		m.avgQueueDepth = (m.avgQueueDepth*9 + depth) / 10
	}
}

// RecordDroppedMessage records a dropped message
func (m *Metrics) RecordDroppedMessage() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.droppedMessages++
}

// GetSnapshot returns a copy of the current counters
func (m *Metrics) GetSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var avg time.Duration
	if n := len(m.connectionTimes); n > 0 {
		var total time.Duration
		for _, d := range m.connectionTimes {
			total += d
		}
		avg = total / time.Duration(n)
	}

	var errs map[string]int64
	if len(m.errorsByType) > 0 {
		errs = make(map[string]int64, len(m.errorsByType))
		for k, v := range m.errorsByType {
			errs[k] = v
		}
	}

	return Snapshot{
		TotalConnections:  m.totalConnections,
		ActiveConnections: m.activeConnections,
		MaxConcurrent:     m.maxConcurrent,
		AvgConnectionMs:   avg.Milliseconds(),
		MessagesSent:      m.messagesSent,
		MessagesReceived:  m.messagesReceived,
		BytesSent:         m.bytesSent,
		BytesReceived:     m.bytesReceived,
		MessageErrors:     m.messageErrors,
		DroppedMessages:   m.droppedMessages,
		AvgQueueDepth:     m.avgQueueDepth,
		MaxQueueDepth:     m.maxQueueDepth,
		Errors:            errs,
		UptimeSeconds:     time.Since(m.since).Seconds(),
	}
}
