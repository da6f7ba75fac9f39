// Package events defines the messages pushed to WebSocket clients when analysis results change.
package events

import (
	"time"

	"qcmpulse/pkg/contracts/domain"
)

// MessageType defines the type of WebSocket message
type MessageType string

const (
	MessageTypeConnection      MessageType = "connection"
	MessageTypeTableNormalized MessageType = "table:normalized"
	MessageTypeBaseline        MessageType = "baseline:located"
	MessageTypeStatistics      MessageType = "statistics:saved"
	MessageTypeModelFit        MessageType = "model:fitted"
	MessageTypeError           MessageType = "error"
)

// BaseMessage represents the base structure for all WebSocket messages
type BaseMessage struct {
	ID        string      `json:"id,omitempty"`
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// WebSocketMessage represents a complete WebSocket message
type WebSocketMessage struct {
	BaseMessage
	Data interface{} `json:"data,omitempty"`
}

// ConnectionEvent greets a newly registered client
type ConnectionEvent struct {
	Status   string `json:"status"`
	ClientID string `json:"client_id"`
	Version  string `json:"version"`
}

// TableNormalizedEvent announces a raw export that was turned into a canonical table
type TableNormalizedEvent struct {
	Source              string            `json:"source"`
	Output              string            `json:"output,omitempty"`
	Device              domain.DeviceKind `json:"device"`
	Rows                int               `json:"rows"`
	Overtones           []int             `json:"overtones"`
	PreviouslyFormatted bool              `json:"previously_formatted"`
}

// BaselineEvent announces a located baseline window
type BaselineEvent struct {
	Source string                `json:"source,omitempty"`
	Window domain.BaselineWindow `json:"window"`
}

// StatisticsEvent announces range statistics persisted for a range label
type StatisticsEvent struct {
	RangeLabel string `json:"range_label"`
	DataSource string `json:"data_source"`
	Format     string `json:"format"`
	Rows       int    `json:"rows"`
	Missing    int    `json:"missing,omitempty"`
}

// ModelFitEvent announces a finished model run
type ModelFitEvent struct {
	Result *domain.ModelFitResult `json:"result"`
	Output string                 `json:"output,omitempty"`
}

// ErrorEvent reports a failed operation
type ErrorEvent struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Operation   string `json:"operation"`
	Recoverable bool   `json:"recoverable"`
}
