// Package pubsub fans analysis events out to report viewers.
package pubsub

import (
	"context"
	"encoding/json"
)

// Topics published by the analysis runner
const (
	TopicAnalysis = "analysis_status"
	TopicReport   = "report"
)

// Event is one published message
type Event struct {
	Topic   string          `json:"topic"`
	Type    string          `json:"type"` // e.g. "scanning", "ready", "error"
	Data    json.RawMessage `json:"data"`
	Version int             `json:"version"` // per-topic sequence number
}

// Subscription receives the events of one topic
type Subscription interface {
	Topic() string
	Events() <-chan Event
	Close() error
}

// Publisher manages subscriptions and publishing
type Publisher interface {
	// Subscribe creates a subscription that is closed when ctx is done
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish marshals data and sends it to all subscribers of topic
	Publish(topic string, eventType string, data any) error

	Close() error
}

// AnalysisStatus is the payload of TopicAnalysis
type AnalysisStatus struct {
	State   string `json:"state"` // extracting, scanning, correlating, writing, ready, error
	Message string `json:"message"`
	Step    int    `json:"step"`
	Total   int    `json:"total"`
}

// ReportStatus is the payload of TopicReport, sent after a report is written
type ReportStatus struct {
	Path       string `json:"path"`
	Pages      int    `json:"pages"`
	Buttons    int    `json:"buttons"`
	Edges      int    `json:"edges"`
	Unresolved int    `json:"unresolved"`
}
