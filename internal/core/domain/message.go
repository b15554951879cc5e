package domain

import "time"

// Message is a composed outbound message with content provenance tracking.
type Message struct {
	MessageID    string         `json:"message_id"`
	Content      string         `json:"content"`
	Subject      string         `json:"subject,omitempty"`
	Channel      string         `json:"channel"`
	CustomerID   string         `json:"customer_id,omitempty"`
	Provenance   map[string]any `json:"provenance,omitempty"`
	SafetyChecks map[string]any `json:"safety_checks,omitempty"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// ContentItem is a content template with provenance information.
type ContentItem struct {
	ContentID        string         `json:"content_id"`
	Template         string         `json:"template"`
	ContentType      string         `json:"content_type"`
	Channel          string         `json:"channel"`
	SegmentTargeting []string       `json:"segment_targeting,omitempty"`
	Provenance       map[string]any `json:"provenance,omitempty"`
	Metadata         map[string]any `json:"metadata,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
	Version          string         `json:"version"`
}
