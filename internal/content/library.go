// Package content retrieves message templates for a customer's segment
// from an in-memory library with provenance tracking.
package content

import (
	"context"
	"fmt"
	"time"

	"github.com/pulsecraft/pulsecraft/internal/audit"
	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
)

// fallbackContentID is served when nothing targets the segment.
const fallbackContentID = "default_message"

// Library is the content retrieval stage. Items are scanned in insertion
// order so segment matches are deterministic.
type Library struct {
	*audit.Recorder
	items []*domain.ContentItem
	byID  map[string]*domain.ContentItem
}

var _ ports.Stage = (*Library)(nil)

// New creates a library seeded with the default templates plus any extra
// items supplied by the caller. Caller items with ids colliding with the
// defaults replace them.
func New(items ...*domain.ContentItem) *Library {
	l := &Library{
		Recorder: audit.NewRecorder("ContentRetrievalAgent"),
		byID:     make(map[string]*domain.ContentItem),
	}
	for _, item := range defaultItems() {
		l.Add(item)
	}
	for _, item := range items {
		l.Add(item)
	}
	return l
}

func defaultItems() []*domain.ContentItem {
	provenance := map[string]any{"source": "default_library", "author": "system"}
	now := time.Now().UTC()
	return []*domain.ContentItem{
		{
			ContentID:        "welcome_new",
			Template:         "Welcome to our family, {customer_name}! We're excited to have you.",
			ContentType:      "greeting",
			Channel:          "email",
			SegmentTargeting: []string{"new_customer"},
			Provenance:       provenance,
			CreatedAt:        now,
			Version:          "1.0",
		},
		{
			ContentID:        "engagement_boost",
			Template:         "Hi {customer_name}, we miss you! Check out what's new.",
			ContentType:      "re-engagement",
			Channel:          "email",
			SegmentTargeting: []string{"at_risk"},
			Provenance:       provenance,
			CreatedAt:        now,
			Version:          "1.0",
		},
		{
			ContentID:        "vip_offer",
			Template:         "As a valued customer, {customer_name}, enjoy this exclusive offer.",
			ContentType:      "promotion",
			Channel:          "email",
			SegmentTargeting: []string{"high_value"},
			Provenance:       provenance,
			CreatedAt:        now,
			Version:          "1.0",
		},
		{
			ContentID:        fallbackContentID,
			Template:         "Hi {customer_name}, thanks for being with us!",
			ContentType:      "general",
			Channel:          "email",
			SegmentTargeting: []string{"default"},
			Provenance:       provenance,
			CreatedAt:        now,
			Version:          "1.0",
		},
	}
}

// Process selects the first item targeting the customer's segment, falling
// back to the default message, and annotates the context with the choice.
func (l *Library) Process(_ context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	start := time.Now()
	cust := in.Context
	if cust == nil {
		return nil, fmt.Errorf("content: nil customer context")
	}

	segment := cust.Segment
	if segment == "" {
		segment = "default"
	}

	var selected *domain.ContentItem
	for _, item := range l.items {
		if targets(item, segment) {
			selected = item
			break
		}
	}
	if selected == nil {
		selected = l.byID[fallbackContentID]
	}

	outputSummary := "content_id=none"
	meta := map[string]any{"segment": segment}
	if selected != nil {
		cust.Metadata["selected_content_id"] = selected.ContentID
		cust.Metadata["content_provenance"] = selected.Provenance
		outputSummary = fmt.Sprintf("content_id=%s", selected.ContentID)
		meta["content_id"] = selected.ContentID
	}

	l.Record(audit.Entry{
		InputSummary:  fmt.Sprintf("customer_id=%s, segment=%s", cust.CustomerID, segment),
		OutputSummary: outputSummary,
		Duration:      time.Since(start),
		Metadata:      meta,
	})

	return &ports.StageOutput{Context: cust, Content: selected}, nil
}

// Add inserts or replaces an item, returning its id. Replacement keeps the
// original scan position.
func (l *Library) Add(item *domain.ContentItem) string {
	if existing, ok := l.byID[item.ContentID]; ok {
		*existing = *item
		l.byID[item.ContentID] = existing
		return item.ContentID
	}
	l.items = append(l.items, item)
	l.byID[item.ContentID] = item
	return item.ContentID
}

// Get returns an item by id.
func (l *Library) Get(contentID string) (*domain.ContentItem, bool) {
	item, ok := l.byID[contentID]
	return item, ok
}

// Remove deletes an item by id, reporting whether it existed.
func (l *Library) Remove(contentID string) bool {
	if _, ok := l.byID[contentID]; !ok {
		return false
	}
	delete(l.byID, contentID)
	for i, item := range l.items {
		if item.ContentID == contentID {
			l.items = append(l.items[:i], l.items[i+1:]...)
			break
		}
	}
	return true
}

// List returns items in scan order, optionally filtered by the segment
// they target (empty segment matches all).
func (l *Library) List(segment string) []*domain.ContentItem {
	out := make([]*domain.ContentItem, 0, len(l.items))
	for _, item := range l.items {
		if segment != "" && !targets(item, segment) {
			continue
		}
		out = append(out, item)
	}
	return out
}

func targets(item *domain.ContentItem, segment string) bool {
	for _, s := range item.SegmentTargeting {
		if s == segment {
			return true
		}
	}
	return false
}
