// Package composition builds personalized outbound messages from content
// templates, customer attributes, and a brand voice configuration.
package composition

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/pulsecraft/pulsecraft/internal/audit"
	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
)

// fallbackName personalizes messages for customers without a name
// attribute. The safety stage flags it as under-personalized.
const fallbackName = "Valued Customer"

var placeholderPattern = regexp.MustCompile(`\{(\w+)\}`)

// BrandVoice constrains message styling.
type BrandVoice struct {
	Tone      string
	Formality string
	// MaxLength truncates composed content, in characters.
	MaxLength int
}

// DefaultBrandVoice returns the stock voice configuration.
func DefaultBrandVoice() BrandVoice {
	return BrandVoice{Tone: "friendly", Formality: "casual", MaxLength: 500}
}

// Composer is the message composition stage.
type Composer struct {
	*audit.Recorder
	voice BrandVoice
}

var _ ports.Stage = (*Composer)(nil)

// New creates a composer with the given voice; a zero-value voice falls
// back to the default.
func New(voice BrandVoice) *Composer {
	if voice == (BrandVoice{}) {
		voice = DefaultBrandVoice()
	}
	return &Composer{
		Recorder: audit.NewRecorder("MessageCompositionAgent"),
		voice:    voice,
	}
}

// SetBrandVoice replaces the voice configuration for future messages.
func (c *Composer) SetBrandVoice(voice BrandVoice) {
	c.voice = voice
}

// Process composes a message from the retrieved content. With no content
// available a generic fallback greeting is used so the pipeline still
// yields a message.
func (c *Composer) Process(_ context.Context, in *ports.StageInput) (*ports.StageOutput, error) {
	start := time.Now()
	cust := in.Context
	if cust == nil {
		return nil, fmt.Errorf("composition: nil customer context")
	}

	customerName := fallbackName
	if name, ok := cust.Attributes["name"].(string); ok && name != "" {
		customerName = name
	}

	segment := cust.Segment
	if segment == "" {
		segment = "default"
	}

	vars := map[string]string{
		"customer_name": customerName,
		"customer_id":   cust.CustomerID,
		"segment":       segment,
	}
	for k, v := range cust.Attributes {
		vars[k] = fmt.Sprint(v)
	}

	var (
		body       string
		channel    = "email"
		provenance map[string]any
		contentID  = "none"
	)
	if in.Content != nil {
		body = interpolate(in.Content.Template, vars)
		channel = in.Content.Channel
		contentID = in.Content.ContentID
		source := "unknown"
		if s, ok := in.Content.Provenance["source"].(string); ok {
			source = s
		}
		provenance = map[string]any{
			"content_id":      in.Content.ContentID,
			"content_version": in.Content.Version,
			"content_source":  source,
		}
	} else {
		body = fmt.Sprintf("Hi %s, thank you for being a valued customer!", customerName)
		provenance = map[string]any{
			"content_id":     nil,
			"content_source": "fallback",
		}
	}

	body = c.applyBrandVoice(body)

	msg := &domain.Message{
		MessageID:  uuid.New().String(),
		Content:    body,
		Channel:    channel,
		CustomerID: cust.CustomerID,
		Provenance: provenance,
		Metadata: map[string]any{
			"segment": cust.Segment,
			"brand_voice": map[string]any{
				"tone":       c.voice.Tone,
				"formality":  c.voice.Formality,
				"max_length": c.voice.MaxLength,
			},
		},
		CreatedAt: time.Now().UTC(),
	}

	c.Record(audit.Entry{
		InputSummary:  fmt.Sprintf("customer_id=%s, content_id=%s", cust.CustomerID, contentID),
		OutputSummary: fmt.Sprintf("message_id=%s, length=%d", msg.MessageID, utf8.RuneCountInString(body)),
		Duration:      time.Since(start),
		Metadata: map[string]any{
			"message_id":     msg.MessageID,
			"channel":        channel,
			"content_length": utf8.RuneCountInString(body),
		},
	})

	return &ports.StageOutput{Context: cust, Message: msg}, nil
}

// interpolate replaces known {placeholder} occurrences, leaving unknown
// placeholders intact for the safety stage to flag.
func interpolate(template string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		key := match[1 : len(match)-1]
		if v, ok := vars[key]; ok {
			return v
		}
		return match
	})
}

// applyBrandVoice truncates content over the configured maximum length.
// The limit counts runes, not bytes, so multi-byte content is never cut
// mid-character.
func (c *Composer) applyBrandVoice(body string) string {
	max := c.voice.MaxLength
	if max <= 0 || utf8.RuneCountInString(body) <= max {
		return body
	}
	if max <= 3 {
		return strings.Repeat(".", max)
	}
	return string([]rune(body)[:max-3]) + "..."
}
