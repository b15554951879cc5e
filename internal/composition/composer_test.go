package composition

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
)

func compose(t *testing.T, c *Composer, in *ports.StageInput) *domain.Message {
	t.Helper()
	out, err := c.Process(context.Background(), in)
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if out.Message == nil {
		t.Fatal("Process() returned nil message")
	}
	return out.Message
}

func TestProcess_Interpolation(t *testing.T) {
	c := New(BrandVoice{})
	cust := domain.NewCustomerContext("c-1")
	cust.Attributes["name"] = "Ada"
	cust.Segment = "high_value"

	msg := compose(t, c, &ports.StageInput{
		Context: cust,
		Content: &domain.ContentItem{
			ContentID: "vip_offer",
			Template:  "As a valued customer, {customer_name}, enjoy this exclusive offer.",
			Channel:   "email",
			Version:   "1.0",
			Provenance: map[string]any{
				"source": "default_library",
			},
		},
	})

	want := "As a valued customer, Ada, enjoy this exclusive offer."
	if msg.Content != want {
		t.Errorf("Content = %q, want %q", msg.Content, want)
	}
	if msg.Provenance["content_id"] != "vip_offer" {
		t.Errorf("provenance content_id = %v", msg.Provenance["content_id"])
	}
	if msg.Provenance["content_source"] != "default_library" {
		t.Errorf("provenance content_source = %v", msg.Provenance["content_source"])
	}
}

func TestProcess_AttributePlaceholders(t *testing.T) {
	c := New(BrandVoice{})
	cust := domain.NewCustomerContext("c-2")
	cust.Attributes["name"] = "Joan"
	cust.Attributes["city"] = "Lisbon"

	msg := compose(t, c, &ports.StageInput{
		Context: cust,
		Content: &domain.ContentItem{
			Template: "Hi {customer_name} from {city}, your id is {customer_id}.",
		},
	})

	want := "Hi Joan from Lisbon, your id is c-2."
	if msg.Content != want {
		t.Errorf("Content = %q, want %q", msg.Content, want)
	}
}

func TestProcess_UnknownPlaceholderLeftIntact(t *testing.T) {
	c := New(BrandVoice{})
	cust := domain.NewCustomerContext("c-3")

	msg := compose(t, c, &ports.StageInput{
		Context: cust,
		Content: &domain.ContentItem{Template: "Your code: {promo_code}"},
	})

	if !strings.Contains(msg.Content, "{promo_code}") {
		t.Errorf("Content = %q, want unresolved placeholder preserved", msg.Content)
	}
}

func TestProcess_FallbackWithoutContent(t *testing.T) {
	c := New(BrandVoice{})
	cust := domain.NewCustomerContext("c-4")

	msg := compose(t, c, &ports.StageInput{Context: cust})

	if !strings.Contains(msg.Content, "Valued Customer") {
		t.Errorf("Content = %q, want fallback greeting", msg.Content)
	}
	if msg.Provenance["content_source"] != "fallback" {
		t.Errorf("provenance content_source = %v", msg.Provenance["content_source"])
	}
	if msg.Channel != "email" {
		t.Errorf("Channel = %q, want email", msg.Channel)
	}
}

func TestProcess_BrandVoiceTruncation(t *testing.T) {
	c := New(BrandVoice{Tone: "friendly", Formality: "casual", MaxLength: 20})
	cust := domain.NewCustomerContext("c-5")
	cust.Attributes["name"] = "Aleksandra"

	msg := compose(t, c, &ports.StageInput{
		Context: cust,
		Content: &domain.ContentItem{
			Template: "Hello {customer_name}, this message is definitely too long to send.",
		},
	})

	if len(msg.Content) != 20 {
		t.Errorf("len(Content) = %d, want 20", len(msg.Content))
	}
	if !strings.HasSuffix(msg.Content, "...") {
		t.Errorf("Content = %q, want ellipsis suffix", msg.Content)
	}
}

func TestProcess_BrandVoiceTruncation_MultiByte(t *testing.T) {
	c := New(BrandVoice{Tone: "friendly", Formality: "casual", MaxLength: 20})
	cust := domain.NewCustomerContext("c-5b")
	cust.Attributes["name"] = strings.Repeat("é", 40)

	msg := compose(t, c, &ports.StageInput{
		Context: cust,
		Content: &domain.ContentItem{Template: "Hello {customer_name}"},
	})

	if !utf8.ValidString(msg.Content) {
		t.Fatalf("Content = %q, not valid UTF-8", msg.Content)
	}
	if got := utf8.RuneCountInString(msg.Content); got != 20 {
		t.Errorf("rune count = %d, want 20", got)
	}
	if !strings.HasSuffix(msg.Content, "...") {
		t.Errorf("Content = %q, want ellipsis suffix", msg.Content)
	}
}

func TestSetBrandVoice(t *testing.T) {
	c := New(BrandVoice{})
	c.SetBrandVoice(BrandVoice{Tone: "formal", Formality: "high", MaxLength: 10})

	cust := domain.NewCustomerContext("c-6")
	msg := compose(t, c, &ports.StageInput{
		Context: cust,
		Content: &domain.ContentItem{Template: "A very long announcement indeed"},
	})

	if len(msg.Content) != 10 {
		t.Errorf("len(Content) = %d, want 10 after SetBrandVoice", len(msg.Content))
	}
}

func TestProcess_EmitsAuditRecord(t *testing.T) {
	c := New(BrandVoice{})
	cust := domain.NewCustomerContext("c-7")

	msg := compose(t, c, &ports.StageInput{Context: cust})

	log := c.AuditLog()
	if len(log) != 1 {
		t.Fatalf("len(AuditLog()) = %d, want 1", len(log))
	}
	if log[0].Metadata["message_id"] != msg.MessageID {
		t.Errorf("audit metadata message_id = %v, want %s", log[0].Metadata["message_id"], msg.MessageID)
	}
}
