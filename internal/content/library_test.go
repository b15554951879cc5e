package content

import (
	"context"
	"testing"

	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/core/ports"
)

func retrieve(t *testing.T, l *Library, segment string) *ports.StageOutput {
	t.Helper()
	cust := domain.NewCustomerContext("c-1")
	cust.Segment = segment
	out, err := l.Process(context.Background(), &ports.StageInput{Context: cust})
	if err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	return out
}

func TestProcess_SegmentMatch(t *testing.T) {
	l := New()

	out := retrieve(t, l, "at_risk")

	if out.Content == nil {
		t.Fatal("expected content for at_risk segment")
	}
	if out.Content.ContentID != "engagement_boost" {
		t.Errorf("ContentID = %q, want engagement_boost", out.Content.ContentID)
	}
	if out.Context.Metadata["selected_content_id"] != "engagement_boost" {
		t.Errorf("selected_content_id = %v", out.Context.Metadata["selected_content_id"])
	}
}

func TestProcess_FallbackToDefault(t *testing.T) {
	l := New()

	out := retrieve(t, l, "some_unknown_segment")

	if out.Content == nil {
		t.Fatal("expected fallback content")
	}
	if out.Content.ContentID != "default_message" {
		t.Errorf("ContentID = %q, want default_message", out.Content.ContentID)
	}
}

func TestProcess_EmptySegmentTreatedAsDefault(t *testing.T) {
	l := New()

	out := retrieve(t, l, "")

	if out.Content == nil || out.Content.ContentID != "default_message" {
		t.Errorf("Content = %+v, want default_message", out.Content)
	}
}

func TestProcess_FirstMatchInInsertionOrder(t *testing.T) {
	l := New(
		&domain.ContentItem{
			ContentID:        "custom_at_risk",
			Template:         "Come back, {customer_name}!",
			SegmentTargeting: []string{"at_risk"},
		},
	)

	out := retrieve(t, l, "at_risk")

	// The default engagement_boost was inserted first and still wins.
	if out.Content.ContentID != "engagement_boost" {
		t.Errorf("ContentID = %q, want engagement_boost", out.Content.ContentID)
	}
}

func TestAddGetRemove(t *testing.T) {
	l := New()
	id := l.Add(&domain.ContentItem{
		ContentID: "spring_sale",
		Template:  "{customer_name}, spring savings are here.",
	})

	if id != "spring_sale" {
		t.Errorf("Add returned %q", id)
	}
	if _, ok := l.Get("spring_sale"); !ok {
		t.Error("Get(spring_sale) not found after Add")
	}
	if !l.Remove("spring_sale") {
		t.Error("Remove(spring_sale) = false")
	}
	if l.Remove("spring_sale") {
		t.Error("Remove(spring_sale) second call = true")
	}
}

func TestList_SegmentFilter(t *testing.T) {
	l := New()

	all := l.List("")
	if len(all) != 4 {
		t.Errorf("len(List()) = %d, want 4 defaults", len(all))
	}

	vip := l.List("high_value")
	if len(vip) != 1 || vip[0].ContentID != "vip_offer" {
		t.Errorf("List(high_value) = %v", vip)
	}
}

func TestProcess_EmitsAuditRecord(t *testing.T) {
	l := New()

	retrieve(t, l, "new_customer")

	log := l.AuditLog()
	if len(log) != 1 {
		t.Fatalf("len(AuditLog()) = %d, want 1", len(log))
	}
	if log[0].OutputSummary != "content_id=welcome_new" {
		t.Errorf("OutputSummary = %q", log[0].OutputSummary)
	}
}
