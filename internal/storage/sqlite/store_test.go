package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pulsecraft/pulsecraft/internal/core/domain"
	"github.com/pulsecraft/pulsecraft/internal/storage"
)

var dbCounter atomic.Int64

// newTestStore opens a uniquely named shared in-memory database so tests
// stay isolated without touching the filesystem.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:memdb%d?mode=memory&cache=shared", dbCounter.Add(1))
	store, err := New(dsn)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSaveAndGetRun(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	want := &domain.PipelineResult{
		PipelineID:   "p-1",
		CustomerID:   "c-1",
		IsSuccess:    true,
		IsSafeToSend: true,
		Segment:      "high_value",
		PropensityScores: map[string]float64{
			"churn_propensity": 0.25,
		},
		Message: &domain.Message{
			MessageID:  "m-1",
			CustomerID: "c-1",
			Content:    "Hi Ada, thanks for being with us!",
		},
		CreatedAt: time.Now().UTC().Truncate(time.Second),
	}
	if err := store.SaveRun(ctx, want); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	got, err := store.GetRun(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.CustomerID != "c-1" || got.Segment != "high_value" || !got.IsSuccess {
		t.Errorf("GetRun() = %+v, want saved fields back", got)
	}
	if got.PropensityScores["churn_propensity"] != 0.25 {
		t.Errorf("PropensityScores = %v, want churn_propensity 0.25", got.PropensityScores)
	}
	// The composed message survives the JSON round trip in flattened form.
	if got.Message == nil {
		t.Fatal("Message = nil after round trip")
	}
	if got.Message.MessageID != "m-1" || got.Message.Content != want.Message.Content {
		t.Errorf("Message = %+v, want id m-1 with original content", got.Message)
	}
}

func TestGetRun_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRun(context.Background(), "missing")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("GetRun() error = %v, want ErrNotFound", err)
	}
}

func TestListRuns_NewestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, id := range []string{"p-1", "p-2", "p-3"} {
		err := store.SaveRun(ctx, &domain.PipelineResult{
			PipelineID: id,
			CustomerID: "c-1",
			CreatedAt:  base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("SaveRun(%s) error = %v", id, err)
		}
	}

	summaries, err := store.ListRuns(ctx)
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(summaries) != 3 {
		t.Fatalf("len(summaries) = %d, want 3", len(summaries))
	}
	for i, want := range []string{"p-3", "p-2", "p-1"} {
		if summaries[i].PipelineID != want {
			t.Errorf("summaries[%d].PipelineID = %q, want %q", i, summaries[i].PipelineID, want)
		}
	}
}

func TestListRuns_Empty(t *testing.T) {
	store := newTestStore(t)

	summaries, err := store.ListRuns(context.Background())
	if err != nil {
		t.Fatalf("ListRuns() error = %v", err)
	}
	if len(summaries) != 0 {
		t.Errorf("len(summaries) = %d, want 0", len(summaries))
	}
}

func TestSaveRun_Upsert(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	run := &domain.PipelineResult{PipelineID: "p-1", CustomerID: "c-1", CreatedAt: time.Now().UTC()}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() error = %v", err)
	}

	run.Segment = "engaged"
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("SaveRun() second write error = %v", err)
	}

	got, err := store.GetRun(ctx, "p-1")
	if err != nil {
		t.Fatalf("GetRun() error = %v", err)
	}
	if got.Segment != "engaged" {
		t.Errorf("Segment = %q, want updated value", got.Segment)
	}

	summaries, _ := store.ListRuns(ctx)
	if len(summaries) != 1 {
		t.Errorf("len(summaries) = %d after upsert, want 1", len(summaries))
	}
}
