package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-inbox/core"
)

func strPtr(value string) *string { return &value }

func statusPtr(value core.MessageStatus) *core.MessageStatus { return &value }

func TestStore_CreateOrMergeIsIdempotentByProviderID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()

	first, err := store.CreateOrMerge(ctx, core.MessageFields{
		ProviderID: "MSG-1",
		Direction:  core.DirectionInbound,
		From:       strPtr("551100"),
		Type:       strPtr("text"),
		Body:       map[string]any{"content": "hi"},
		Status:     statusPtr(core.StatusReceived),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := store.CreateOrMerge(ctx, core.MessageFields{
		ProviderID: "MSG-1",
		Direction:  core.DirectionOutbound,
		To:         strPtr("551199"),
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("expected one record, got ids %q and %q", first.ID, second.ID)
	}
	if second.Direction != core.DirectionInbound {
		t.Fatalf("direction must not change on merge, got %q", second.Direction)
	}
	if second.From != "551100" || second.To != "551199" || second.Body["content"] != "hi" {
		t.Fatalf("expected absent fields untouched, got %#v", second)
	}
	page, _ := store.List(ctx, core.MessageFilter{})
	if page.Total != 1 {
		t.Fatalf("expected a single stored record, got %d", page.Total)
	}
}

func TestStore_CreateOrMergeRequiresProviderID(t *testing.T) {
	_, err := NewStore().CreateOrMerge(context.Background(), core.MessageFields{Direction: core.DirectionInbound})
	if core.ErrorKindOf(err) != core.ErrorKindValidation {
		t.Fatalf("expected precondition failure, got %v", err)
	}
}

func TestStore_ConcurrentCreateOrMergeProducesOneRecord(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = store.CreateOrMerge(ctx, core.MessageFields{ProviderID: "MSG-RACE", Direction: core.DirectionInbound})
		}()
	}
	wg.Wait()
	page, _ := store.List(ctx, core.MessageFilter{ProviderID: "MSG-RACE"})
	if page.Total != 1 {
		t.Fatalf("expected exactly one record, got %d", page.Total)
	}
}

func TestStore_UpdateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if _, found, err := store.FindByProviderID(ctx, "missing"); err != nil || found {
		t.Fatalf("expected clean miss, got found=%v err=%v", found, err)
	}
	created, _ := store.CreateOrMerge(ctx, core.MessageFields{ProviderID: "GS-1", Direction: core.DirectionOutbound})

	ok, err := store.Update(ctx, created.ID, core.MessageUpdate{
		Status:    statusPtr(core.StatusFailed),
		ErrorCode: strPtr("ERR001"),
	})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	found, exists, _ := store.FindByProviderID(ctx, "GS-1")
	if !exists || found.Status != core.StatusFailed || found.ErrorCode != "ERR001" {
		t.Fatalf("unexpected updated record %#v", found)
	}
	if ok, _ := store.Update(ctx, "nope", core.MessageUpdate{}); ok {
		t.Fatalf("expected update of unknown id to report false")
	}
}

func TestStore_ListFiltersAndOrders(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2025, 3, 14, 10, 0, 0, 0, time.UTC)
	store := NewStore().WithClock(func() time.Time { return clock })

	for _, id := range []string{"a", "b", "c"} {
		direction := core.DirectionInbound
		if id == "b" {
			direction = core.DirectionOutbound
		}
		if _, err := store.CreateOrMerge(ctx, core.MessageFields{ProviderID: id, Direction: direction}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
		clock = clock.Add(time.Hour)
	}

	page, err := store.List(ctx, core.MessageFilter{Direction: core.DirectionInbound})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 2 || page.Items[0].ProviderID != "c" || page.Items[1].ProviderID != "a" {
		t.Fatalf("expected inbound records newest first, got %#v", page.Items)
	}

	day := time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC)
	page, _ = store.List(ctx, core.MessageFilter{CreatedOn: &day})
	if page.Total != 0 {
		t.Fatalf("expected no records on another day, got %d", page.Total)
	}

	page, _ = store.List(ctx, core.MessageFilter{Page: 2, PerPage: 2})
	if len(page.Items) != 1 || page.LastPage != 2 || page.HasNext {
		t.Fatalf("unexpected second page %#v", page)
	}
}

func TestStore_ListPastLastPageReturnsEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	if _, err := store.CreateOrMerge(ctx, core.MessageFields{ProviderID: "a", Direction: core.DirectionInbound}); err != nil {
		t.Fatalf("create: %v", err)
	}

	page, err := store.List(ctx, core.MessageFilter{Page: 5, PerPage: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 0 || page.Total != 1 {
		t.Fatalf("expected empty page with total 1, got %#v", page)
	}

	page, err = store.List(ctx, core.MessageFilter{Page: 1229782938247303442, PerPage: 15})
	if err != nil {
		t.Fatalf("list huge page: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected total 1 for huge page, got %d", page.Total)
	}
}

func TestStore_SoftDeleteFreesProviderID(t *testing.T) {
	ctx := context.Background()
	store := NewStore()
	created, _ := store.CreateOrMerge(ctx, core.MessageFields{ProviderID: "p", Direction: core.DirectionInbound})
	if err := store.SoftDelete(ctx, created.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := store.Get(ctx, created.ID); core.ErrorKindOf(err) != core.ErrorKindNotFound {
		t.Fatalf("expected deleted record to be hidden, got %v", err)
	}
	if err := store.SoftDelete(ctx, created.ID); core.ErrorKindOf(err) != core.ErrorKindNotFound {
		t.Fatalf("expected second delete to report not found, got %v", err)
	}
	recreated, _ := store.CreateOrMerge(ctx, core.MessageFields{ProviderID: "p", Direction: core.DirectionInbound})
	if recreated.ID == created.ID {
		t.Fatalf("expected a new live record after soft delete")
	}
}
