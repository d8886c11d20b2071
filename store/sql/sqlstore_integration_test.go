package sqlstore_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-inbox/core"
	"github.com/goliatone/go-inbox/ingest"
	inboxmigrations "github.com/goliatone/go-inbox/migrations"
	sqlstore "github.com/goliatone/go-inbox/store/sql"
	persistence "github.com/goliatone/go-persistence-bun"
	_ "github.com/mattn/go-sqlite3"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type testPersistenceConfig struct {
	driver string
	server string
}

func (c testPersistenceConfig) GetDebug() bool {
	return false
}

func (c testPersistenceConfig) GetDriver() string {
	return c.driver
}

func (c testPersistenceConfig) GetServer() string {
	return c.server
}

func (c testPersistenceConfig) GetPingTimeout() time.Duration {
	return time.Second
}

func (c testPersistenceConfig) GetOtelIdentifier() string {
	return "go-inbox-tests"
}

func TestMigrationSmokeApplySQLite(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	var tableName string
	if err := client.DB().NewRaw(
		"SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?",
		"messages",
	).Scan(context.Background(), &tableName); err != nil {
		t.Fatalf("query sqlite master: %v", err)
	}
	if tableName != "messages" {
		t.Fatalf("expected messages table, got %q", tableName)
	}
}

func TestMessageStore_CreateOrMergeKeepsOneRecord(t *testing.T) {
	ctx := context.Background()
	store := newMessageStore(t)

	first, err := store.CreateOrMerge(ctx, core.MessageFields{
		ProviderID: "MSG-1",
		Direction:  core.DirectionInbound,
		From:       strPtr("55999999999"),
		To:         strPtr("5511999999999"),
		Type:       strPtr("text"),
		Body:       map[string]any{"content": "Olá mundo"},
		Status:     statusPtr(core.StatusReceived),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if first.ID == "" || first.Body["content"] != "Olá mundo" || first.From != "55999999999" {
		t.Fatalf("unexpected created record %#v", first)
	}

	second, err := store.CreateOrMerge(ctx, core.MessageFields{
		ProviderID: "MSG-1",
		Direction:  core.DirectionOutbound,
		Type:       strPtr("image"),
	})
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("expected merge into %q, got %q", first.ID, second.ID)
	}
	if second.Direction != core.DirectionInbound {
		t.Fatalf("direction must not change on merge, got %q", second.Direction)
	}
	if second.Type != "image" || second.From != "55999999999" || second.Body["content"] != "Olá mundo" {
		t.Fatalf("expected only present fields to change, got %#v", second)
	}

	page, err := store.List(ctx, core.MessageFilter{ProviderID: "MSG-1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if page.Total != 1 {
		t.Fatalf("expected one record for provider id, got %d", page.Total)
	}
}

func TestMessageStore_ConcurrentCreateOrMerge(t *testing.T) {
	ctx := context.Background()
	store := newMessageStore(t)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.CreateOrMerge(ctx, core.MessageFields{
				ProviderID: "MSG-RACE",
				Direction:  core.DirectionInbound,
				Body:       map[string]any{"attempt": float64(i)},
			})
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent create or merge: %v", err)
		}
	}
	page, _ := store.List(ctx, core.MessageFilter{ProviderID: "MSG-RACE"})
	if page.Total != 1 {
		t.Fatalf("expected a single record, got %d", page.Total)
	}
}

func TestMessageStore_UpdateGetAndSoftDelete(t *testing.T) {
	ctx := context.Background()
	store := newMessageStore(t)

	created, err := store.CreateOrMerge(ctx, core.MessageFields{
		ProviderID: "GS-555",
		Direction:  core.DirectionOutbound,
		Body:       map[string]any{"foo": "bar"},
		Status:     statusPtr(core.StatusEnqueued),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	ok, err := store.Update(ctx, created.ID, core.MessageUpdate{
		Status: statusPtr(core.StatusRead),
		Body:   core.MergeBody(created.Body, map[string]any{"read_at": float64(123456)}),
	})
	if err != nil || !ok {
		t.Fatalf("update: ok=%v err=%v", ok, err)
	}
	got, err := store.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != core.StatusRead || got.Body["read_at"] != float64(123456) || got.Body["foo"] != "bar" {
		t.Fatalf("unexpected updated record %#v", got)
	}

	if ok, err := store.Update(ctx, "00000000-0000-0000-0000-000000000000", core.MessageUpdate{Status: statusPtr(core.StatusRead)}); err != nil || ok {
		t.Fatalf("expected no-op update for unknown id, ok=%v err=%v", ok, err)
	}

	if err := store.SoftDelete(ctx, created.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := store.Get(ctx, created.ID); core.ErrorKindOf(err) != core.ErrorKindNotFound {
		t.Fatalf("expected not found after soft delete, got %v", err)
	}
	if _, found, _ := store.FindByProviderID(ctx, "GS-555"); found {
		t.Fatalf("expected deleted record to be hidden from provider lookups")
	}
	if ok, _ := store.Update(ctx, created.ID, core.MessageUpdate{Status: statusPtr(core.StatusFailed)}); ok {
		t.Fatalf("expected deleted record to reject updates")
	}
	recreated, err := store.CreateOrMerge(ctx, core.MessageFields{ProviderID: "GS-555", Direction: core.DirectionOutbound})
	if err != nil {
		t.Fatalf("recreate after soft delete: %v", err)
	}
	if recreated.ID == created.ID {
		t.Fatalf("expected a new live record after soft delete")
	}
}

func TestMessageStore_MalformedIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	store := newMessageStore(t)
	created, err := store.CreateOrMerge(ctx, core.MessageFields{ProviderID: "GS-777", Direction: core.DirectionInbound})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, id := range []string{"missing", "", "1234", created.ID + "x"} {
		if _, err := store.Get(ctx, id); core.ErrorKindOf(err) != core.ErrorKindNotFound {
			t.Fatalf("get %q: expected not found, got %v", id, err)
		}
		if err := store.SoftDelete(ctx, id); core.ErrorKindOf(err) != core.ErrorKindNotFound {
			t.Fatalf("soft delete %q: expected not found, got %v", id, err)
		}
		if ok, err := store.Update(ctx, id, core.MessageUpdate{Status: statusPtr(core.StatusRead)}); err != nil || ok {
			t.Fatalf("update %q: expected no-op, ok=%v err=%v", id, ok, err)
		}
	}

	got, err := store.Get(ctx, strings.ToUpper(created.ID))
	if err != nil || got.ID != created.ID {
		t.Fatalf("expected upper-case id to resolve, got %#v, %v", got, err)
	}
}

func TestMessageStore_ListFiltersPaginatesAndOrders(t *testing.T) {
	ctx := context.Background()
	store := newMessageStore(t)

	fixtures := []core.MessageFields{
		{ProviderID: "a", Direction: core.DirectionInbound, From: strPtr("111"), Status: statusPtr(core.StatusReceived)},
		{ProviderID: "b", Direction: core.DirectionOutbound, To: strPtr("222"), Status: statusPtr(core.StatusFailed), ErrorCode: strPtr("ERR001")},
		{ProviderID: "c", Direction: core.DirectionInbound, From: strPtr("111"), Status: statusPtr(core.StatusReceived)},
	}
	for _, fixture := range fixtures {
		if _, err := store.CreateOrMerge(ctx, fixture); err != nil {
			t.Fatalf("create %s: %v", fixture.ProviderID, err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	page, err := store.List(ctx, core.MessageFilter{From: "111"})
	if err != nil {
		t.Fatalf("list by from: %v", err)
	}
	if page.Total != 2 || page.Items[0].ProviderID != "c" || page.Items[1].ProviderID != "a" {
		t.Fatalf("expected newest first filtered by from, got %#v", page.Items)
	}

	page, _ = store.List(ctx, core.MessageFilter{To: "222", ErrorCode: "ERR001", Direction: core.DirectionOutbound})
	if page.Total != 1 || page.Items[0].ProviderID != "b" {
		t.Fatalf("expected failed outbound record, got %#v", page.Items)
	}

	page, _ = store.List(ctx, core.MessageFilter{Page: 2, PerPage: 2})
	if page.Total != 3 || len(page.Items) != 1 || page.LastPage != 2 || page.HasNext {
		t.Fatalf("unexpected second page %#v", page)
	}

	tomorrow := time.Now().UTC().Add(48 * time.Hour)
	page, _ = store.List(ctx, core.MessageFilter{CreatedOn: &tomorrow})
	if page.Total != 0 {
		t.Fatalf("expected no records for a future day, got %d", page.Total)
	}
}

func TestIngestor_SQLStoreEnqueuedThenReadMergesRecord(t *testing.T) {
	ctx := context.Background()
	store := newMessageStore(t)
	ingestor, err := ingest.New(store)
	if err != nil {
		t.Fatalf("new ingestor: %v", err)
	}

	enqueued := map[string]any{
		"type": "message-event",
		"payload": map[string]any{
			"id":          "GS-FLOW",
			"type":        "enqueued",
			"destination": "5511998877665",
			"payload":     map[string]any{"whatsappMessageId": "WPP-01", "type": "session"},
		},
	}
	if _, err := ingestor.Ingest(ctx, "5511987654321", enqueued); err != nil {
		t.Fatalf("enqueued: %v", err)
	}
	read := map[string]any{
		"type": "message-event",
		"payload": map[string]any{
			"type":    "read",
			"gsId":    "GS-FLOW",
			"payload": map[string]any{"ts": float64(123456)},
		},
	}
	outcome, err := ingestor.Ingest(ctx, "5511987654321", read)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	stored, err := store.Get(ctx, outcome.Data.DatabaseID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != core.StatusRead || stored.Body["whatsapp_message_id"] != "WPP-01" || stored.Body["read_at"] != float64(123456) {
		t.Fatalf("unexpected stored record %#v", stored)
	}
}

func TestRepositoryFactory_ResolvesPersistenceClient(t *testing.T) {
	client, cleanup := newSQLiteClient(t)
	defer cleanup()

	if _, err := sqlstore.NewRepositoryFactoryFromDB(client.DB()); err != nil {
		t.Fatalf("factory from db: %v", err)
	}
	if err := sqlstore.NewRepositoryFactory().BuildStores("nope"); err == nil {
		t.Fatalf("expected unsupported client type to fail")
	}
}

func newMessageStore(t *testing.T) *sqlstore.MessageStore {
	t.Helper()
	client, cleanup := newSQLiteClient(t)
	t.Cleanup(cleanup)
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client)
	if err != nil {
		t.Fatalf("new repository factory: %v", err)
	}
	store := factory.MessageStore()
	if store == nil {
		t.Fatalf("expected message store from factory")
	}
	return store
}

func newSQLiteClient(t *testing.T) (*persistence.Client, func()) {
	t.Helper()

	dsn := fmt.Sprintf(
		"file:inbox-test-%d?mode=memory&cache=shared&_foreign_keys=on",
		time.Now().UnixNano(),
	)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	cfg := testPersistenceConfig{
		driver: "sqlite3",
		server: dsn,
	}
	client, err := persistence.New(cfg, sqlDB, sqlitedialect.New())
	if err != nil {
		_ = sqlDB.Close()
		t.Fatalf("new persistence client: %v", err)
	}

	ctx := context.Background()
	if _, err := inboxmigrations.Register(client, inboxmigrations.DialectSQLite); err != nil {
		_ = client.Close()
		t.Fatalf("register migrations: %v", err)
	}
	if err := client.Migrate(ctx); err != nil {
		_ = client.Close()
		t.Fatalf("migrate: %v", err)
	}

	return client, func() {
		_ = client.Close()
	}
}

func strPtr(value string) *string { return &value }

func statusPtr(value core.MessageStatus) *core.MessageStatus { return &value }
