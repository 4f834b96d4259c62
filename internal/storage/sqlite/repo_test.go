package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"churn/internal/storage"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "churn_test.db")
	repo, closeFn, err := NewRepository(context.Background(), Config{DSN: dsn})
	if err != nil {
		t.Fatalf("NewRepository: %v", err)
	}
	t.Cleanup(closeFn)
	return repo
}

func TestNewRepository_EmptyDSN(t *testing.T) {
	t.Parallel()
	_, _, err := NewRepository(context.Background(), Config{})
	if err == nil {
		t.Fatal("expected error for empty DSN")
	}
}

func TestCopyFromRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTestRepo(t)

	def := storage.TableDef{
		Name: "subscriptions_labeled",
		Columns: []storage.ColumnDef{
			{Name: "subscription_id", Type: storage.ColInteger},
			{Name: "price", Type: storage.ColReal},
			{Name: "is_premium_plan", Type: storage.ColBool},
			{Name: "start_date", Type: storage.ColDate},
			{Name: "churn_30d", Type: storage.ColInteger},
		},
	}
	if err := repo.Exec(ctx, createTableSQL(def)); err != nil {
		t.Fatalf("create table: %v", err)
	}

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := [][]any{
		{int64(1), 9.99, false, start, int64(0)},
		{int64(2), 49.99, true, start, int64(1)},
		{int64(3), nil, false, nil, int64(0)},
	}
	n, err := repo.CopyFrom(ctx, def.Name, def.ColumnNames(), rows)
	if err != nil {
		t.Fatalf("CopyFrom: %v", err)
	}
	if n != 3 {
		t.Fatalf("inserted = %d, want 3", n)
	}

	var count int
	if err := repo.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM subscriptions_labeled").Scan(&count); err != nil {
		t.Fatalf("count query: %v", err)
	}
	if count != 3 {
		t.Fatalf("row count = %d, want 3", count)
	}

	var churned int
	if err := repo.db.QueryRowContext(ctx,
		"SELECT churn_30d FROM subscriptions_labeled WHERE subscription_id = 2").Scan(&churned); err != nil {
		t.Fatalf("value query: %v", err)
	}
	if churned != 1 {
		t.Fatalf("churn_30d = %d, want 1", churned)
	}
}

func TestCopyFromRaggedRowFails(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := openTestRepo(t)

	if err := repo.Exec(ctx, `CREATE TABLE t ("a" INTEGER, "b" TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	_, err := repo.CopyFrom(ctx, "t", []string{"a", "b"}, [][]any{{int64(1)}})
	if err == nil {
		t.Fatal("expected error for ragged row")
	}
}

func TestCopyFromEmptyInput(t *testing.T) {
	t.Parallel()
	repo := openTestRepo(t)

	n, err := repo.CopyFrom(context.Background(), "missing_table", []string{"a"}, nil)
	if err != nil || n != 0 {
		t.Fatalf("CopyFrom empty = (%d, %v), want (0, nil)", n, err)
	}

	_, err = repo.CopyFrom(context.Background(), "t", nil, [][]any{{1}})
	if err == nil {
		t.Fatal("expected error for empty columns")
	}
}

func TestFactoryRegistration(t *testing.T) {
	t.Parallel()
	dsn := filepath.Join(t.TempDir(), "via_factory.db")
	repo, err := storage.New(context.Background(), storage.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatalf("storage.New: %v", err)
	}
	defer repo.Close()

	def := storage.TableDef{Name: "users", Columns: []storage.ColumnDef{{Name: "user_id", Type: storage.ColInteger}}}
	if err := storage.EnsureTable(context.Background(), "sqlite", repo, def); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	// A second bootstrap replaces the table rather than failing.
	if err := storage.EnsureTable(context.Background(), "sqlite", repo, def); err != nil {
		t.Fatalf("EnsureTable rerun: %v", err)
	}
}
