package postgres

import (
	"strings"
	"testing"

	"churn/internal/storage"
)

func TestCreateTableSQL(t *testing.T) {
	t.Parallel()

	def := storage.TableDef{
		Name: "public.subscriptions_labeled",
		Columns: []storage.ColumnDef{
			{Name: "subscription_id", Type: storage.ColInteger},
			{Name: "price", Type: storage.ColReal},
			{Name: "is_premium_plan", Type: storage.ColBool},
			{Name: "start_date", Type: storage.ColDate},
			{Name: "status", Type: storage.ColText},
		},
	}
	got := createTableSQL(def)
	want := `CREATE TABLE "public"."subscriptions_labeled" ` +
		`("subscription_id" BIGINT, "price" DOUBLE PRECISION, ` +
		`"is_premium_plan" BOOLEAN, "start_date" TIMESTAMPTZ, "status" TEXT)`
	if got != want {
		t.Fatalf("createTableSQL:\n got %s\nwant %s", got, want)
	}
}

func TestTableIdent(t *testing.T) {
	t.Parallel()

	if got := tableIdent("public.users"); len(got) != 2 || got[0] != "public" || got[1] != "users" {
		t.Errorf("tableIdent(public.users) = %v", got)
	}
	if got := tableIdent("users"); len(got) != 1 || got[0] != "users" {
		t.Errorf("tableIdent(users) = %v", got)
	}
}

func TestPgIdentQuoting(t *testing.T) {
	t.Parallel()

	if got := pgIdent(`we"ird`); !strings.Contains(got, `""`) {
		t.Errorf("pgIdent did not escape embedded quote: %s", got)
	}
}
