package postgres

import (
	"strings"
	"testing"

	"dexIngest/internal/model"
)

var pairsTable = model.Table{
	Name: "pairs",
	Columns: []model.Column{
		{Name: "token0", Type: model.ColumnText},
		{Name: "reserve_usd", Type: model.ColumnNumeric},
		{Name: "timestamp", Type: model.ColumnBigint},
	},
}

func TestUpsertSQL(t *testing.T) {
	got := upsertSQL(pairsTable)
	want := `INSERT INTO "pairs" (chain_id, id, "token0", "reserve_usd", "timestamp", synced_at) ` +
		`VALUES ($1, $2, $3::TEXT, $4::NUMERIC, $5::BIGINT, now()) ` +
		`ON CONFLICT (chain_id, id) DO UPDATE SET "token0" = EXCLUDED."token0", ` +
		`"reserve_usd" = EXCLUDED."reserve_usd", "timestamp" = EXCLUDED."timestamp", synced_at = now()`
	if got != want {
		t.Fatalf("unexpected upsert sql:\n%s\nwant:\n%s", got, want)
	}
}

func TestUpsertSQLWithoutColumns(t *testing.T) {
	got := upsertSQL(model.Table{Name: "users"})
	if !strings.HasSuffix(got, "DO UPDATE SET synced_at = now()") {
		t.Fatalf("unexpected upsert sql: %s", got)
	}
}

func TestCreateTableSQL(t *testing.T) {
	got := createTableSQL(pairsTable)
	for _, part := range []string{
		`CREATE TABLE IF NOT EXISTS "pairs"`,
		`"reserve_usd" NUMERIC,`,
		`"timestamp" BIGINT,`,
		`UNIQUE (chain_id, id)`,
	} {
		if !strings.Contains(got, part) {
			t.Fatalf("missing %q in:\n%s", part, got)
		}
	}
}
