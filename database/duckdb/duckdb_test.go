package duckdb

import (
	"testing"

	"github.com/darianmavgo/mince/database"
)

func TestRegisteredDialect(t *testing.T) {
	d, err := database.LookupDialect("duckdb")
	if err != nil {
		t.Fatal(err)
	}
	if d.DriverName != "duckdb" || !d.FileBased {
		t.Errorf("unexpected dialect %+v", d)
	}

	create := d.GenCreateTableSQL("t", []string{"n", "r", "s"}, []database.TypeCategory{database.TypeInteger, database.TypeReal, database.TypeText})
	if want := `CREATE TABLE "t" ("n" BIGINT, "r" DOUBLE, "s" VARCHAR)`; create != want {
		t.Errorf("create = %q, want %q", create, want)
	}
	insert, err := d.GenInsertSQL("t", []string{"n", "r"})
	if err != nil {
		t.Fatal(err)
	}
	if want := `INSERT INTO "t" ("n","r") VALUES (?,?)`; insert != want {
		t.Errorf("insert = %q, want %q", insert, want)
	}
	if got, want := d.Sample("SELECT n FROM t"), "SELECT * FROM (SELECT n FROM t) AS sample LIMIT 1"; got != want {
		t.Errorf("sample = %q, want %q", got, want)
	}
}
