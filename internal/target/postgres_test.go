package target

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rowlift/rowlift/internal/core"
)

type fakeDB struct {
	sql  string
	args []any
	tag  pgconn.CommandTag
	err  error
}

func (f *fakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql = sql
	f.args = args
	return f.tag, f.err
}

func TestPostgresTarget_InsertStatement(t *testing.T) {
	db := &fakeDB{tag: pgconn.NewCommandTag("INSERT 0 1")}
	target := NewPostgresTarget(db)
	upload := target.Uploader("products", map[string]string{"sku": "sku"})

	result, err := upload(context.Background(), &core.Payload{
		Format: core.PayloadJSON,
		Fields: map[string]string{"sku": "W-1"},
	})
	if err != nil {
		t.Fatalf("upload error: %v", err)
	}

	if db.sql != `INSERT INTO "products" ("sku") VALUES ($1)` {
		t.Errorf("sql = %q", db.sql)
	}
	if len(db.args) != 1 || db.args[0] != "W-1" {
		t.Errorf("args = %v", db.args)
	}
	if !target.Success(result) {
		t.Error("single-row insert should be a success")
	}
}

func TestPostgresTarget_MissingValueInsertsNull(t *testing.T) {
	db := &fakeDB{tag: pgconn.NewCommandTag("INSERT 0 1")}
	upload := NewPostgresTarget(db).Uploader("products", map[string]string{"notes": "notes"})

	if _, err := upload(context.Background(), &core.Payload{
		Format: core.PayloadJSON,
		Fields: map[string]string{"notes": ""},
	}); err != nil {
		t.Fatalf("upload error: %v", err)
	}
	if len(db.args) != 1 || db.args[0] != nil {
		t.Errorf("args = %v, want a single NULL", db.args)
	}
}

func TestPostgresTarget_ColumnsAndValuesStayAligned(t *testing.T) {
	db := &fakeDB{tag: pgconn.NewCommandTag("INSERT 0 1")}
	columns := map[string]string{"sku": "sku", "qty": "quantity", "name": "name"}
	upload := NewPostgresTarget(db).Uploader("products", columns)

	fields := map[string]string{"sku": "W-1", "qty": "5", "name": "Widget"}
	if _, err := upload(context.Background(), &core.Payload{
		Format: core.PayloadJSON,
		Fields: fields,
	}); err != nil {
		t.Fatalf("upload error: %v", err)
	}

	// Map iteration order varies, so recover the column list from the SQL and
	// check each positional argument against its column's source field.
	open := strings.Index(db.sql, "(")
	closeIdx := strings.Index(db.sql, ")")
	cols := strings.Split(db.sql[open+1:closeIdx], ", ")
	if len(cols) != 3 || len(db.args) != 3 {
		t.Fatalf("sql = %q, args = %v", db.sql, db.args)
	}

	byColumn := map[string]string{"sku": "W-1", "quantity": "5", "name": "Widget"}
	for i, col := range cols {
		name := strings.Trim(col, `"`)
		if db.args[i] != byColumn[name] {
			t.Errorf("column %s got arg %v, want %q", name, db.args[i], byColumn[name])
		}
	}
}

func TestPostgresTarget_ExecErrorPropagates(t *testing.T) {
	boom := errors.New("connection refused")
	db := &fakeDB{err: boom}
	upload := NewPostgresTarget(db).Uploader("products", map[string]string{"sku": "sku"})

	if _, err := upload(context.Background(), &core.Payload{
		Format: core.PayloadJSON,
		Fields: map[string]string{"sku": "W-1"},
	}); !errors.Is(err, boom) {
		t.Errorf("got %v, want the exec error", err)
	}
}

func TestPostgresTarget_SuccessPredicate(t *testing.T) {
	target := NewPostgresTarget(&fakeDB{})
	if !target.Success(pgconn.NewCommandTag("INSERT 0 1")) {
		t.Error("one affected row should pass")
	}
	if target.Success(pgconn.NewCommandTag("INSERT 0 0")) {
		t.Error("zero affected rows must not pass")
	}
	if target.Success("wrong type") {
		t.Error("foreign result types must not pass")
	}
}

func TestQuoteIdentifier(t *testing.T) {
	if got := quoteIdentifier(`weird"name`); got != `"weird""name"` {
		t.Errorf("quoteIdentifier = %q", got)
	}
}
