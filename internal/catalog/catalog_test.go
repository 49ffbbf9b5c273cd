package catalog

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/rowlift/rowlift/internal/core"
	"github.com/rowlift/rowlift/internal/target"
)

func registerAll(t *testing.T) {
	t.Helper()
	core.Clear()
	t.Cleanup(core.Clear)
	Register(Deps{HTTP: target.NewHTTPTarget("http://backend.invalid")})
}

func TestRegister_InstallsAllDatasets(t *testing.T) {
	registerAll(t)

	for _, key := range []string{"products", "suppliers", "users"} {
		if _, ok := core.Get(key); !ok {
			t.Errorf("dataset %q not registered", key)
		}
	}
	if got := core.Groups(); len(got) != 2 {
		t.Errorf("groups = %v", got)
	}
}

func TestSuppliers_EmailValidator(t *testing.T) {
	registerAll(t)
	def, _ := core.Get("suppliers")

	var email core.ColumnDefinition
	for _, col := range def.Columns {
		if col.Field == "email" {
			email = col
		}
	}
	if email.Validate == nil {
		t.Fatal("email column has no validator")
	}

	if msg, err := email.Validate(context.Background(), "orders@acme.example", nil); err != nil || msg != "" {
		t.Errorf("valid address rejected: %q %v", msg, err)
	}
	if msg, _ := email.Validate(context.Background(), "not-an-email", nil); msg == "" {
		t.Error("invalid address accepted")
	}
}

func TestSuppliers_RequiresEmailOrPhone(t *testing.T) {
	registerAll(t)
	def, _ := core.Get("suppliers")

	errs := def.ValidateRow(core.RowData{"name": "Acme", "country": "DE"}, 0)
	if len(errs) != 1 || errs[0].Field != "email" {
		t.Errorf("errors = %+v", errs)
	}

	if errs := def.ValidateRow(core.RowData{"phone": "+49 30 1"}, 0); len(errs) != 0 {
		t.Errorf("phone-only row rejected: %+v", errs)
	}
}

func TestSuppliers_CountryUppercased(t *testing.T) {
	registerAll(t)
	def, _ := core.Get("suppliers")

	for _, col := range def.Columns {
		if col.Field == "country" {
			if got := col.Transform("de"); got != "DE" {
				t.Errorf("Transform(de) = %q", got)
			}
			return
		}
	}
	t.Fatal("country column missing")
}

func TestProducts_DiscontinuedNeedsZeroQuantity(t *testing.T) {
	registerAll(t)
	def, _ := core.Get("products")

	errs := def.ValidateRow(core.RowData{"discontinued": "true", "quantity": "5"}, 0)
	if len(errs) != 1 || errs[0].Field != "quantity" {
		t.Errorf("errors = %+v", errs)
	}

	if errs := def.ValidateRow(core.RowData{"discontinued": "true", "quantity": "0"}, 0); len(errs) != 0 {
		t.Errorf("zero-quantity discontinued row rejected: %+v", errs)
	}
	if errs := def.ValidateRow(core.RowData{"discontinued": "false", "quantity": "5"}, 0); len(errs) != 0 {
		t.Errorf("active row rejected: %+v", errs)
	}
}

type recordingDB struct {
	sql string
}

func (r *recordingDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	r.sql = sql
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func TestProducts_PrefersPostgresWhenAvailable(t *testing.T) {
	core.Clear()
	t.Cleanup(core.Clear)

	db := &recordingDB{}
	Register(Deps{
		HTTP:     target.NewHTTPTarget("http://backend.invalid"),
		Postgres: target.NewPostgresTarget(db),
	})

	def, _ := core.Get("products")
	result, err := def.Upload(context.Background(), &core.Payload{
		Format: core.PayloadJSON,
		Fields: map[string]string{"sku": "PRD-1", "name": "Bolt"},
	})
	if err != nil {
		t.Fatalf("upload error: %v", err)
	}
	if !strings.HasPrefix(db.sql, `INSERT INTO "products"`) {
		t.Errorf("sql = %q, want a products insert", db.sql)
	}
	if !def.Success(result) {
		t.Error("single-row insert should be a success")
	}
}

func TestUsers_InviteAttachment(t *testing.T) {
	registerAll(t)
	def, _ := core.Get("users")

	gen := def.Attachments["invite"]
	if gen == nil {
		t.Fatal("invite attachment not configured")
	}
	fh, err := gen(context.Background(), core.RowData{"email": "a@b.co", "role": "Buyer"})
	if err != nil {
		t.Fatalf("generator error: %v", err)
	}
	if fh.ContentType != "application/json" {
		t.Errorf("content type = %q", fh.ContentType)
	}
	body := string(fh.Data)
	for _, want := range []string{`"email":"a@b.co"`, `"role":"Buyer"`, "expires_at"} {
		if !strings.Contains(body, want) {
			t.Errorf("invite %s missing %q", body, want)
		}
	}
}

func TestUsers_RolesDropdown(t *testing.T) {
	roles, err := userRoles(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(roles) != 4 || roles[0] != "Buyer" {
		t.Errorf("roles = %v", roles)
	}
}
