package catalog

import (
	"context"
	"net/mail"
	"strings"

	"github.com/rowlift/rowlift/internal/core"
)

func registerSuppliers(deps Deps) {
	core.Register(core.DatasetDefinition{
		Key:       "suppliers",
		Group:     "Purchasing",
		Label:     "Suppliers",
		SheetName: "Suppliers",
		Editable:  true,
		Columns: []core.ColumnDefinition{
			{
				Header: "Supplier Name",
				Field:  "name",
				Kind:   core.KindText,
				Rules:  core.Rules{Required: true, MaxLen: 160},
				Sample: "Acme Fasteners Ltd",
			},
			{
				Header: "Country Code",
				Field:  "country",
				Kind:   core.KindText,
				Rules:  core.Rules{Required: true, MinLen: 2, MaxLen: 2},
				Sample: "DE",
				Transform: func(value string) string {
					return strings.ToUpper(value)
				},
			},
			{
				Header: "Contact Email",
				Field:  "email",
				Kind:   core.KindText,
				Sample: "orders@acme.example",
				Validate: func(ctx context.Context, value string, row core.RowData) (string, error) {
					if _, err := mail.ParseAddress(value); err != nil {
						return "must be a valid email address", nil
					}
					return "", nil
				},
			},
			{
				Header: "Contact Phone",
				Field:  "phone",
				Kind:   core.KindText,
				Rules:  core.Rules{MaxLen: 32},
				Sample: "+49 30 123456",
			},
			{
				Header: "Payment Terms",
				Field:  "payment_terms",
				Kind:   core.KindEnum,
				Rules:  core.Rules{Required: true},
				OneOf:  []string{"Net 15", "Net 30", "Net 60", "Prepaid"},
				Sample: "Net 30",
			},
			{
				// Internal cross-reference used by reviewers; not part of
				// the backend's supplier record.
				Header: "Internal Ref",
				Field:  "internal_ref",
				Kind:   core.KindText,
				Sample: "ERP-1042",
				Hidden: true,
			},
		},
		ValidateRow: func(row core.RowData, index int) []core.ValidationError {
			if row["email"] == "" && row["phone"] == "" {
				return []core.ValidationError{{
					Field:   "email",
					Message: "either an email address or a phone number is required",
				}}
			}
			return nil
		},
		ExcludePayloadFields: []string{"internal_ref"},
		Upload:               deps.HTTP.Uploader("/api/suppliers"),
		Success:              deps.HTTP.Success,
		Format:               core.PayloadJSON,
	})
}
