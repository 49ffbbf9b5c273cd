package catalog

import (
	"log/slog"

	"github.com/rowlift/rowlift/internal/core"
)

var productCategories = []string{"Raw Material", "Component", "Packaging", "Finished Good", "Service"}

var productCurrencies = []string{"USD", "EUR", "GBP"}

func registerProducts(deps Deps) {
	minQty := 1.0
	maxPrice := 1_000_000.0

	upload := deps.HTTP.Uploader("/api/products")
	success := deps.HTTP.Success
	if deps.Postgres != nil {
		upload = deps.Postgres.Uploader("products", map[string]string{
			"sku":          "sku",
			"name":         "name",
			"category":     "category",
			"quantity":     "quantity",
			"unit_price":   "unit_price",
			"currency":     "currency",
			"discontinued": "discontinued",
			"notes":        "notes",
		})
		success = deps.Postgres.Success
	}

	core.Register(core.DatasetDefinition{
		Key:       "products",
		Group:     "Purchasing",
		Label:     "Products",
		SheetName: "Products",
		Editable:  true,
		Columns: []core.ColumnDefinition{
			{
				Header: "SKU",
				Field:  "sku",
				Kind:   core.KindText,
				Rules:  core.Rules{Required: true, MinLen: 3, MaxLen: 32},
				Sample: "PRD-0001",
			},
			{
				Header: "Name",
				Field:  "name",
				Kind:   core.KindText,
				Rules:  core.Rules{Required: true, MaxLen: 120},
				Sample: "M6 hex bolt",
			},
			{
				Header: "Category",
				Field:  "category",
				Kind:   core.KindEnum,
				Rules:  core.Rules{Required: true},
				OneOf:  productCategories,
				Sample: "Component",
			},
			{
				Header: "Quantity",
				Field:  "quantity",
				Kind:   core.KindNumber,
				Rules:  core.Rules{Required: true, Min: &minQty},
				Sample: "100",
			},
			{
				Header: "Unit Price",
				Field:  "unit_price",
				Kind:   core.KindNumber,
				Rules:  core.Rules{Required: true, Positive: true, Max: &maxPrice},
				Sample: "0.12",
			},
			{
				Header: "Currency",
				Field:  "currency",
				Kind:   core.KindEnum,
				Rules:  core.Rules{Required: true},
				OneOf:  productCurrencies,
				Sample: "USD",
			},
			{
				Header: "Discontinued",
				Field:  "discontinued",
				Kind:   core.KindBoolean,
				Sample: "no",
			},
			{
				Header: "Notes",
				Field:  "notes",
				Kind:   core.KindText,
				Rules:  core.Rules{MaxLen: 500},
				Sample: "",
			},
		},
		ValidateRow: func(row core.RowData, index int) []core.ValidationError {
			// Discontinued products should not arrive with stock.
			if row["discontinued"] == "true" && row["quantity"] != "" && row["quantity"] != "0" {
				return []core.ValidationError{{
					Field:   "quantity",
					Message: "discontinued products must have zero quantity",
				}}
			}
			return nil
		},
		Upload:  upload,
		Success: success,
		Format:  core.PayloadJSON,
		OnComplete: func(outcome core.UploadOutcome) {
			slog.Info("product import finished",
				"successful", outcome.Successful,
				"failed", outcome.Failed,
			)
		},
	})
}
