package core

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
)

func templateDef() DatasetDefinition {
	min := 1.0
	return DatasetDefinition{
		Key:       "parts",
		SheetName: "Parts",
		Columns: []ColumnDefinition{
			{Header: "SKU", Field: "sku", Kind: KindText, Rules: Rules{Required: true}, Sample: "PRT-001"},
			{Header: "Qty", Field: "qty", Kind: KindNumber, Rules: Rules{Required: true, Min: &min}, Sample: "10"},
			{Header: "Grade", Field: "grade", Kind: KindEnum, Rules: Rules{Required: true}, OneOf: []string{"A", "B", "C"}, Sample: "A"},
		},
	}
}

func TestBuildTemplate_Layout(t *testing.T) {
	def := templateDef()

	f, err := BuildTemplate(context.Background(), def)
	if err != nil {
		t.Fatalf("BuildTemplate error: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if sheets[0] != "Parts" {
		t.Errorf("first sheet = %q, want Parts", sheets[0])
	}

	rows, err := f.GetRows("Parts")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) < 2 {
		t.Fatalf("template should have header and sample rows, got %d rows", len(rows))
	}

	wantHeader := []string{"SKU", "Qty", "Grade"}
	for i, h := range wantHeader {
		if rows[0][i] != h {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], h)
		}
	}
	if rows[1][0] != "PRT-001" || rows[1][2] != "A" {
		t.Errorf("sample row = %v", rows[1])
	}

	// The enum column carries a drop list over the data rows.
	dvs, err := f.GetDataValidations("Parts")
	if err != nil {
		t.Fatal(err)
	}
	if len(dvs) != 1 {
		t.Fatalf("got %d data validations, want 1", len(dvs))
	}
	firstCell, err := excelize.CoordinatesToCellName(3, 2)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(dvs[0].Sqref, firstCell+":") {
		t.Errorf("dropdown range = %q, want %s:...", dvs[0].Sqref, firstCell)
	}
	if dvs[0].ErrorStyle == nil || *dvs[0].ErrorStyle != "stop" {
		t.Errorf("dropdown error style = %v, want stop", dvs[0].ErrorStyle)
	}
}

func TestWriteTemplate_RoundTripsThroughParser(t *testing.T) {
	def := templateDef()

	var buf bytes.Buffer
	if err := WriteTemplate(context.Background(), def, &buf); err != nil {
		t.Fatalf("WriteTemplate error: %v", err)
	}

	rows, err := ParseWorkbook(bytes.NewReader(buf.Bytes()), def)
	if err != nil {
		t.Fatalf("ParseWorkbook error: %v", err)
	}

	// The sample row must validate cleanly.
	out := ValidateRows(context.Background(), def, rows)
	for _, vr := range out {
		if !vr.Valid {
			t.Errorf("sample row %d invalid: %+v", vr.Row, vr.Errors)
		}
	}
}

func TestBuildTemplate_LongOptionListUsesHiddenSheet(t *testing.T) {
	values := make([]string, 40)
	for i := range values {
		values[i] = strings.Repeat("x", 10) + string(rune('a'+i%26))
	}

	def := DatasetDefinition{
		Key:       "long",
		SheetName: "Long",
		Columns: []ColumnDefinition{
			{Header: "Choice", Field: "choice", Kind: KindEnum, OneOf: values, Sample: values[0]},
		},
	}

	f, err := BuildTemplate(context.Background(), def)
	if err != nil {
		t.Fatalf("BuildTemplate error: %v", err)
	}
	defer f.Close()

	idx, err := f.GetSheetIndex(optionSheet)
	if err != nil {
		t.Fatal(err)
	}
	if idx == -1 {
		t.Fatal("expected hidden option sheet for long lists")
	}
	visible, err := f.GetSheetVisible(optionSheet)
	if err != nil {
		t.Fatal(err)
	}
	if visible {
		t.Error("option sheet should be hidden")
	}

	got, err := f.GetCellValue(optionSheet, "A1")
	if err != nil {
		t.Fatal(err)
	}
	if got != values[0] {
		t.Errorf("option sheet A1 = %q, want %q", got, values[0])
	}
}

func TestDropdownValues_GeneratorFailureMeansNoDropdown(t *testing.T) {
	def := DatasetDefinition{Key: "gen", SheetName: "Gen"}
	col := ColumnDefinition{
		Header: "Dyn",
		Field:  "dyn",
		Kind:   KindEnum,
		OneOf:  []string{"fallback"},
		Options: func(ctx context.Context) ([]string, error) {
			return nil, context.DeadlineExceeded
		},
	}

	if got := dropdownValues(context.Background(), def, col); got != nil {
		t.Errorf("failing generator should yield no dropdown, got %v", got)
	}
}
