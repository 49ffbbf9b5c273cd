package core

import (
	"context"
	"testing"
	"time"
)

func noopUpload(ctx context.Context, p *Payload) (any, error) { return nil, nil }

func minimalDef(key, group string) DatasetDefinition {
	return DatasetDefinition{
		Key:     key,
		Group:   group,
		Label:   key,
		Columns: []ColumnDefinition{{Header: "A", Field: "a"}},
		Upload:  noopUpload,
	}
}

func TestRegister_AppliesDefaults(t *testing.T) {
	Clear()
	defer Clear()

	Register(DatasetDefinition{
		Key:     "defaults",
		Columns: []ColumnDefinition{{Header: "A", Field: "a"}},
		Upload:  noopUpload,
	})

	def, ok := Get("defaults")
	if !ok {
		t.Fatal("dataset not found after Register")
	}
	if def.SheetName != "defaults" {
		t.Errorf("SheetName = %q, want key fallback", def.SheetName)
	}
	if def.MaxRows != DefaultMaxRows {
		t.Errorf("MaxRows = %d, want %d", def.MaxRows, DefaultMaxRows)
	}
	if def.BatchSize != DefaultBatchSize {
		t.Errorf("BatchSize = %d, want %d", def.BatchSize, DefaultBatchSize)
	}
	if def.BatchDelay != DefaultBatchDelay {
		t.Errorf("BatchDelay = %v, want %v", def.BatchDelay, DefaultBatchDelay)
	}
	if def.Success == nil || !def.Success(nil) {
		t.Error("default success predicate should accept any result")
	}
}

func TestRegister_PanicsOnDuplicate(t *testing.T) {
	Clear()
	defer Clear()

	Register(minimalDef("dup", ""))

	defer func() {
		if recover() == nil {
			t.Error("duplicate Register should panic")
		}
	}()
	Register(minimalDef("dup", ""))
}

func TestRegister_PanicsWithoutUpload(t *testing.T) {
	Clear()
	defer Clear()

	defer func() {
		if recover() == nil {
			t.Error("Register without upload function should panic")
		}
	}()
	Register(DatasetDefinition{
		Key:     "broken",
		Columns: []ColumnDefinition{{Header: "A", Field: "a"}},
	})
}

func TestAll_SortedByGroupThenKey(t *testing.T) {
	Clear()
	defer Clear()

	Register(minimalDef("zebra", "B"))
	Register(minimalDef("apple", "B"))
	Register(minimalDef("mango", "A"))

	got := All()
	want := []string{"mango", "apple", "zebra"}
	for i, key := range want {
		if got[i].Key != key {
			t.Errorf("All()[%d].Key = %q, want %q", i, got[i].Key, key)
		}
	}

	groups := Groups()
	if len(groups) != 2 || groups[0] != "A" || groups[1] != "B" {
		t.Errorf("Groups() = %v, want [A B]", groups)
	}
	if DatasetCount() != 3 {
		t.Errorf("DatasetCount() = %d, want 3", DatasetCount())
	}
}

func TestRegister_KeepsExplicitSettings(t *testing.T) {
	Clear()
	defer Clear()

	def := minimalDef("explicit", "")
	def.MaxRows = 10
	def.BatchSize = 4
	def.BatchDelay = 50 * time.Millisecond
	Register(def)

	got, _ := Get("explicit")
	if got.MaxRows != 10 || got.BatchSize != 4 || got.BatchDelay != 50*time.Millisecond {
		t.Errorf("explicit settings overwritten: %+v", got)
	}
}
