package core

import "testing"

func TestCleanCell(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain", "hello", "hello"},
		{"whitespace", "  hello  ", "hello"},
		{"formula prefix", `="PRD-001"`, "PRD-001"},
		{"bare equals", "=42", "42"},
		{"double quotes", `"quoted"`, "quoted"},
		{"single quotes", "'quoted'", "quoted"},
		{"empty", "", ""},
		{"only whitespace", "   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CleanCell(tt.input); got != tt.want {
				t.Errorf("CleanCell(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		want      float64
		canonical string
		ok        bool
	}{
		{"integer", "42", 42, "42", true},
		{"decimal", "3.14", 3.14, "3.14", true},
		{"negative", "-7", -7, "-7", true},
		{"currency dollar", "$1,234.50", 1234.50, "1234.50", true},
		{"currency euro", "€99", 99, "99", true},
		{"accounting negative", "(123.45)", -123.45, "-123.45", true},
		{"scientific", "1e3", 1000, "1e3", true},
		{"word", "abc", 0, "", false},
		{"mixed", "12abc", 0, "", false},
		{"empty", "", 0, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, canonical, ok := ParseNumber(tt.input)
			if ok != tt.ok {
				t.Fatalf("ParseNumber(%q) ok = %v, want %v", tt.input, ok, tt.ok)
			}
			if !ok {
				return
			}
			if got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if canonical != tt.canonical {
				t.Errorf("ParseNumber(%q) canonical = %q, want %q", tt.input, canonical, tt.canonical)
			}
		})
	}
}

func TestParseBool(t *testing.T) {
	truthy := []string{"true", "TRUE", "t", "yes", "Y", "1"}
	for _, s := range truthy {
		if b, ok := ParseBool(s); !ok || !b {
			t.Errorf("ParseBool(%q) = %v, %v, want true, true", s, b, ok)
		}
	}

	falsy := []string{"false", "F", "no", "n", "0"}
	for _, s := range falsy {
		if b, ok := ParseBool(s); !ok || b {
			t.Errorf("ParseBool(%q) = %v, %v, want false, true", s, b, ok)
		}
	}

	if _, ok := ParseBool("maybe"); ok {
		t.Error("ParseBool(\"maybe\") should not parse")
	}
}

func TestMakeHeaderIndex(t *testing.T) {
	idx := makeHeaderIndex([]string{"  SKU ", "Name", "sku", "", "Qty"})

	if got := idx["sku"]; got != 0 {
		t.Errorf("first occurrence should win: idx[sku] = %d, want 0", got)
	}
	if got := idx["qty"]; got != 4 {
		t.Errorf("idx[qty] = %d, want 4", got)
	}
	if _, ok := idx[""]; ok {
		t.Error("empty headers should not be indexed")
	}
}
