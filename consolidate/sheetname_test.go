package consolidate

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func takenSet(names ...string) func(string) bool {
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		set[name] = struct{}{}
	}
	return func(name string) bool {
		_, ok := set[name]
		return ok
	}
}

func TestSheetNamer_Candidate(t *testing.T) {
	namer := SheetNamer{MaxLength: 31}
	cases := map[string]string{
		"Sales.csv":         "Sales",
		"  Sales .txt":      "Sales",
		"a:b/c?d*e[f]g.csv": "a_b_c_d_e_f_g",
		".csv":              "Sheet",
		"'quoted'.csv":      "quoted",
		"CLIENTES.csv":      "CLIENTES",
	}
	for input, want := range cases {
		if got := namer.Candidate(input); got != want {
			t.Fatalf("%q: expected %q, got %q", input, want, got)
		}
	}
}

func TestSheetNamer_CandidateTruncates(t *testing.T) {
	long := strings.Repeat("x", 40) + ".csv"

	if got := (SheetNamer{}).Candidate(long); utf8.RuneCountInString(got) != 31 {
		t.Fatalf("expected default limit 31, got %d", utf8.RuneCountInString(got))
	}
	if got := (SheetNamer{MaxLength: 20}).Candidate(long); utf8.RuneCountInString(got) != 20 {
		t.Fatalf("expected legacy limit 20, got %d", utf8.RuneCountInString(got))
	}

	accented := strings.Repeat("ñ", 35) + ".csv"
	got := (SheetNamer{}).Candidate(accented)
	if !utf8.ValidString(got) || utf8.RuneCountInString(got) != 31 {
		t.Fatalf("expected rune-safe truncation, got %q", got)
	}
}

func TestSheetNamer_UniqueNumeric(t *testing.T) {
	namer := SheetNamer{Suffix: SuffixNumeric}

	name, err := namer.Unique("Sales", takenSet())
	if err != nil || name != "Sales" {
		t.Fatalf("expected Sales, got %q (%v)", name, err)
	}
	name, err = namer.Unique("Sales", takenSet("Sales"))
	if err != nil || name != "Sales_2" {
		t.Fatalf("expected Sales_2, got %q (%v)", name, err)
	}
	name, err = namer.Unique("Sales", takenSet("Sales", "Sales_2"))
	if err != nil || name != "Sales_3" {
		t.Fatalf("expected Sales_3, got %q (%v)", name, err)
	}
}

func TestSheetNamer_UniqueUnderscore(t *testing.T) {
	namer := SheetNamer{Suffix: SuffixUnderscore}

	name, err := namer.Unique("Sales", takenSet("Sales", "Sales_"))
	if err != nil || name != "Sales__" {
		t.Fatalf("expected Sales__, got %q (%v)", name, err)
	}
}

func TestSheetNamer_UniqueRespectsLimit(t *testing.T) {
	namer := SheetNamer{MaxLength: 10, Suffix: SuffixNumeric}
	base := "ABCDEFGHIJ"

	name, err := namer.Unique(base, takenSet(base))
	if err != nil {
		t.Fatalf("unique: %v", err)
	}
	if name != "ABCDEFGH_2" {
		t.Fatalf("expected ABCDEFGH_2, got %q", name)
	}
	if utf8.RuneCountInString(name) > 10 {
		t.Fatalf("expected name within limit, got %q", name)
	}
}

func TestWorkbook_ConcurrentAppendKeepsNamesUnique(t *testing.T) {
	workbook := NewWorkbook(SheetNamer{Suffix: SuffixNumeric})

	done := make(chan struct{})
	for i := 0; i < 50; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			if _, err := workbook.Append("Sales", "Sales.csv", []string{"a"}, nil); err != nil {
				t.Errorf("append: %v", err)
			}
		}()
	}
	for i := 0; i < 50; i++ {
		<-done
	}

	seen := make(map[string]struct{})
	for _, sheet := range workbook.Sheets() {
		key := strings.ToLower(sheet.Name)
		if _, dup := seen[key]; dup {
			t.Fatalf("duplicate sheet name %q", sheet.Name)
		}
		seen[key] = struct{}{}
	}
	if workbook.Len() != 50 {
		t.Fatalf("expected 50 sheets, got %d", workbook.Len())
	}
}

func TestWorkbook_CaseInsensitiveCollision(t *testing.T) {
	workbook := NewWorkbook(SheetNamer{})
	if _, err := workbook.Append("Sales", "Sales.csv", nil, nil); err != nil {
		t.Fatalf("append: %v", err)
	}
	name, err := workbook.Append("SALES", "SALES.txt", nil, nil)
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if name != "SALES_2" {
		t.Fatalf("expected SALES_2, got %q", name)
	}
}
