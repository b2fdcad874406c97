package export

import "testing"

func TestExcludePrefixes_CaseInsensitive(t *testing.T) {
	filter := ExcludePrefixes("datos", "HOPEC", " ")

	cases := map[string]bool{
		"CLIENTES":      true,
		"DATOS_PARKING": false,
		"datosVarios":   false,
		"HopecAux":      false,
		"TARIFAS":       true,
		"MYDATOS":       true,
	}
	for name, want := range cases {
		if got := filter.Allows(name); got != want {
			t.Fatalf("%s: expected %t, got %t", name, want, got)
		}
	}
}

func TestNameFilter_NilAllowsAll(t *testing.T) {
	var filter NameFilter
	if !filter.Allows("anything") {
		t.Fatalf("expected nil filter to allow")
	}
	if ExcludePrefixes() != nil {
		t.Fatalf("expected no prefixes to yield nil filter")
	}
}

func TestAllowExtensions(t *testing.T) {
	filter := AllowExtensions("csv", ".TXT")

	cases := map[string]bool{
		"CLIENTES.csv": true,
		"sales.CSV":    true,
		"notes.txt":    true,
		"book.xlsx":    false,
		"README":       false,
	}
	for name, want := range cases {
		if got := filter.Allows(name); got != want {
			t.Fatalf("%s: expected %t, got %t", name, want, got)
		}
	}
}

func TestAllFilters(t *testing.T) {
	filter := AllFilters(nil, ExcludePrefixes("regis"), AllowExtensions("csv"))
	if filter.Allows("registro.csv") {
		t.Fatalf("expected excluded prefix to be rejected")
	}
	if filter.Allows("ventas.txt") {
		t.Fatalf("expected extension to be rejected")
	}
	if !filter.Allows("ventas.csv") {
		t.Fatalf("expected ventas.csv to pass")
	}
	if AllFilters(nil, nil) != nil {
		t.Fatalf("expected nil filters to combine into nil")
	}
}
