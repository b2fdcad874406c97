package export

import (
	"strings"
)

// FlatFileName returns the file name used for table, e.g. "CLIENTES.csv".
// Path separators and other characters unsafe in file names become "_".
func FlatFileName(table string, opts FlatFileOptions) string {
	opts = opts.withDefaults()
	name := strings.TrimSpace(table)
	name = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		}
		return r
	}, name)
	name = strings.TrimLeft(name, ".")
	if name == "" {
		name = "table"
	}
	return name + "." + strings.TrimPrefix(opts.Extension, ".")
}
