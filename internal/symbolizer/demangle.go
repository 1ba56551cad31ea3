package symbolizer

import "github.com/ianlancetaylor/demangle"

// Lookups demangle the short form: no parameter lists and no template
// arguments, so "ns::f<int>(int)" is reported as "ns::f".
var demangleOptions = []demangle.Option{demangle.NoParams, demangle.NoTemplateParams, demangle.NoClones}

// newSymbol builds a Symbol from a raw table name, demangling C++ and Rust
// names.
func newSymbol(raw string, start, end uint64, local bool) Symbol {
	s := Symbol{Name: raw, Start: start, End: end, Local: local}
	if name := demangle.Filter(raw, demangleOptions...); name != raw {
		s.Name = name
		s.Mangled = raw
	}
	return s
}
