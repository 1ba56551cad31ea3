package query

import (
	"bytes"
	"testing"

	"github.com/VladMinzatu/symquery/internal/symbolizer"
)

const elfKind = symbolizer.KindSymbols | symbolizer.KindLineNums | symbolizer.KindELFSymtab

func testLibrary() *mockLibrary {
	return &mockLibrary{
		infos: map[uint64]*symbolizer.Info{
			0x1234: {Name: "main", StartOffs: 0x1200, File: "/src/main.c", Line: 42, LineOffs: 4, DebugKind: elfKind},
			0x2010: {Name: "stripped", StartOffs: 0x2000, DebugKind: symbolizer.KindSymbols | symbolizer.KindPECOFFSymtab},
		},
		symbols: map[string]uint64{"foo": 0x10},
		enumSyms: []symbolizer.Info{
			{Name: "foo", StartOffs: 0x10, EndOffs: 0x20},
			{Name: "bar", StartOffs: 0x20, EndOffs: 0x48},
			{Name: "foo", StartOffs: 0x100, EndOffs: 0x104},
		},
		kind: elfKind,
	}
}

func TestHandler_LookupAddress(t *testing.T) {
	tests := []struct {
		name string
		offs uint64
		opts Options
		want string
	}{
		{"found", 0x1234, Options{}, "/src/main.c:42+0x4\n"},
		{"found with function", 0x1234, Options{ShowFunc: true}, "main+0x34\n/src/main.c:42+0x4\n"},
		{"found verbose", 0x1234, Options{Verbose: true},
			"<debug info: type=ELF symtab, has symbols, has line numbers>\n/src/main.c:42+0x4\n"},
		{"no line info", 0x2010, Options{}, "??:0\n"},
		{"no line info with function", 0x2010, Options{ShowFunc: true, Verbose: true},
			"<debug info: type=PECOFF symtab, has symbols, NO line numbers>\nstripped+0x10\n??:0\n"},
		{"not found", 0x9999, Options{}, ""},
		{"not found with function", 0x9999, Options{ShowFunc: true}, "?\n"},
		{"not found verbose", 0x9999, Options{ShowFunc: true, Verbose: true}, "drsym_lookup_address error 4\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			NewHandler(testLibrary(), &out, tt.opts).LookupAddress("/lib/m.so", tt.offs)
			if out.String() != tt.want {
				t.Fatalf("got %q; want %q", out.String(), tt.want)
			}
		})
	}
}

func TestHandler_LookupSymbol(t *testing.T) {
	tests := []struct {
		name string
		sym  string
		opts Options
		want string
	}{
		{"found", "foo", Options{}, "+0x10\n"},
		{"missing", "nope", Options{}, "??\n"},
		{"missing verbose", "nope", Options{Verbose: true},
			"<debug info: type=ELF symtab, has symbols, has line numbers>\ndrsym error 4 looking up \"nope\" in \"/lib/m.so\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			NewHandler(testLibrary(), &out, tt.opts).LookupSymbol("/lib/m.so", tt.sym)
			if out.String() != tt.want {
				t.Fatalf("got %q; want %q", out.String(), tt.want)
			}
		})
	}
}

func TestHandler_LookupSymbol_KindUnknown(t *testing.T) {
	lib := testLibrary()
	lib.kindErr = symbolizer.ErrLoadFailed
	var out bytes.Buffer
	NewHandler(lib, &out, Options{Verbose: true}).LookupSymbol("/lib/m.so", "foo")
	if out.String() != "+0x10\n" {
		t.Fatalf("debug kind line must be skipped when the query fails, got %q", out.String())
	}
}

func TestHandler_EnumerateSymbols(t *testing.T) {
	tests := []struct {
		name   string
		match  string
		search bool
		opts   Options
		err    error
		want   string
	}{
		{"list all", "", false, Options{}, nil, "foo +0x10-0x20\nbar +0x20-0x48\nfoo +0x100-0x104\n"},
		{"exact enum", "foo", false, Options{}, nil, "foo +0x10-0x20\nfoo +0x100-0x104\n"},
		{"search", "ba*", true, Options{}, nil, "bar +0x20-0x48\n"},
		{"search without matches", "zzz*", true, Options{}, nil, ""},
		{"error quiet", "foo", false, Options{}, symbolizer.ErrLoadFailed, ""},
		{"error verbose", "foo", true, Options{Verbose: true}, symbolizer.ErrInvalidParameter,
			"<debug info: type=ELF symtab, has symbols, has line numbers>\nsearch/enum error 1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lib := testLibrary()
			lib.enumErr = tt.err
			var out bytes.Buffer
			NewHandler(lib, &out, tt.opts).EnumerateSymbols("/lib/m.so", tt.match, tt.search, false)
			if out.String() != tt.want {
				t.Fatalf("got %q; want %q", out.String(), tt.want)
			}
		})
	}
}

func TestHandler_EnumerateLines(t *testing.T) {
	lib := testLibrary()
	lib.lines = []symbolizer.LineInfo{
		{CUName: "main.c", File: "/src/main.c", Line: 10, Addr: 0x1200},
		{Line: 3, Addr: 0x10},
	}
	var out bytes.Buffer
	NewHandler(lib, &out, Options{}).EnumerateLines("/lib/m.so")
	want := "cu=\"main.c\", file=\"/src/main.c\" line=10, addr=0x0000000000001200\n" +
		"cu=\"<null>\", file=\"<null>\" line=3, addr=0x0000000000000010\n"
	if out.String() != want {
		t.Fatalf("got %q; want %q", out.String(), want)
	}

	lib.enumErr = symbolizer.ErrFeatureNotAvailable
	out.Reset()
	NewHandler(lib, &out, Options{Verbose: true}).EnumerateLines("/lib/m.so")
	want = "<debug info: type=ELF symtab, has symbols, has line numbers>\nline enum error 7\n"
	if out.String() != want {
		t.Fatalf("got %q; want %q", out.String(), want)
	}
}

func TestHandler_DebugKindTypes(t *testing.T) {
	tests := []struct {
		kind symbolizer.DebugKind
		want string
	}{
		{0, "<debug info: type=no symbols, NO symbols, NO line numbers>\n"},
		{symbolizer.KindPDB | symbolizer.KindSymbols, "<debug info: type=PDB, has symbols, NO line numbers>\n"},
		{symbolizer.KindPECOFFSymtab | symbolizer.KindPDB, "<debug info: type=PECOFF symtab, NO symbols, NO line numbers>\n"},
	}
	for _, tt := range tests {
		var out bytes.Buffer
		NewHandler(nil, &out, Options{}).printDebugKind(tt.kind)
		if out.String() != tt.want {
			t.Errorf("kind %b: got %q; want %q", tt.kind, out.String(), tt.want)
		}
	}
}

func TestHandler_KindReport(t *testing.T) {
	lib := testLibrary()
	lib.kind |= symbolizer.KindDWARF | symbolizer.KindBTF
	lib.details = symbolizer.ModuleDetails{BuildID: "abcd", DebugFile: "/usr/lib/debug/.build-id/ab/cd.debug"}
	var out bytes.Buffer
	NewHandler(lib, &out, Options{}).KindReport("/lib/m.so")
	want := "<debug info: type=ELF symtab, has symbols, has line numbers>\n" +
		"<extra debug info: DWARF, BTF>\n" +
		"build-id=abcd\n" +
		"debug-file=/usr/lib/debug/.build-id/ab/cd.debug\n"
	if out.String() != want {
		t.Fatalf("got %q; want %q", out.String(), want)
	}

	lib = testLibrary()
	lib.details = symbolizer.ModuleDetails{PDBPath: `C:\build\m.pdb`}
	out.Reset()
	NewHandler(lib, &out, Options{}).KindReport("/lib/m.dll")
	if want := "<debug info: type=ELF symtab, has symbols, has line numbers>\n<extra debug info: none>\npdb=C:\\build\\m.pdb\n"; out.String() != want {
		t.Fatalf("got %q; want %q", out.String(), want)
	}
}

type mockTranslator struct {
	regions map[uint64]uint64
}

func (m *mockTranslator) Translate(addr uint64) (string, uint64, error) {
	offs, ok := m.regions[addr]
	if !ok {
		return "", 0, symbolizer.ErrSymbolNotFound
	}
	return "/lib/m.so", offs, nil
}

func TestHandler_LookupProcessAddress(t *testing.T) {
	tr := &mockTranslator{regions: map[uint64]uint64{0x7f0000001234: 0x1234}}
	lib := testLibrary()
	var out bytes.Buffer
	h := NewHandler(lib, &out, Options{ShowFunc: true})
	h.LookupProcessAddress(tr, 0x7f0000001234)
	h.LookupProcessAddress(tr, 0xdead)
	if want := "main+0x34\n/src/main.c:42+0x4\n?\n"; out.String() != want {
		t.Fatalf("got %q; want %q", out.String(), want)
	}
	if len(lib.lookups) != 1 || lib.lookups[0] != "/lib/m.so" {
		t.Fatalf("unexpected library lookups %v", lib.lookups)
	}
}
