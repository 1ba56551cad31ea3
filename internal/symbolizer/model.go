package symbolizer

// Symbol is one entry of a module's symbol table. Start and End are
// offsets relative to the module's preferred load base.
type Symbol struct {
	Name    string
	Mangled string // raw name as stored in the module, empty if Name is already raw
	Start   uint64
	End     uint64
	Local   bool
}

// Info is the result of an address lookup or one step of a symbol
// enumeration.
type Info struct {
	Name      string
	Demangled bool
	StartOffs uint64
	EndOffs   uint64
	File      string
	Line      uint64
	LineOffs  uint64
	DebugKind DebugKind
}

// LineInfo is one source line to address mapping. Addr is a module offset.
type LineInfo struct {
	CUName string
	File   string
	Line   uint64
	Addr   uint64
}

// SymbolFunc receives enumerated symbols. Returning false stops the
// enumeration.
type SymbolFunc func(info *Info) bool

// LineFunc receives enumerated lines. Returning false stops the enumeration.
type LineFunc func(info *LineInfo) bool

// DebugKind describes which debug information a module carries.
type DebugKind uint32

const (
	KindSymbols DebugKind = 1 << iota
	KindLineNums
	KindELFSymtab
	KindPECOFFSymtab
	KindPDB
	KindDWARF
	KindGoPCLN
	KindBTF
)

func (k DebugKind) Has(flag DebugKind) bool { return k&flag != 0 }

// ModuleDetails carries the identifying information gathered while loading
// a module.
type ModuleDetails struct {
	Path      string
	Format    string
	Base      uint64
	BuildID   string
	DebugFile string
	PDBPath   string
	Kind      DebugKind
}
