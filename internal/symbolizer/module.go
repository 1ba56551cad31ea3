package symbolizer

import (
	"io"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// lineTable maps module offsets to source lines.
type lineTable interface {
	lineAt(offs uint64) (file string, line uint64, lineOffs uint64, err error)
	forEachLine(fn LineFunc) error
}

// Module is a loaded binary: its sorted symbol table, optional line table
// and the files backing them.
type Module struct {
	details ModuleDetails
	syms    []Symbol
	byName  map[string][]int
	lines   lineTable
	closers []io.Closer
}

func newModule(details ModuleDetails, syms []Symbol, lines lineTable, closers ...io.Closer) *Module {
	sort.SliceStable(syms, func(i, j int) bool { return syms[i].Start < syms[j].Start })
	syms = dedupSymbols(syms)

	m := &Module{
		details: details,
		syms:    syms,
		byName:  make(map[string][]int, len(syms)),
		lines:   lines,
		closers: closers,
	}
	for i, s := range syms {
		m.byName[s.Name] = append(m.byName[s.Name], i)
		if s.Mangled != "" && s.Mangled != s.Name {
			m.byName[s.Mangled] = append(m.byName[s.Mangled], i)
		}
	}
	if len(syms) > 0 {
		m.details.Kind |= KindSymbols
	}
	if lines != nil {
		m.details.Kind |= KindLineNums
	}
	return m
}

// dedupSymbols drops entries that appear in both .symtab and .dynsym.
func dedupSymbols(syms []Symbol) []Symbol {
	if len(syms) < 2 {
		return syms
	}
	type key struct {
		name  string
		start uint64
	}
	seen := make(map[key]struct{}, len(syms))
	out := syms[:0]
	for _, s := range syms {
		k := key{s.Name, s.Start}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, s)
	}
	return out
}

// inferSizes closes unsized symbols at the next symbol start, or at the end
// of their section. A symbol outside every section keeps a zero size.
func inferSizes(syms []Symbol, sectionEnd func(uint64) uint64) {
	sort.SliceStable(syms, func(i, j int) bool { return syms[i].Start < syms[j].Start })
	for i := range syms {
		if syms[i].End > syms[i].Start {
			continue
		}
		end := max(sectionEnd(syms[i].Start), syms[i].Start)
		for j := i + 1; j < len(syms); j++ {
			if syms[j].Start > syms[i].Start {
				end = min(end, syms[j].Start)
				break
			}
		}
		syms[i].End = end
	}
}

func (m *Module) Details() ModuleDetails { return m.details }

func (m *Module) Kind() DebugKind { return m.details.Kind }

// maxContainerScan bounds how far back symbolAt looks for a sized symbol
// enclosing the offset when the nearest preceding symbol ends before it.
const maxContainerScan = 16

func (m *Module) symbolAt(offs uint64) (*Symbol, bool) {
	i := sort.Search(len(m.syms), func(i int) bool { return m.syms[i].Start > offs })
	if i == 0 {
		return nil, false
	}
	best := &m.syms[i-1]
	if offs < best.End || offs == best.Start {
		return best, true
	}
	for j := i - 2; j >= 0 && j >= i-1-maxContainerScan; j-- {
		s := &m.syms[j]
		if s.End > offs {
			return s, true
		}
	}
	return nil, false
}

func (m *Module) lookupAddress(offs uint64) (*Info, error) {
	sym, ok := m.symbolAt(offs)
	if !ok {
		return nil, statusErr(ErrSymbolNotFound, "no symbol at offset 0x%x in %s", offs, m.details.Path)
	}
	info := m.infoFor(sym)
	if m.lines == nil {
		return info, statusErr(ErrLineNotAvailable, "%s has no line table", m.details.Path)
	}
	file, line, lineOffs, err := m.lines.lineAt(offs)
	if err != nil {
		return info, statusErr(ErrLineNotAvailable, "no line for offset 0x%x: %v", offs, err)
	}
	info.File = file
	info.Line = line
	info.LineOffs = lineOffs
	return info, nil
}

// lookupSymbol resolves an exact name, preferring global symbols and then
// the lowest offset.
func (m *Module) lookupSymbol(name string) (uint64, error) {
	idx, ok := m.byName[name]
	if !ok || len(idx) == 0 {
		return 0, statusErr(ErrSymbolNotFound, "%q not found in %s", name, m.details.Path)
	}
	best := m.syms[idx[0]]
	for _, i := range idx[1:] {
		s := m.syms[i]
		if best.Local && !s.Local {
			best = s
			continue
		}
		if best.Local == s.Local && s.Start < best.Start {
			best = s
		}
	}
	return best.Start, nil
}

func (m *Module) enumerate(keep func(*Symbol) bool, fn SymbolFunc) {
	for i := range m.syms {
		s := &m.syms[i]
		if keep != nil && !keep(s) {
			continue
		}
		if !fn(m.infoFor(s)) {
			return
		}
	}
}

func (m *Module) enumerateLines(fn LineFunc) error {
	if m.lines == nil {
		return statusErr(ErrLineNotAvailable, "%s has no line table", m.details.Path)
	}
	return m.lines.forEachLine(fn)
}

func (m *Module) infoFor(s *Symbol) *Info {
	return &Info{
		Name:      s.Name,
		Demangled: s.Mangled != "" && s.Mangled != s.Name,
		StartOffs: s.Start,
		EndOffs:   s.End,
		DebugKind: m.details.Kind,
	}
}

// Close releases the files backing the module.
func (m *Module) Close() error {
	var result *multierror.Error
	for _, c := range m.closers {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	m.closers = nil
	return result.ErrorOrNil()
}
