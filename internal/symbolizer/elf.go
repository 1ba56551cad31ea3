package symbolizer

import (
	"debug/elf"
	"debug/gosym"
	"io"
	"log/slog"
	"os"

	"github.com/cilium/ebpf/btf"
)

// STT_GNU_IFUNC, not named by debug/elf
const sttGNUIFunc = elf.SymType(10)

func loadELF(f *os.File, path string, debugDirs []string) (*Module, error) {
	slog.Info("Loading ELF module", "path", path)
	ef, err := elf.NewFile(f)
	if err != nil {
		return nil, err
	}
	details := ModuleDetails{
		Path:    path,
		Format:  "elf",
		Base:    preferredBase(ef),
		BuildID: buildID(ef),
	}
	closers := []io.Closer{f}

	dbg := ef
	if !hasDebugInfo(ef) {
		if p := findDebugFile(ef, path, debugDirs); p != "" {
			df, err := elf.Open(p)
			if err != nil {
				slog.Warn("Ignoring unreadable debug file", "path", p, "error", err)
			} else {
				slog.Info("Using separate debug file", "module", path, "debug_file", p)
				dbg = df
				details.DebugFile = p
				closers = append(closers, df)
			}
		}
	}

	syms := readElfSymbols(ef, details.Base, true)
	if dbg != ef {
		syms = append(syms, readElfSymbols(dbg, details.Base, false)...)
	}
	if hasSymtab(ef) || hasSymtab(dbg) {
		details.Kind |= KindELFSymtab
	}

	var goTab *gosym.Table
	if tab, err := readGoSymbolTable(ef); err == nil {
		goTab = tab
		details.Kind |= KindGoPCLN
	} else {
		slog.Debug("Go symbol table not available", "path", path, "error", err)
	}

	var dl *dwarfLines
	if hasDebugInfo(dbg) {
		details.Kind |= KindDWARF
		dl = newDwarfLines(details.Base, dbg.DWARF)
	}

	if len(syms) == 0 {
		switch {
		case goTab != nil:
			syms = goFunctions(goTab, details.Base)
		case dl != nil:
			if data, err := dl.dwarf(); err == nil {
				syms = dwarfFunctions(data, details.Base)
			} else {
				slog.Info("Dwarf data not available", "path", path, "error", err)
			}
		}
	}

	inferSizes(syms, elfSectionEnd(ef, details.Base))

	var lines lineTable
	switch {
	case dl != nil && hasLineSection(dbg):
		lines = dl
	case goTab != nil:
		lines = &goLines{tab: goTab, base: details.Base}
	}

	if ef.Section(".BTF") != nil {
		if _, err := btf.LoadSpecFromReader(f); err == nil {
			details.Kind |= KindBTF
		} else {
			slog.Debug("Ignoring unparseable BTF", "path", path, "error", err)
		}
	}

	return newModule(details, syms, lines, closers...), nil
}

// preferredBase is the load base module offsets are relative to: the lowest
// PT_LOAD vaddr, aligned down to the segment alignment.
func preferredBase(ef *elf.File) uint64 {
	var base uint64
	found := false
	for _, prog := range ef.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		vaddr := prog.Vaddr
		if prog.Align > 1 && prog.Align&(prog.Align-1) == 0 {
			vaddr &^= prog.Align - 1
		}
		if !found || vaddr < base {
			base = vaddr
			found = true
		}
	}
	return base
}

// elfSectionEnd returns the end offset of the allocated section holding an
// offset, or the offset itself when no section does.
func elfSectionEnd(ef *elf.File, base uint64) func(uint64) uint64 {
	return func(offs uint64) uint64 {
		addr := offs + base
		for _, s := range ef.Sections {
			if s.Flags&elf.SHF_ALLOC == 0 || s.Flags&elf.SHF_TLS != 0 {
				continue
			}
			if addr >= s.Addr && addr-s.Addr < s.Size {
				return s.Addr + s.Size - base
			}
		}
		return offs
	}
}

func readElfSymbols(ef *elf.File, base uint64, dynamic bool) []Symbol {
	var raw []elf.Symbol
	if section := ef.Section(".symtab"); section != nil && section.Type != elf.SHT_NOBITS {
		if st, err := ef.Symbols(); err == nil {
			raw = append(raw, st...)
		}
	}
	if section := ef.Section(".dynsym"); dynamic && section != nil && section.Type != elf.SHT_NOBITS {
		if st, err := ef.DynamicSymbols(); err == nil {
			raw = append(raw, st...)
		}
	}

	syms := make([]Symbol, 0, len(raw))
	for _, s := range raw {
		switch elf.ST_TYPE(s.Info) {
		case elf.STT_FUNC, elf.STT_OBJECT, sttGNUIFunc:
		default:
			continue
		}
		if s.Section == elf.SHN_UNDEF || s.Value == 0 || s.Name == "" || s.Value < base {
			continue
		}
		start := s.Value - base
		local := elf.ST_BIND(s.Info) == elf.STB_LOCAL
		syms = append(syms, newSymbol(s.Name, start, start+s.Size, local))
	}
	return syms
}

func hasSymtab(ef *elf.File) bool {
	for _, name := range []string{".symtab", ".dynsym"} {
		if s := ef.Section(name); s != nil && s.Type != elf.SHT_NOBITS {
			return true
		}
	}
	return false
}

func hasDebugInfo(ef *elf.File) bool {
	return hasSection(ef, ".debug_info") || hasSection(ef, ".zdebug_info")
}

func hasLineSection(ef *elf.File) bool {
	return hasSection(ef, ".debug_line") || hasSection(ef, ".zdebug_line")
}

func hasSection(ef *elf.File, name string) bool {
	s := ef.Section(name)
	return s != nil && s.Type != elf.SHT_NOBITS
}
