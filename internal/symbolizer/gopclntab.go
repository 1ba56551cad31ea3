package symbolizer

import (
	"debug/elf"
	"debug/gosym"
	"errors"
	"fmt"
	"log/slog"
)

func readGoSymbolTable(ef *elf.File) (*gosym.Table, error) {
	pcln := ef.Section(".gopclntab")
	if pcln == nil {
		return nil, errors.New("no .gopclntab section")
	}
	slog.Debug("Loading Go line table")
	pclnData, err := pcln.Data()
	if err != nil {
		return nil, fmt.Errorf("read .gopclntab: %v", err)
	}

	var symtabData []byte
	if symsec := ef.Section(".gosymtab"); symsec != nil {
		if data, err := symsec.Data(); err == nil {
			symtabData = data
		}
	}

	var textAddr uint64
	if text := ef.Section(".text"); text != nil {
		textAddr = text.Addr
	}
	// names live in the pclntab itself, so an empty .gosymtab is fine
	return gosym.NewTable(symtabData, gosym.NewLineTable(pclnData, textAddr))
}

// goLines is a lineTable backed by the Go pclntab.
type goLines struct {
	tab  *gosym.Table
	base uint64
}

func (g *goLines) lineAt(offs uint64) (string, uint64, uint64, error) {
	file, line, fn := g.tab.PCToLine(offs + g.base)
	if fn == nil || line == 0 {
		return "", 0, 0, errors.New("pc not found in gopclntab")
	}
	// gopclntab does not record where a line's instructions start
	return file, uint64(line), 0, nil
}

// forEachLine walks every function's pc range and reports each point where
// the file:line changes.
func (g *goLines) forEachLine(fn LineFunc) error {
	for i := range g.tab.Funcs {
		f := &g.tab.Funcs[i]
		if f.Entry < g.base || f.End <= f.Entry {
			continue
		}
		cu := f.PackageName()
		var lastFile string
		var lastLine int
		for pc := f.Entry; pc < f.End; pc++ {
			file, line, _ := g.tab.PCToLine(pc)
			if line == 0 || (file == lastFile && line == lastLine) {
				continue
			}
			lastFile, lastLine = file, line
			if !fn(&LineInfo{CUName: cu, File: file, Line: uint64(line), Addr: pc - g.base}) {
				return nil
			}
		}
	}
	return nil
}

func goFunctions(tab *gosym.Table, base uint64) []Symbol {
	syms := make([]Symbol, 0, len(tab.Funcs))
	for _, fn := range tab.Funcs {
		if fn.Entry < base {
			continue
		}
		syms = append(syms, Symbol{Name: fn.Name, Start: fn.Entry - base, End: fn.End - base})
	}
	return syms
}
