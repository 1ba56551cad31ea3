package symbolizer

import (
	"debug/dwarf"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// dwarfLines is a lineTable backed by DWARF .debug_line. The DWARF data is
// parsed on first use so symbol-only queries never pay for it.
type dwarfLines struct {
	load func() (*dwarf.Data, error)
	base uint64

	once sync.Once
	data *dwarf.Data
	err  error
}

func newDwarfLines(base uint64, load func() (*dwarf.Data, error)) *dwarfLines {
	return &dwarfLines{load: load, base: base}
}

func (d *dwarfLines) dwarf() (*dwarf.Data, error) {
	d.once.Do(func() {
		slog.Debug("Loading DWARF data")
		d.data, d.err = d.load()
	})
	return d.data, d.err
}

func (d *dwarfLines) lineAt(offs uint64) (string, uint64, uint64, error) {
	data, err := d.dwarf()
	if err != nil {
		return "", 0, 0, err
	}
	pc := offs + d.base
	cu, err := data.Reader().SeekPC(pc)
	if err != nil {
		return "", 0, 0, err
	}
	lr, err := data.LineReader(cu)
	if err != nil {
		return "", 0, 0, err
	}
	if lr == nil {
		return "", 0, 0, errors.New("compilation unit has no line program")
	}
	var entry dwarf.LineEntry
	if err := lr.SeekPC(pc, &entry); err != nil {
		return "", 0, 0, err
	}
	file := ""
	if entry.File != nil {
		file = entry.File.Name
	}
	return file, uint64(entry.Line), pc - entry.Address, nil
}

func (d *dwarfLines) forEachLine(fn LineFunc) error {
	data, err := d.dwarf()
	if err != nil {
		return statusErr(ErrLineNotAvailable, "reading DWARF: %v", err)
	}
	rdr := data.Reader()
	for {
		cu, err := rdr.Next()
		if err != nil {
			return statusErr(ErrGeneric, "walking compilation units: %v", err)
		}
		if cu == nil {
			return nil
		}
		if cu.Tag != dwarf.TagCompileUnit {
			rdr.SkipChildren()
			continue
		}
		rdr.SkipChildren()

		lr, err := data.LineReader(cu)
		if err != nil {
			slog.Warn("Skipping compilation unit with unreadable line program", "offset", cu.Offset, "error", err)
			continue
		}
		if lr == nil {
			continue
		}
		cuName, _ := cu.Val(dwarf.AttrName).(string)
		var entry dwarf.LineEntry
		for {
			if err := lr.Next(&entry); err != nil {
				if err != io.EOF {
					slog.Warn("Truncated line program", "cu", cuName, "error", err)
				}
				break
			}
			if entry.EndSequence {
				continue
			}
			info := &LineInfo{CUName: cuName, Line: uint64(entry.Line)}
			if entry.File != nil {
				info.File = entry.File.Name
			}
			if entry.Address >= d.base {
				info.Addr = entry.Address - d.base
			}
			if !fn(info) {
				return nil
			}
		}
	}
}

// dwarfFunctions harvests subprogram ranges as a fallback symbol table for
// modules whose symbol tables were stripped.
func dwarfFunctions(data *dwarf.Data, base uint64) []Symbol {
	var syms []Symbol
	rdr := data.Reader()
	for {
		ent, err := rdr.Next()
		if err != nil {
			slog.Warn("Stopping DWARF function scan", "error", err)
			return syms
		}
		if ent == nil {
			return syms
		}
		if ent.Tag != dwarf.TagSubprogram {
			continue
		}

		var lowpc, highpc uint64
		// Ranges handles DWARF v5 rnglists and v2/v4 ranges as well as lowpc/highpc
		if ranges, err := data.Ranges(ent); err == nil && len(ranges) > 0 {
			lowpc, highpc = ranges[0][0], ranges[0][1]
			for _, r := range ranges[1:] {
				lowpc = min(lowpc, r[0])
				highpc = max(highpc, r[1])
			}
		} else {
			if v, ok := ent.Val(dwarf.AttrLowpc).(uint64); ok {
				lowpc = v
			}
			switch v := ent.Val(dwarf.AttrHighpc).(type) {
			case uint64:
				highpc = v
			case int64:
				if lowpc != 0 && v > 0 {
					highpc = lowpc + uint64(v)
				}
			}
		}
		if lowpc == 0 || highpc <= lowpc || lowpc < base {
			continue
		}

		name, _ := ent.Val(dwarf.AttrLinkageName).(string)
		if name == "" {
			name, _ = ent.Val(dwarf.AttrName).(string)
		}
		if name == "" {
			continue
		}
		external, _ := ent.Val(dwarf.AttrExternal).(bool)
		syms = append(syms, newSymbol(name, lowpc-base, highpc-base, !external))
	}
}
