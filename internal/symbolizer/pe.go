package symbolizer

import (
	"bytes"
	"debug/pe"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

const (
	imageSymClassExternal   = 2
	imageSymClassStatic     = 3
	imageDebugTypeCodeView  = 2
	debugDirectoryEntrySize = 28
	exportDirectorySize     = 40
)

func loadPE(f *os.File, path string) (*Module, error) {
	slog.Info("Loading PE module", "path", path)
	pf, err := pe.NewFile(f)
	if err != nil {
		return nil, err
	}
	img := &peImage{f: pf}
	details := ModuleDetails{Path: path, Format: "pe", Base: img.imageBase()}

	syms := img.coffSymbols()
	exports := img.exports()
	if len(pf.Symbols) > 0 || len(exports) > 0 {
		details.Kind |= KindPECOFFSymtab
	}
	syms = append(syms, exports...)
	inferSizes(syms, img.sectionEnd)

	if pdb := img.codeViewPDB(); pdb != "" {
		details.Kind |= KindPDB
		details.PDBPath = pdb
	}

	var lines lineTable
	if pf.Section(".debug_info") != nil && pf.Section(".debug_line") != nil {
		details.Kind |= KindDWARF
		lines = newDwarfLines(details.Base, pf.DWARF)
	}
	return newModule(details, syms, lines, f), nil
}

type peImage struct {
	f *pe.File
}

func (p *peImage) imageBase() uint64 {
	switch oh := p.f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		return uint64(oh.ImageBase)
	case *pe.OptionalHeader64:
		return oh.ImageBase
	}
	return 0
}

func (p *peImage) dataDirectory(idx int) (pe.DataDirectory, bool) {
	var dirs []pe.DataDirectory
	switch oh := p.f.OptionalHeader.(type) {
	case *pe.OptionalHeader32:
		dirs = oh.DataDirectory[:min(oh.NumberOfRvaAndSizes, uint32(len(oh.DataDirectory)))]
	case *pe.OptionalHeader64:
		dirs = oh.DataDirectory[:min(oh.NumberOfRvaAndSizes, uint32(len(oh.DataDirectory)))]
	}
	if idx >= len(dirs) || dirs[idx].VirtualAddress == 0 || dirs[idx].Size == 0 {
		return pe.DataDirectory{}, false
	}
	return dirs[idx], true
}

func (p *peImage) sectionFor(rva uint32) *pe.Section {
	for _, s := range p.f.Sections {
		size := max(s.VirtualSize, s.Size)
		if rva >= s.VirtualAddress && rva < s.VirtualAddress+size {
			return s
		}
	}
	return nil
}

func (p *peImage) sectionEnd(rva uint64) uint64 {
	if s := p.sectionFor(uint32(rva)); s != nil {
		return uint64(s.VirtualAddress) + uint64(max(s.VirtualSize, s.Size))
	}
	return rva
}

func (p *peImage) read(rva uint32, n int) ([]byte, error) {
	s := p.sectionFor(rva)
	if s == nil {
		return nil, fmt.Errorf("rva 0x%x is outside every section", rva)
	}
	off := int64(rva - s.VirtualAddress)
	if avail := int64(max(s.VirtualSize, s.Size)) - off; n < 0 || int64(n) > avail {
		return nil, fmt.Errorf("read of %d bytes at rva 0x%x overruns section %s", n, rva, s.Name)
	}
	buf := make([]byte, n)
	if _, err := s.ReadAt(buf, off); err != nil {
		return nil, err
	}
	return buf, nil
}

func (p *peImage) cString(rva uint32) string {
	s := p.sectionFor(rva)
	if s == nil {
		return ""
	}
	var out []byte
	chunk := make([]byte, 64)
	off := int64(rva - s.VirtualAddress)
	for {
		n, err := s.ReadAt(chunk, off)
		if i := bytes.IndexByte(chunk[:n], 0); i >= 0 {
			return string(append(out, chunk[:i]...))
		}
		out = append(out, chunk[:n]...)
		if err != nil || n == 0 {
			return string(out)
		}
		off += int64(n)
	}
}

func (p *peImage) coffSymbols() []Symbol {
	var syms []Symbol
	for _, s := range p.f.Symbols {
		if s.SectionNumber <= 0 || int(s.SectionNumber) > len(p.f.Sections) {
			continue
		}
		if s.StorageClass != imageSymClassExternal && s.StorageClass != imageSymClassStatic {
			continue
		}
		// section definition records carry the section's own name
		if s.StorageClass == imageSymClassStatic && s.Value == 0 && strings.HasPrefix(s.Name, ".") {
			continue
		}
		sec := p.f.Sections[s.SectionNumber-1]
		start := uint64(sec.VirtualAddress) + uint64(s.Value)
		syms = append(syms, newSymbol(s.Name, start, start, s.StorageClass == imageSymClassStatic))
	}
	return syms
}

func (p *peImage) exports() []Symbol {
	dir, ok := p.dataDirectory(pe.IMAGE_DIRECTORY_ENTRY_EXPORT)
	if !ok {
		return nil
	}
	hdr, err := p.read(dir.VirtualAddress, exportDirectorySize)
	if err != nil {
		slog.Debug("Unreadable export directory", "error", err)
		return nil
	}
	numNames := binary.LittleEndian.Uint32(hdr[24:28])
	funcsRVA := binary.LittleEndian.Uint32(hdr[28:32])
	namesRVA := binary.LittleEndian.Uint32(hdr[32:36])
	ordinalsRVA := binary.LittleEndian.Uint32(hdr[36:40])
	numFuncs := binary.LittleEndian.Uint32(hdr[20:24])

	names, err1 := p.read(namesRVA, int(numNames)*4)
	ordinals, err2 := p.read(ordinalsRVA, int(numNames)*2)
	funcs, err3 := p.read(funcsRVA, int(numFuncs)*4)
	if err := errors.Join(err1, err2, err3); err != nil {
		slog.Debug("Truncated export directory", "error", err)
		return nil
	}

	syms := make([]Symbol, 0, numNames)
	for i := uint32(0); i < numNames; i++ {
		ord := uint32(binary.LittleEndian.Uint16(ordinals[i*2:]))
		if ord >= numFuncs {
			continue
		}
		rva := binary.LittleEndian.Uint32(funcs[ord*4:])
		// forwarders point back into the export directory
		if rva == 0 || (rva >= dir.VirtualAddress && rva < dir.VirtualAddress+dir.Size) {
			continue
		}
		name := p.cString(binary.LittleEndian.Uint32(names[i*4:]))
		if name == "" {
			continue
		}
		syms = append(syms, newSymbol(name, uint64(rva), uint64(rva), false))
	}
	return syms
}

// codeViewPDB returns the PDB path recorded in an RSDS CodeView entry of the
// debug directory.
func (p *peImage) codeViewPDB() string {
	dir, ok := p.dataDirectory(pe.IMAGE_DIRECTORY_ENTRY_DEBUG)
	if !ok {
		return ""
	}
	entries, err := p.read(dir.VirtualAddress, int(dir.Size))
	if err != nil {
		return ""
	}
	for len(entries) >= debugDirectoryEntrySize {
		e := entries[:debugDirectoryEntrySize]
		entries = entries[debugDirectoryEntrySize:]
		if binary.LittleEndian.Uint32(e[12:16]) != imageDebugTypeCodeView {
			continue
		}
		size := binary.LittleEndian.Uint32(e[16:20])
		rva := binary.LittleEndian.Uint32(e[20:24])
		// "RSDS" + GUID + age + path
		if size < 24+1 || rva == 0 {
			continue
		}
		sig, err := p.read(rva, 4)
		if err != nil || string(sig) != "RSDS" {
			continue
		}
		return p.cString(rva + 24)
	}
	return ""
}
