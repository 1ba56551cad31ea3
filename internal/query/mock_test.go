package query

import (
	"bytes"

	"github.com/VladMinzatu/symquery/internal/symbolizer"
)

type mockLibrary struct {
	infos     map[uint64]*symbolizer.Info
	symbols   map[string]uint64
	enumSyms  []symbolizer.Info
	lines     []symbolizer.LineInfo
	kind      symbolizer.DebugKind
	kindErr   error
	details   symbolizer.ModuleDetails
	enumErr   error
	searchPat []string
	lookups   []string
}

func (m *mockLibrary) LookupAddress(path string, offs uint64) (*symbolizer.Info, error) {
	m.lookups = append(m.lookups, path)
	info, ok := m.infos[offs]
	if !ok {
		return nil, symbolizer.ErrSymbolNotFound
	}
	if info.File == "" {
		return info, symbolizer.ErrLineNotAvailable
	}
	return info, nil
}

func (m *mockLibrary) LookupSymbol(path, name string) (uint64, error) {
	offs, ok := m.symbols[name]
	if !ok {
		return 0, symbolizer.ErrSymbolNotFound
	}
	return offs, nil
}

func (m *mockLibrary) EnumerateSymbols(path string, fn symbolizer.SymbolFunc) error {
	if m.enumErr != nil {
		return m.enumErr
	}
	for i := range m.enumSyms {
		if !fn(&m.enumSyms[i]) {
			break
		}
	}
	return nil
}

func (m *mockLibrary) SearchSymbols(path, pattern string, full bool, fn symbolizer.SymbolFunc) error {
	m.searchPat = append(m.searchPat, pattern)
	if m.enumErr != nil {
		return m.enumErr
	}
	for i := range m.enumSyms {
		if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
			prefix := pattern[:len(pattern)-1]
			if len(m.enumSyms[i].Name) < len(prefix) || m.enumSyms[i].Name[:len(prefix)] != prefix {
				continue
			}
		}
		if !fn(&m.enumSyms[i]) {
			break
		}
	}
	return nil
}

func (m *mockLibrary) EnumerateLines(path string, fn symbolizer.LineFunc) error {
	if m.enumErr != nil {
		return m.enumErr
	}
	for i := range m.lines {
		if !fn(&m.lines[i]) {
			break
		}
	}
	return nil
}

func (m *mockLibrary) DebugKind(path string) (symbolizer.DebugKind, error) {
	return m.kind, m.kindErr
}

func (m *mockLibrary) Details(path string) (symbolizer.ModuleDetails, error) {
	return m.details, nil
}

// flushRecorder records the output written before each Flush.
type flushRecorder struct {
	bytes.Buffer
	flushed []string
	err     error
}

func (f *flushRecorder) Flush() error {
	f.flushed = append(f.flushed, f.String())
	return f.err
}
