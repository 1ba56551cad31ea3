package symbolizer

import "log/slog"

type ProcMapsProvider interface {
	FindRegion(pc uint64) *MapRegion
	Refresh() error
}

// ProcessTranslator turns absolute addresses of a running process into
// (module path, module offset) pairs.
type ProcessTranslator struct {
	pid  int
	maps ProcMapsProvider
}

func NewProcessTranslator(pid int, maps ProcMapsProvider) *ProcessTranslator {
	return &ProcessTranslator{pid: pid, maps: maps}
}

func (t *ProcessTranslator) Translate(addr uint64) (string, uint64, error) {
	r := t.maps.FindRegion(addr)
	if r == nil {
		// the process may have mapped new modules since the snapshot
		if err := t.maps.Refresh(); err != nil {
			slog.Warn("Failed to refresh process maps", "pid", t.pid, "error", err)
		} else {
			r = t.maps.FindRegion(addr)
		}
	}
	if r == nil {
		return "", 0, statusErr(ErrSymbolNotFound, "0x%x is not mapped in pid %d", addr, t.pid)
	}
	if !r.FileBacked() {
		return "", 0, statusErr(ErrSymbolNotFound, "0x%x is in %q, not a module", addr, r.Path)
	}
	return r.Path, addr - r.Start + r.Offset, nil
}
