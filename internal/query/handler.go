package query

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/VladMinzatu/symquery/internal/exporter"
	"github.com/VladMinzatu/symquery/internal/symbolizer"
)

// Library is the part of the symbol library the handlers call.
type Library interface {
	LookupAddress(path string, offs uint64) (*symbolizer.Info, error)
	LookupSymbol(path, name string) (uint64, error)
	EnumerateSymbols(path string, fn symbolizer.SymbolFunc) error
	SearchSymbols(path, pattern string, full bool, fn symbolizer.SymbolFunc) error
	EnumerateLines(path string, fn symbolizer.LineFunc) error
	DebugKind(path string) (symbolizer.DebugKind, error)
	Details(path string) (symbolizer.ModuleDetails, error)
}

// Translator maps an absolute process address to a module path and offset.
type Translator interface {
	Translate(addr uint64) (string, uint64, error)
}

type Options struct {
	ShowFunc bool
	Verbose  bool
}

// Handler formats library results as the line protocol on out.
type Handler struct {
	lib  Library
	out  io.Writer
	opts Options
	now  exporter.NowFunc
}

func NewHandler(lib Library, out io.Writer, opts Options) *Handler {
	return &Handler{
		lib:  lib,
		out:  out,
		opts: opts,
		now:  func() uint64 { return uint64(time.Now().UnixNano()) },
	}
}

func (h *Handler) printf(format string, args ...any) {
	fmt.Fprintf(h.out, format, args...)
}

// LookupAddress prints the symbol and source line containing offs.
func (h *Handler) LookupAddress(path string, offs uint64) {
	info, err := h.lib.LookupAddress(path, offs)
	if !symbolizer.Found(err) {
		h.lookupFailed(path, offs, err)
		return
	}
	if h.opts.Verbose {
		h.printDebugKind(info.DebugKind)
	}
	if h.opts.ShowFunc {
		h.printf("%s+0x%x\n", info.Name, offs-info.StartOffs)
	}
	if symbolizer.StatusOf(err) == symbolizer.ErrLineNotAvailable {
		h.printf("??:0\n")
		return
	}
	h.printf("%s:%d+0x%x\n", info.File, info.Line, info.LineOffs)
}

func (h *Handler) lookupFailed(path string, offs uint64, err error) {
	slog.Debug("Address lookup failed", "module", path, "offset", offs, "error", err)
	switch {
	case h.opts.Verbose:
		h.printf("drsym_lookup_address error %d\n", symbolizer.StatusOf(err))
	case h.opts.ShowFunc:
		h.printf("?\n")
	}
}

// LookupProcessAddress resolves an absolute address of a running process.
func (h *Handler) LookupProcessAddress(t Translator, addr uint64) {
	path, offs, err := t.Translate(addr)
	if err != nil {
		h.lookupFailed(path, addr, err)
		return
	}
	h.LookupAddress(path, offs)
}

// LookupSymbol prints the offset of an exact symbol name.
func (h *Handler) LookupSymbol(path, name string) {
	if h.opts.Verbose {
		h.printKnownDebugKind(path)
	}
	offs, err := h.lib.LookupSymbol(path, name)
	if symbolizer.Found(err) {
		h.printf("+0x%x\n", offs)
		return
	}
	slog.Debug("Symbol lookup failed", "module", path, "symbol", name, "error", err)
	if h.opts.Verbose {
		h.printf("drsym error %d looking up \"%s\" in \"%s\"\n", symbolizer.StatusOf(err), name, path)
	} else {
		h.printf("??\n")
	}
}

// EnumerateSymbols prints every symbol of the module. With search set, match
// is a wildcard pattern; otherwise a non-empty match keeps only symbols of
// exactly that name.
func (h *Handler) EnumerateSymbols(path, match string, search, full bool) {
	if h.opts.Verbose {
		h.printKnownDebugKind(path)
	}
	emit := func(info *symbolizer.Info) bool {
		if search || match == "" || info.Name == match {
			h.printf("%s +0x%x-0x%x\n", info.Name, info.StartOffs, info.EndOffs)
		}
		return true
	}
	var err error
	if search {
		err = h.lib.SearchSymbols(path, match, full, emit)
	} else {
		err = h.lib.EnumerateSymbols(path, emit)
	}
	if err != nil {
		slog.Debug("Symbol enumeration failed", "module", path, "match", match, "error", err)
		if h.opts.Verbose {
			h.printf("search/enum error %d\n", symbolizer.StatusOf(err))
		}
	}
}

// EnumerateLines prints the module's line table.
func (h *Handler) EnumerateLines(path string) {
	if h.opts.Verbose {
		h.printKnownDebugKind(path)
	}
	err := h.lib.EnumerateLines(path, func(info *symbolizer.LineInfo) bool {
		h.printf("cu=\"%s\", file=\"%s\" line=%d, addr=0x%016x\n",
			orNull(info.CUName), orNull(info.File), info.Line, info.Addr)
		return true
	})
	if err != nil {
		slog.Debug("Line enumeration failed", "module", path, "error", err)
		if h.opts.Verbose {
			h.printf("line enum error %d\n", symbolizer.StatusOf(err))
		}
	}
}

func orNull(s string) string {
	if s == "" {
		return "<null>"
	}
	return s
}

// KindReport prints the debug kind line followed by the extra debug formats
// and the identifying details of the module.
func (h *Handler) KindReport(path string) {
	kind, err := h.lib.DebugKind(path)
	if err != nil {
		h.printf("debug kind error %d\n", symbolizer.StatusOf(err))
		return
	}
	h.printDebugKind(kind)

	var extra []string
	for _, e := range []struct {
		flag symbolizer.DebugKind
		name string
	}{
		{symbolizer.KindDWARF, "DWARF"},
		{symbolizer.KindGoPCLN, "gopclntab"},
		{symbolizer.KindBTF, "BTF"},
	} {
		if kind.Has(e.flag) {
			extra = append(extra, e.name)
		}
	}
	if len(extra) == 0 {
		extra = []string{"none"}
	}
	h.printf("<extra debug info: %s>\n", strings.Join(extra, ", "))

	details, err := h.lib.Details(path)
	if err != nil {
		return
	}
	if details.BuildID != "" {
		h.printf("build-id=%s\n", details.BuildID)
	}
	if details.DebugFile != "" {
		h.printf("debug-file=%s\n", details.DebugFile)
	}
	if details.PDBPath != "" {
		h.printf("pdb=%s\n", details.PDBPath)
	}
}

func (h *Handler) printKnownDebugKind(path string) {
	if kind, err := h.lib.DebugKind(path); err == nil {
		h.printDebugKind(kind)
	}
}

func (h *Handler) printDebugKind(kind symbolizer.DebugKind) {
	typ := "no symbols"
	switch {
	case kind.Has(symbolizer.KindELFSymtab):
		typ = "ELF symtab"
	case kind.Has(symbolizer.KindPECOFFSymtab):
		typ = "PECOFF symtab"
	case kind.Has(symbolizer.KindPDB):
		typ = "PDB"
	}
	h.printf("<debug info: type=%s, %s symbols, %s line numbers>\n",
		typ, hasOrNo(kind.Has(symbolizer.KindSymbols)), hasOrNo(kind.Has(symbolizer.KindLineNums)))
}

func hasOrNo(b bool) string {
	if b {
		return "has"
	}
	return "NO"
}
