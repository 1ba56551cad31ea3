package query

import (
	"fmt"
	"os"
	"strings"

	"github.com/VladMinzatu/symquery/internal/exporter"
	"github.com/VladMinzatu/symquery/internal/pprof"
)

const (
	FormatPprof  = "pprof"
	FormatOTLP   = "otlp"
	FormatFolded = "folded"
)

// ValidFormat reports whether f names a supported output format; the empty
// string selects pprof.
func ValidFormat(f string) bool {
	switch strings.ToLower(f) {
	case "", FormatPprof, FormatOTLP, FormatFolded:
		return true
	}
	return false
}

type SymbolizeRequest struct {
	Input  string
	Output string
	Format string
}

// Symbolize resolves the locations of a pprof profile that belong to the
// module at path and writes the result in the requested format.
func (h *Handler) Symbolize(path string, req SymbolizeRequest) {
	if err := h.symbolize(path, req); err != nil {
		h.printf("ERROR: %v\n", err)
	}
}

func (h *Handler) symbolize(path string, req SymbolizeRequest) error {
	in, err := os.Open(req.Input)
	if err != nil {
		return err
	}
	defer in.Close()
	p, err := pprof.ReadProfile(in)
	if err != nil {
		return err
	}

	res, err := pprof.Symbolize(p, path, h.lib)
	if err != nil {
		return err
	}
	if h.opts.Verbose {
		h.printf("symbolized %d of %d locations\n", res.Resolved, res.Total)
	}

	out, err := os.Create(req.Output)
	if err != nil {
		return err
	}
	switch strings.ToLower(req.Format) {
	case FormatOTLP:
		err = exporter.WriteOltp(exporter.BuildOltpProfile(p, h.now), out)
	case FormatFolded:
		err = exporter.WriteFoldedStacks(exporter.BuildFoldedStacks(p, 0), out)
	default:
		err = pprof.WriteProfileGzip(p, out)
	}
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("writing %s: %w", req.Output, err)
	}
	return nil
}
