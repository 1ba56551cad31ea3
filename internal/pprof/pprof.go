package pprof

import (
	"compress/gzip"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/VladMinzatu/symquery/internal/symbolizer"
	"github.com/google/pprof/profile"
)

// Resolver maps a module offset to the symbol containing it.
type Resolver interface {
	LookupAddress(path string, offs uint64) (*symbolizer.Info, error)
}

// Result counts the locations Symbolize looked at and the ones it resolved.
type Result struct {
	Resolved int
	Total    int
}

// ReadProfile parses a pprof profile, gzipped or not.
func ReadProfile(r io.Reader) (*profile.Profile, error) {
	p, err := profile.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing profile: %w", err)
	}
	return p, nil
}

// Symbolize fills in function and line information for the locations of p
// that fall in a mapping of modulePath and have no lines yet. A mapping
// belongs to the module when their base names match, or when it is the
// only mapping of the profile.
func Symbolize(p *profile.Profile, modulePath string, res Resolver) (Result, error) {
	var result Result
	mappings := moduleMappings(p, modulePath)
	if len(mappings) == 0 {
		return result, fmt.Errorf("profile has no mapping for %s", filepath.Base(modulePath))
	}

	type funcKey struct{ name, file string }
	funcs := map[funcKey]*profile.Function{}
	nextFuncID := uint64(1)
	for _, fn := range p.Function {
		funcs[funcKey{fn.Name, fn.Filename}] = fn
		nextFuncID = max(nextFuncID, fn.ID+1)
	}
	addFunction := func(name, file string) *profile.Function {
		if fn, ok := funcs[funcKey{name, file}]; ok {
			return fn
		}
		fn := &profile.Function{ID: nextFuncID, Name: name, SystemName: name, Filename: file}
		nextFuncID++
		funcs[funcKey{name, file}] = fn
		p.Function = append(p.Function, fn)
		return fn
	}

	for _, loc := range p.Location {
		if len(loc.Line) > 0 {
			continue
		}
		m := loc.Mapping
		if m == nil && len(p.Mapping) == 1 {
			m = p.Mapping[0]
		}
		if m == nil || !mappings[m] || loc.Address < m.Start {
			continue
		}
		result.Total++

		offs := loc.Address - m.Start + m.Offset
		info, err := res.LookupAddress(modulePath, offs)
		if !symbolizer.Found(err) {
			slog.Debug("Location left unsymbolized", "address", loc.Address, "offset", offs, "error", err)
			continue
		}
		fn := addFunction(info.Name, info.File)
		loc.Line = []profile.Line{{Function: fn, Line: int64(info.Line)}}
		loc.Mapping = m
		m.HasFunctions = true
		if err == nil {
			m.HasFilenames = true
			m.HasLineNumbers = true
		}
		result.Resolved++
	}

	if err := p.CheckValid(); err != nil {
		return result, fmt.Errorf("symbolized profile is invalid: %w", err)
	}
	return result, nil
}

func moduleMappings(p *profile.Profile, modulePath string) map[*profile.Mapping]bool {
	out := map[*profile.Mapping]bool{}
	if len(p.Mapping) == 1 {
		out[p.Mapping[0]] = true
		return out
	}
	base := filepath.Base(modulePath)
	for _, m := range p.Mapping {
		if m.File != "" && filepath.Base(m.File) == base {
			out[m] = true
		}
	}
	return out
}

func WriteProfileGzip(p *profile.Profile, w io.Writer) error {
	gw := gzip.NewWriter(w)
	if err := p.WriteUncompressed(gw); err != nil {
		gw.Close()
		return err
	}
	return gw.Close()
}
