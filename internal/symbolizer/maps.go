package symbolizer

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

type MapRegion struct {
	Start, End uint64
	Offset     uint64
	Perms      string
	Path       string
}

// FileBacked reports whether the region maps a module file rather than an
// anonymous or pseudo mapping such as [heap] or [vdso].
func (r *MapRegion) FileBacked() bool {
	return r.Path != "" && !strings.HasPrefix(r.Path, "[")
}

type MapsReader interface {
	ReadMaps(pid int) ([]string, error)
}

type ProcMapsReader struct{}

func NewProcMapsReader() *ProcMapsReader {
	return &ProcMapsReader{}
}

func (r *ProcMapsReader) ReadMaps(pid int) ([]string, error) {
	slog.Debug("Reading proc maps for pid", "pid", pid)
	return NewDataLoader(fmt.Sprintf("/proc/%d/maps", pid)).ReadLines()
}

// ProcMaps is a snapshot of the memory mappings of one process.
type ProcMaps struct {
	pid       int
	mapReader MapsReader
	regions   []MapRegion
}

func NewProcMaps(pid int, mapReader MapsReader) (*ProcMaps, error) {
	p := &ProcMaps{pid: pid, mapReader: mapReader}
	if err := p.Refresh(); err != nil {
		return nil, err
	}
	return p, nil
}

// TODO: maps should be in order so we could optimize to a binary search or use a tree
func (m *ProcMaps) FindRegion(pc uint64) *MapRegion {
	for i := range m.regions {
		r := &m.regions[i]
		if pc >= r.Start && pc < r.End {
			return r
		}
	}
	return nil
}

func (m *ProcMaps) Refresh() error {
	lines, err := m.mapReader.ReadMaps(m.pid)
	if err != nil {
		return err
	}
	m.parseMaps(lines)
	return nil
}

func (m *ProcMaps) parseMaps(lines []string) {
	var regions []MapRegion
	for _, line := range lines {
		if line == "" {
			continue
		}
		entry, err := parseMapEntry(line)
		if err != nil {
			slog.Warn("Failed to parse map entry", "pid", m.pid, "line", line, "error", err)
			continue
		}
		regions = append(regions, entry)
	}
	m.regions = regions
}

// Example format:
//
//	55d4b2000000-55d4b2021000 r--p 00000000 08:01 131073 /usr/bin/myprog
func parseMapEntry(line string) (MapRegion, error) {
	parts := strings.Fields(line)
	if len(parts) < 5 {
		return MapRegion{}, fmt.Errorf("not enough fields: %d in line \"%s\"", len(parts), line)
	}
	// pathname is optional and may be in parts[5:] - may contain spaces, mind you!
	var path string
	if len(parts) >= 6 {
		path = strings.Join(parts[5:], " ")
	}
	lo, hi, ok := strings.Cut(parts[0], "-")
	if !ok {
		return MapRegion{}, fmt.Errorf("invalid address range format in line %s", line)
	}
	start, err1 := strconv.ParseUint(lo, 16, 64)
	end, err2 := strconv.ParseUint(hi, 16, 64)
	offv, err3 := strconv.ParseUint(parts[2], 16, 64)
	if err1 != nil || err2 != nil || err3 != nil {
		return MapRegion{}, fmt.Errorf("failed to parse numeric addresses in line %s", line)
	}
	return MapRegion{Start: start, End: end, Offset: offv, Perms: parts[1], Path: path}, nil
}
