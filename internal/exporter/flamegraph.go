package exporter

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/google/pprof/profile"
)

// BuildFoldedStacks aggregates the samples of p into folded stacks
// (root;...;leaf) keyed by stack, summing the value at valueIndex.
// Inlined frames are expanded; unsymbolized frames show their address.
func BuildFoldedStacks(p *profile.Profile, valueIndex int) map[string]uint64 {
	agg := make(map[string]uint64)
	for _, s := range p.Sample {
		if len(s.Location) == 0 || valueIndex >= len(s.Value) || s.Value[valueIndex] <= 0 {
			continue
		}

		var names []string
		for i := len(s.Location) - 1; i >= 0; i-- { // reverse order because flamegraphs expect root->leaf order
			loc := s.Location[i]
			if len(loc.Line) == 0 {
				names = append(names, fmt.Sprintf("0x%x", loc.Address))
				continue
			}
			// the last line is the caller the others were inlined into
			for j := len(loc.Line) - 1; j >= 0; j-- {
				name := ""
				if loc.Line[j].Function != nil {
					name = loc.Line[j].Function.Name
				}
				names = append(names, escapeFoldedName(name))
			}
		}
		agg[strings.Join(names, ";")] += uint64(s.Value[valueIndex])
	}
	return agg
}

func escapeFoldedName(name string) string {
	// semicolons separate frames and newlines separate lines. Replace them with safe characters.
	name = strings.ReplaceAll(name, ";", "_")
	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.TrimSpace(name)
	if name == "" {
		return "<unknown>"
	}
	return name
}

// WriteFoldedStacks writes one "stack count" line per entry, heaviest first.
func WriteFoldedStacks(agg map[string]uint64, w io.Writer) error {
	type kv struct {
		k string
		v uint64
	}
	items := make([]kv, 0, len(agg))
	for k, v := range agg {
		items = append(items, kv{k, v})
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].v == items[j].v {
			return items[i].k < items[j].k
		}
		return items[i].v > items[j].v
	})

	for _, it := range items {
		if _, err := fmt.Fprintf(w, "%s %d\n", it.k, it.v); err != nil {
			return err
		}
	}
	return nil
}
