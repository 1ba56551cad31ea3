package exporter

import (
	"fmt"
	"io"

	"github.com/google/pprof/profile"
	collectorpb "go.opentelemetry.io/proto/otlp/collector/profiles/v1development"
	v1 "go.opentelemetry.io/proto/otlp/common/v1"
	profilespb "go.opentelemetry.io/proto/otlp/profiles/v1development"
	resourceV1 "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/protobuf/proto"
)

type NowFunc func() uint64 // produces unix nsec

// BuildOltpProfile converts a pprof profile into OTLP ProfilesData. Index 0
// of every dictionary table is the zero value, as OTLP requires.
func BuildOltpProfile(p *profile.Profile, now NowFunc) *profilespb.ProfilesData {
	stringTable := []string{""}
	mappingTable := []*profilespb.Mapping{{}}
	locationTable := []*profilespb.Location{{}}
	functionTable := []*profilespb.Function{{}}
	stackTable := []*profilespb.Stack{{}}

	typ, unit := "samples", "count"
	if len(p.SampleType) > 0 {
		typ, unit = p.SampleType[0].Type, p.SampleType[0].Unit
	}
	sampleType := &profilespb.ValueType{
		TypeStrindex: strIndex(&stringTable, typ),
		UnitStrindex: strIndex(&stringTable, unit),
	}

	mappingIdx := map[*profile.Mapping]int32{}
	mappingFor := func(m *profile.Mapping) int32 {
		if m == nil {
			return 0
		}
		if idx, ok := mappingIdx[m]; ok {
			return idx
		}
		mappingTable = append(mappingTable, &profilespb.Mapping{
			MemoryStart:      m.Start,
			MemoryLimit:      m.Limit,
			FileOffset:       m.Offset,
			FilenameStrindex: strIndex(&stringTable, m.File),
		})
		idx := int32(len(mappingTable) - 1)
		mappingIdx[m] = idx
		return idx
	}

	functionIdx := map[*profile.Function]int32{}
	functionFor := func(fn *profile.Function) int32 {
		if idx, ok := functionIdx[fn]; ok {
			return idx
		}
		systemName := fn.SystemName
		if systemName == "" {
			systemName = fn.Name
		}
		functionTable = append(functionTable, &profilespb.Function{
			NameStrindex:       strIndex(&stringTable, fn.Name),
			SystemNameStrindex: strIndex(&stringTable, systemName),
			FilenameStrindex:   strIndex(&stringTable, fn.Filename),
			StartLine:          fn.StartLine,
		})
		idx := int32(len(functionTable) - 1)
		functionIdx[fn] = idx
		return idx
	}

	locationIdx := map[*profile.Location]int32{}
	locationFor := func(loc *profile.Location) int32 {
		if idx, ok := locationIdx[loc]; ok {
			return idx
		}
		pbLoc := &profilespb.Location{
			Address:      loc.Address,
			MappingIndex: mappingFor(loc.Mapping),
		}
		for _, ln := range loc.Line {
			if ln.Function == nil {
				continue
			}
			pbLoc.Lines = append(pbLoc.Lines, &profilespb.Line{
				FunctionIndex: functionFor(ln.Function),
				Line:          ln.Line,
			})
		}
		locationTable = append(locationTable, pbLoc)
		idx := int32(len(locationTable) - 1)
		locationIdx[loc] = idx
		return idx
	}

	stackIdx := map[string]int32{}
	buildStack := func(locs []*profile.Location) int32 {
		// pprof and OTLP both store stacks leaf first
		locIndices := make([]int32, 0, len(locs))
		for _, loc := range locs {
			locIndices = append(locIndices, locationFor(loc))
		}
		key := fmt.Sprint(locIndices)
		if idx, ok := stackIdx[key]; ok {
			return idx
		}
		stackTable = append(stackTable, &profilespb.Stack{LocationIndices: locIndices})
		idx := int32(len(stackTable) - 1)
		stackIdx[key] = idx
		return idx
	}

	profileSamples := make([]*profilespb.Sample, 0, len(p.Sample))
	for _, s := range p.Sample {
		if len(s.Location) == 0 || len(s.Value) == 0 {
			continue
		}
		profileSamples = append(profileSamples, &profilespb.Sample{
			StackIndex:       buildStack(s.Location),
			Values:           []int64{s.Value[0]},
			AttributeIndices: []int32{},
		})
	}

	timeNanos := uint64(p.TimeNanos)
	if p.TimeNanos <= 0 {
		timeNanos = now()
	}
	pbProfile := &profilespb.Profile{
		TimeUnixNano: timeNanos,
		DurationNano: uint64(max(p.DurationNanos, 0)),
		SampleType:   sampleType,
		Samples:      profileSamples,
	}

	resourceProfiles := &profilespb.ResourceProfiles{
		Resource: &resourceV1.Resource{},
		ScopeProfiles: []*profilespb.ScopeProfiles{
			{
				Scope: &v1.InstrumentationScope{
					Name:    "symquery",
					Version: "v1",
				},
				Profiles: []*profilespb.Profile{pbProfile},
			},
		},
	}

	dictionary := &profilespb.ProfilesDictionary{
		MappingTable:  mappingTable,
		LocationTable: locationTable,
		FunctionTable: functionTable,
		StackTable:    stackTable,
		StringTable:   stringTable,
	}

	return &profilespb.ProfilesData{
		ResourceProfiles: []*profilespb.ResourceProfiles{resourceProfiles},
		Dictionary:       dictionary,
	}
}

// ExportRequest wraps data in the request message of the OTLP profiles
// service, the body a collector accepts over OTLP/HTTP.
func ExportRequest(data *profilespb.ProfilesData) *collectorpb.ExportProfilesServiceRequest {
	return &collectorpb.ExportProfilesServiceRequest{
		ResourceProfiles: data.ResourceProfiles,
		Dictionary:       data.Dictionary,
	}
}

// WriteOltp writes the binary protobuf encoding of the export request for
// data to w.
func WriteOltp(data *profilespb.ProfilesData, w io.Writer) error {
	b, err := proto.Marshal(ExportRequest(data))
	if err != nil {
		return fmt.Errorf("marshaling OTLP profile: %w", err)
	}
	_, err = w.Write(b)
	return err
}

func strIndex(table *[]string, s string) int32 {
	for i, v := range *table {
		if v == s {
			return int32(i)
		}
	}
	*table = append(*table, s)
	return int32(len(*table) - 1)
}
