package exporter

import (
	"bytes"
	"testing"

	"github.com/google/pprof/profile"
	collectorpb "go.opentelemetry.io/proto/otlp/collector/profiles/v1development"
	v1 "go.opentelemetry.io/proto/otlp/common/v1"
	profilespb "go.opentelemetry.io/proto/otlp/profiles/v1development"
	resourceV1 "go.opentelemetry.io/proto/otlp/resource/v1"
	"google.golang.org/protobuf/proto"
)

func mustMarshal(t *testing.T, m proto.Message) []byte {
	t.Helper()
	b, err := proto.Marshal(m)
	if err != nil {
		t.Fatalf("failed to marshal proto: %v", err)
	}
	return b
}

func symbolizedProfile() *profile.Profile {
	m := &profile.Mapping{ID: 1, Start: 0x1000, Limit: 0x2000, File: "/usr/bin/app"}
	foo := &profile.Function{ID: 1, Name: "foo", Filename: "a.c"}
	bar := &profile.Function{ID: 2, Name: "bar", Filename: "b.c"}
	l1 := &profile.Location{ID: 1, Mapping: m, Address: 0x1010, Line: []profile.Line{{Function: foo, Line: 12}}}
	l2 := &profile.Location{ID: 2, Mapping: m, Address: 0x1020, Line: []profile.Line{{Function: bar, Line: 30}}}
	return &profile.Profile{
		SampleType: []*profile.ValueType{{Type: "samples", Unit: "count"}},
		Mapping:    []*profile.Mapping{m},
		Function:   []*profile.Function{foo, bar},
		Location:   []*profile.Location{l1, l2},
		Sample: []*profile.Sample{
			{Location: []*profile.Location{l1, l2}, Value: []int64{5}},
			{Location: []*profile.Location{l1, l2}, Value: []int64{2}},
		},
	}
}

func TestBuildOltpProfile_Basic(t *testing.T) {
	nowValue := uint64(9999999999)
	got := BuildOltpProfile(symbolizedProfile(), func() uint64 { return nowValue })

	expectedDict := &profilespb.ProfilesDictionary{
		MappingTable: []*profilespb.Mapping{
			{},
			{MemoryStart: 0x1000, MemoryLimit: 0x2000, FilenameStrindex: 3},
		},
		LocationTable: []*profilespb.Location{
			{},
			{Address: 0x1010, MappingIndex: 1, Lines: []*profilespb.Line{{FunctionIndex: 1, Line: 12}}},
			{Address: 0x1020, MappingIndex: 1, Lines: []*profilespb.Line{{FunctionIndex: 2, Line: 30}}},
		},
		FunctionTable: []*profilespb.Function{
			{},
			{NameStrindex: 4, SystemNameStrindex: 4, FilenameStrindex: 5},
			{NameStrindex: 6, SystemNameStrindex: 6, FilenameStrindex: 7},
		},
		StackTable: []*profilespb.Stack{
			{},
			{LocationIndices: []int32{1, 2}},
		},
		StringTable: []string{"", "samples", "count", "/usr/bin/app", "foo", "a.c", "bar", "b.c"},
	}

	expectedProfile := &profilespb.Profile{
		TimeUnixNano: nowValue,
		SampleType:   &profilespb.ValueType{TypeStrindex: 1, UnitStrindex: 2},
		Samples: []*profilespb.Sample{
			{StackIndex: 1, Values: []int64{5}, AttributeIndices: []int32{}},
			{StackIndex: 1, Values: []int64{2}, AttributeIndices: []int32{}},
		},
	}

	expected := &profilespb.ProfilesData{
		ResourceProfiles: []*profilespb.ResourceProfiles{{
			Resource: &resourceV1.Resource{},
			ScopeProfiles: []*profilespb.ScopeProfiles{{
				Scope:    &v1.InstrumentationScope{Name: "symquery", Version: "v1"},
				Profiles: []*profilespb.Profile{expectedProfile},
			}},
		}},
		Dictionary: expectedDict,
	}

	if !proto.Equal(got, expected) {
		gotB := mustMarshal(t, got)
		wantB := mustMarshal(t, expected)
		t.Fatalf("ProfilesData proto mismatch\nGOT (len %d): %x\nWANT (len %d): %x", len(gotB), gotB, len(wantB), wantB)
	}
}

func TestBuildOltpProfile_KeepsProfileTime(t *testing.T) {
	p := symbolizedProfile()
	p.TimeNanos = 42
	p.DurationNanos = 1000
	got := BuildOltpProfile(p, func() uint64 { t.Fatalf("now must not be called"); return 0 })
	prof := got.ResourceProfiles[0].ScopeProfiles[0].Profiles[0]
	if prof.TimeUnixNano != 42 || prof.DurationNano != 1000 {
		t.Fatalf("unexpected times %d/%d", prof.TimeUnixNano, prof.DurationNano)
	}
}

func TestWriteOltp(t *testing.T) {
	data := BuildOltpProfile(symbolizedProfile(), func() uint64 { return 1 })
	var buf bytes.Buffer
	if err := WriteOltp(data, &buf); err != nil {
		t.Fatalf("WriteOltp: %v", err)
	}
	var decoded collectorpb.ExportProfilesServiceRequest
	if err := proto.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !proto.Equal(decoded.Dictionary, data.Dictionary) || len(decoded.ResourceProfiles) != 1 {
		t.Fatalf("decoded request differs from written data")
	}
	if !proto.Equal(decoded.ResourceProfiles[0], data.ResourceProfiles[0]) {
		t.Fatalf("resource profiles differ")
	}
}
