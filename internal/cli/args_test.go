package cli

import (
	"errors"
	"path/filepath"
	"reflect"
	"testing"
)

func allReadable(string) bool { return true }

func TestParse(t *testing.T) {
	mod, _ := filepath.Abs("lib.so")
	tests := []struct {
		name string
		args []string
		want Request
	}{
		{"address lookup", []string{"-e", "lib.so", "-f", "-a", "10", "20"},
			Request{Mode: ModeAddress, Module: mod, ShowFunc: true, Values: []string{"10", "20"}}},
		{"flags are case insensitive", []string{"-E", "lib.so", "-V", "-A", "10"},
			Request{Mode: ModeAddress, Module: mod, Verbose: true, Values: []string{"10"}}},
		{"options after mode flag are values", []string{"-e", "lib.so", "-a", "10", "-v", "--list"},
			Request{Mode: ModeAddress, Module: mod, Values: []string{"10", "-v", "--list"}}},
		{"batch", []string{"-v", "-q"}, Request{Mode: ModeBatch, Verbose: true}},
		{"batch wins over other modes", []string{"-q", "--lines", "-a", "5"},
			Request{Mode: ModeBatch, Values: []string{"5"}}},
		{"symbol lookup", []string{"-e", "lib.so", "--enum", "-s", "main"},
			Request{Mode: ModeSymbol, Module: mod, Enumerate: true, Values: []string{"main"}}},
		{"searchall implies search", []string{"-e", "lib.so", "--searchall", "-s", "a*"},
			Request{Mode: ModeSymbol, Module: mod, Search: true, SearchAll: true, Values: []string{"a*"}}},
		{"lines before list", []string{"-e", "lib.so", "--list", "--lines"},
			Request{Mode: ModeLines, Module: mod}},
		{"list", []string{"--list", "-e", "lib.so"}, Request{Mode: ModeList, Module: mod}},
		{"kind", []string{"-e", "lib.so", "--KIND"}, Request{Mode: ModeKind, Module: mod}},
		{"process", []string{"-p", "1234", "-a", "7f0012"},
			Request{Mode: ModeProcess, PID: 1234, Values: []string{"7f0012"}}},
		{"symbolize", []string{"-e", "lib.so", "--symbolize", "cpu.pb.gz", "-o", "out", "--format", "OTLP"},
			Request{Mode: ModeSymbolize, Module: mod, Input: "cpu.pb.gz", Output: "out", Format: "otlp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.args, allReadable)
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			if !reflect.DeepEqual(*got, tt.want) {
				t.Fatalf("got %+v; want %+v", *got, tt.want)
			}
		})
	}
}

func TestParse_Usage(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"empty", nil},
		{"no mode", []string{"-e", "lib.so", "-v"}},
		{"no module", []string{"-a", "10"}},
		{"batch with module", []string{"-q", "-e", "lib.so"}},
		{"module without value", []string{"-e"}},
		{"address flag without value", []string{"-e", "lib.so", "-a"}},
		{"unknown flag", []string{"-e", "lib.so", "-x", "-a", "1"}},
		{"process without addresses", []string{"-p", "12", "--list"}},
		{"process with module", []string{"-p", "12", "-e", "lib.so", "-a", "1"}},
		{"process with batch", []string{"-p", "12", "-q", "-a", "1"}},
		{"bad pid", []string{"-p", "twelve", "-a", "1"}},
		{"symbolize without output", []string{"-e", "lib.so", "--symbolize", "in"}},
		{"bad format", []string{"-e", "lib.so", "--symbolize", "in", "-o", "out", "--format", "json"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args, allReadable)
			if !errors.Is(err, ErrUsage) {
				t.Fatalf("expected ErrUsage, got %v", err)
			}
		})
	}
}

func TestParse_InvalidPath(t *testing.T) {
	checked := ""
	_, err := Parse([]string{"-e", "missing.so", "-bogus"}, func(p string) bool {
		checked = p
		return false
	})
	var pathErr *InvalidPathError
	if !errors.As(err, &pathErr) || pathErr.Path != "missing.so" {
		t.Fatalf("expected invalid path error for missing.so, got %v", err)
	}
	if !filepath.IsAbs(checked) {
		t.Fatalf("readability must be checked on the absolute path, got %q", checked)
	}
}
