package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/VladMinzatu/symquery/internal/query"
)

type Mode int

const (
	ModeAddress Mode = iota + 1
	ModeBatch
	ModeProcess
	ModeSymbol
	ModeList
	ModeLines
	ModeKind
	ModeSymbolize
)

// Request is the parsed command line. Exactly one mode is selected.
type Request struct {
	Mode   Mode
	Module string
	// Values are the addresses or symbol names following -a or -s.
	Values []string

	ShowFunc  bool
	Verbose   bool
	Enumerate bool
	Search    bool
	SearchAll bool

	PID    int
	Input  string
	Output string
	Format string
}

// ErrUsage reports a command line that does not form a valid request.
var ErrUsage = errors.New("invalid usage")

// InvalidPathError reports a module path that does not name a readable file.
type InvalidPathError struct {
	Path string
}

func (e *InvalidPathError) Error() string {
	return fmt.Sprintf("invalid path %s", e.Path)
}

// Parse builds a Request from the arguments following the program name.
// Flags are case-insensitive and may come in any order until -a or -s;
// everything after those is a query value, even if it looks like a flag.
func Parse(args []string, readable func(string) bool) (*Request, error) {
	req := &Request{}
	var addrs, syms, batch, list, lines, kind bool
	pidSet := false

	next := func(i *int) (string, bool) {
		if *i+1 >= len(args) {
			return "", false
		}
		*i++
		return args[*i], true
	}

	for i := 0; i < len(args); i++ {
		switch flag := strings.ToLower(args[i]); flag {
		case "-e":
			v, ok := next(&i)
			if !ok {
				return nil, ErrUsage
			}
			abs, err := filepath.Abs(v)
			if err != nil || !readable(abs) {
				return nil, &InvalidPathError{Path: v}
			}
			req.Module = abs
		case "-f":
			req.ShowFunc = true
		case "-v":
			req.Verbose = true
		case "-a", "-s":
			if i+1 >= len(args) {
				return nil, ErrUsage
			}
			if flag == "-a" {
				addrs = true
			} else {
				syms = true
			}
			req.Values = args[i+1:]
			i = len(args)
		case "--lines":
			lines = true
		case "-q":
			batch = true
		case "--enum":
			req.Enumerate = true
		case "--list":
			list = true
		case "--search":
			req.Search = true
		case "--searchall":
			req.Search = true
			req.SearchAll = true
		case "--kind":
			kind = true
		case "-p":
			v, ok := next(&i)
			if !ok {
				return nil, ErrUsage
			}
			pid, err := strconv.Atoi(v)
			if err != nil || pid <= 0 {
				return nil, ErrUsage
			}
			req.PID = pid
			pidSet = true
		case "--symbolize":
			v, ok := next(&i)
			if !ok {
				return nil, ErrUsage
			}
			req.Input = v
		case "-o":
			v, ok := next(&i)
			if !ok {
				return nil, ErrUsage
			}
			req.Output = v
		case "--format":
			v, ok := next(&i)
			if !ok || !query.ValidFormat(v) {
				return nil, ErrUsage
			}
			req.Format = strings.ToLower(v)
		default:
			return nil, ErrUsage
		}
	}

	symbolize := req.Input != ""
	switch {
	case pidSet && (!addrs || req.Module != "" || batch):
		return nil, ErrUsage
	case !batch && !pidSet && req.Module == "":
		return nil, ErrUsage
	case batch && req.Module != "":
		return nil, ErrUsage
	case symbolize && req.Output == "":
		return nil, ErrUsage
	case !addrs && !syms && !batch && !list && !lines && !kind && !symbolize:
		return nil, ErrUsage
	}

	switch {
	case batch:
		req.Mode = ModeBatch
	case pidSet:
		req.Mode = ModeProcess
	case lines:
		req.Mode = ModeLines
	case list:
		req.Mode = ModeList
	case kind:
		req.Mode = ModeKind
	case symbolize:
		req.Mode = ModeSymbolize
	case addrs:
		req.Mode = ModeAddress
	default:
		req.Mode = ModeSymbol
	}
	return req, nil
}
