package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/VladMinzatu/symquery/internal/query"
	"github.com/VladMinzatu/symquery/internal/symbolizer"
)

// Library is the symbol library as the dispatcher uses it.
type Library interface {
	query.Library
	Close() error
}

// Env carries the collaborators of Run so tests can replace them.
type Env struct {
	Config      symbolizer.Config
	OpenLibrary func(cfg symbolizer.Config) (Library, error)
	OpenProcess func(pid int) (query.Translator, error)
	Readable    func(path string) bool
}

// DefaultEnv wires Run to the real symbol library and /proc.
func DefaultEnv(cfg symbolizer.Config) Env {
	return Env{
		Config:      cfg,
		OpenLibrary: OpenSymbolizer,
		OpenProcess: OpenProcess,
		Readable:    readable,
	}
}

func OpenSymbolizer(cfg symbolizer.Config) (Library, error) {
	lib, err := symbolizer.Init(cfg)
	if err != nil {
		return nil, err
	}
	return lib, nil
}

func OpenProcess(pid int) (query.Translator, error) {
	maps, err := symbolizer.NewProcMaps(pid, symbolizer.NewProcMapsReader())
	if err != nil {
		return nil, err
	}
	return symbolizer.NewProcessTranslator(pid, maps), nil
}

// Run executes one invocation and returns the process exit code. argv
// includes the program name.
func Run(argv []string, stdin io.Reader, stdout io.Writer, env Env) int {
	prog := "symquery"
	if len(argv) > 0 {
		prog, argv = argv[0], argv[1:]
	}
	out := bufio.NewWriter(stdout)
	defer out.Flush()

	req, err := Parse(argv, env.Readable)
	if err != nil {
		var pathErr *InvalidPathError
		if errors.As(err, &pathErr) {
			fmt.Fprintf(out, "ERROR: %v\n", pathErr)
		} else {
			printUsage(out, prog)
		}
		return 1
	}

	var translator query.Translator
	if req.Mode == ModeProcess {
		translator, err = env.OpenProcess(req.PID)
		if err != nil {
			slog.Debug("Opening process failed", "pid", req.PID, "error", err)
			fmt.Fprintf(out, "ERROR: invalid process %d\n", req.PID)
			return 1
		}
	}

	lib, err := env.OpenLibrary(env.Config)
	if err != nil {
		slog.Debug("Symbol library init failed", "error", err)
		fmt.Fprintf(out, "ERROR: unable to initialize symbol library\n")
		return 1
	}

	dispatch(req, query.NewHandler(lib, out, query.Options{ShowFunc: req.ShowFunc, Verbose: req.Verbose}), stdin, translator, out)

	if err := lib.Close(); err != nil {
		slog.Debug("Symbol library teardown failed", "error", err)
		fmt.Fprintf(out, "WARNING: error cleaning up symbol library\n")
	}
	return 0
}

func dispatch(req *Request, h *query.Handler, stdin io.Reader, translator query.Translator, out io.Writer) {
	switch req.Mode {
	case ModeBatch:
		h.Batch(stdin)
	case ModeProcess:
		for _, v := range req.Values {
			addr, ok := query.ParseHex(v)
			if !ok {
				fmt.Fprintf(out, "ERROR: unknown input %s\n", v)
				continue
			}
			h.LookupProcessAddress(translator, addr)
		}
	case ModeLines:
		h.EnumerateLines(req.Module)
	case ModeList:
		h.EnumerateSymbols(req.Module, "", req.Search, req.SearchAll)
	case ModeKind:
		h.KindReport(req.Module)
	case ModeSymbolize:
		h.Symbolize(req.Module, query.SymbolizeRequest{Input: req.Input, Output: req.Output, Format: req.Format})
	case ModeAddress:
		for _, v := range req.Values {
			offs, ok := query.ParseHex(v)
			if !ok {
				fmt.Fprintf(out, "ERROR: unknown input %s\n", v)
				continue
			}
			h.LookupAddress(req.Module, offs)
		}
	case ModeSymbol:
		for _, v := range req.Values {
			if req.Enumerate || req.Search {
				h.EnumerateSymbols(req.Module, v, req.Search, req.SearchAll)
			} else {
				h.LookupSymbol(req.Module, v)
			}
		}
	}
}
