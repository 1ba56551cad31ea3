package query

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"strings"
)

// exitLine ends a batch session; a driving process sends it instead of
// closing the pipe.
const exitLine = ";exit\n"

type flusher interface {
	Flush() error
}

// Batch answers "<module>;<hex offset>" lines from in until end of input or
// the exit line. Each answer is flushed before the next line is read.
func (h *Handler) Batch(in io.Reader) {
	r := bufio.NewReader(in)
	for {
		line, err := r.ReadString('\n')
		if line == "" || line == exitLine {
			if err != nil && !errors.Is(err, io.EOF) {
				slog.Warn("Reading batch input failed", "error", err)
			}
			return
		}

		if path, offs, ok := parseBatchLine(line); ok {
			h.LookupAddress(path, offs)
			h.flush()
		} else if h.opts.Verbose {
			h.printf("Error: unknown input %s\n", strings.TrimSuffix(line, "\n"))
		}

		if err != nil {
			return
		}
	}
}

// parseBatchLine splits a line into a non-empty module path (everything up
// to the first ';') and the hex offset that follows.
func parseBatchLine(line string) (string, uint64, bool) {
	path, rest, found := strings.Cut(line, ";")
	if !found || path == "" {
		return "", 0, false
	}
	offs, ok := ParseHex(rest)
	if !ok {
		return "", 0, false
	}
	return path, offs, true
}

func (h *Handler) flush() {
	if f, ok := h.out.(flusher); ok {
		if err := f.Flush(); err != nil {
			slog.Warn("Flushing batch output failed", "error", err)
		}
	}
}
