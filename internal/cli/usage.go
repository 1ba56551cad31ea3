package cli

import (
	"fmt"
	"io"
)

const usageText = `Usage:
Look up addresses for one module:
  %[1]s -e <module> [-f] [-v] -a [<address relative to module base> ...]
Look up addresses for multiple modules:
  %[1]s [-f] [-v] -q <pairs of [module_path;address relative to module base] on stdin>
Look up absolute addresses in a running process:
  %[1]s -p <pid> [-f] [-v] -a [<address> ...]
Look up exact symbols for one module:
  %[1]s -e <module> [-v] [--enum] -s [<symbol1> <symbol2> ...]
Look up symbols matching wildcard patterns (glob-style: *,?,[],{}) for one module:
  %[1]s -e <module> [-v] --search -s [<symbol1> <symbol2> ...]
Look up private symbols matching wildcard patterns (glob-style: *,?,[],{}) for one module:
  %[1]s -e <module> [-v] --searchall -s [<symbol1> <symbol2> ...]
List all symbols in a module:
  %[1]s -e <module> [-v] --list
List all source lines in a module:
  %[1]s -e <module> [-v] --lines
Describe the debug information of a module:
  %[1]s -e <module> --kind
Symbolize a pprof profile against a module:
  %[1]s -e <module> [-v] --symbolize <profile> -o <output> [--format pprof|otlp|folded]
Optional parameters:
  -f = show function name
  -v = verbose
  --enum = look up via enumeration rather than the exact-name index
Environment:
  SYMQUERY_LOG_LEVEL = debug|info|warn|error (stderr logging, default warn)
  SYMQUERY_CACHE_SIZE = number of modules kept loaded (default 32)
  SYMQUERY_DEBUG_DIRS = roots searched for separate debug files (default /usr/lib/debug)
`

func printUsage(w io.Writer, prog string) {
	fmt.Fprintf(w, usageText, prog)
}
