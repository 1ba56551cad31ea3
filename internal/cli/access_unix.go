//go:build unix

package cli

import (
	"os"

	"golang.org/x/sys/unix"
)

// readable reports whether path is an existing file the process may read.
func readable(path string) bool {
	if unix.Access(path, unix.R_OK) != nil {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && !st.IsDir()
}
