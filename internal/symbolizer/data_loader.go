package symbolizer

import (
	"bufio"
	"log/slog"
	"os"
)

// maxLineLen bounds a single line; /proc maps lines carry full paths.
const maxLineLen = 1 << 20

// DataLoader reads line-oriented (pseudo-)files such as /proc/<pid>/maps.
type DataLoader struct {
	Path string
}

func NewDataLoader(path string) *DataLoader {
	return &DataLoader{Path: path}
}

func (d *DataLoader) ReadLines() ([]string, error) {
	slog.Debug("Loading lines from (pseudo-)file", "path", d.Path)
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	s := bufio.NewScanner(f)
	s.Buffer(make([]byte, 0, 4096), maxLineLen)
	for s.Scan() {
		lines = append(lines, s.Text())
	}
	return lines, s.Err()
}
