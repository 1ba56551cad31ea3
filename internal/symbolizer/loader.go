package symbolizer

import (
	"bytes"
	"debug/elf"
	"os"
)

// ModuleLoader opens and indexes a module file.
type ModuleLoader interface {
	Load(path string) (*Module, error)
}

// FileLoader detects the module format from its magic bytes.
type FileLoader struct {
	DebugDirs []string
}

func (l *FileLoader) Load(path string) (*Module, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, statusErr(ErrLoadFailed, "open %s: %v", path, err)
	}
	var magic [4]byte
	if _, err := f.ReadAt(magic[:], 0); err != nil {
		f.Close()
		return nil, statusErr(ErrLoadFailed, "read %s: %v", path, err)
	}

	var m *Module
	switch {
	case bytes.Equal(magic[:], []byte(elf.ELFMAG)):
		m, err = loadELF(f, path, l.DebugDirs)
	case magic[0] == 'M' && magic[1] == 'Z':
		m, err = loadPE(f, path)
	default:
		f.Close()
		return nil, statusErr(ErrLoadFailed, "%s: unrecognized module format", path)
	}
	if err != nil {
		f.Close()
		return nil, statusErr(ErrLoadFailed, "load %s: %v", path, err)
	}
	return m, nil
}
