package symbolizer

import (
	"bytes"
	"debug/elf"
	"encoding/binary"
	"encoding/hex"
	"hash/crc32"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

const ntGNUBuildID = 3

// buildID returns the hex GNU build ID of ef, or "" when there is none.
func buildID(ef *elf.File) string {
	for _, sec := range ef.Sections {
		if sec.Type != elf.SHT_NOTE {
			continue
		}
		data, err := sec.Data()
		if err != nil {
			continue
		}
		if id := findBuildIDNote(data, ef.ByteOrder); id != "" {
			return id
		}
	}
	return ""
}

func findBuildIDNote(data []byte, order binary.ByteOrder) string {
	for len(data) >= 12 {
		namesz := order.Uint32(data[0:4])
		descsz := order.Uint32(data[4:8])
		typ := order.Uint32(data[8:12])
		data = data[12:]
		nameEnd := align4(uint64(namesz))
		descEnd := nameEnd + align4(uint64(descsz))
		if uint64(len(data)) < descEnd {
			return ""
		}
		name := data[:namesz]
		desc := data[nameEnd : nameEnd+uint64(descsz)]
		if typ == ntGNUBuildID && bytes.Equal(name, []byte("GNU\x00")) {
			return hex.EncodeToString(desc)
		}
		data = data[descEnd:]
	}
	return ""
}

func align4(n uint64) uint64 { return (n + 3) &^ 3 }

// debugLink parses .gnu_debuglink: a NUL-terminated file name padded to
// four bytes followed by the CRC32 of the debug file.
func debugLink(ef *elf.File) (string, uint32, bool) {
	sec := ef.Section(".gnu_debuglink")
	if sec == nil {
		return "", 0, false
	}
	data, err := sec.Data()
	if err != nil {
		return "", 0, false
	}
	nul := bytes.IndexByte(data, 0)
	if nul <= 0 {
		return "", 0, false
	}
	crcOff := align4(uint64(nul + 1))
	if uint64(len(data)) < crcOff+4 {
		return "", 0, false
	}
	return string(data[:nul]), ef.ByteOrder.Uint32(data[crcOff:]), true
}

// findDebugFile locates the separate debug file for the module at path,
// first by build ID under each debug dir, then through .gnu_debuglink.
func findDebugFile(ef *elf.File, path string, debugDirs []string) string {
	if id := buildID(ef); len(id) > 2 {
		for _, dir := range debugDirs {
			candidate := filepath.Join(dir, ".build-id", id[:2], id[2:]+".debug")
			if fileExists(candidate) {
				return candidate
			}
		}
	}

	name, crc, ok := debugLink(ef)
	if !ok {
		return ""
	}
	modDir := filepath.Dir(path)
	candidates := []string{
		filepath.Join(modDir, name),
		filepath.Join(modDir, ".debug", name),
	}
	for _, dir := range debugDirs {
		candidates = append(candidates, filepath.Join(dir, modDir, name))
	}
	for _, candidate := range candidates {
		if candidate == path || !fileExists(candidate) {
			continue
		}
		got, err := fileCRC32(candidate)
		if err != nil {
			continue
		}
		if got != crc {
			slog.Debug("Debug link CRC mismatch", "candidate", candidate, "want", crc, "got", got)
			continue
		}
		return candidate
	}
	return ""
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

func fileCRC32(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}
