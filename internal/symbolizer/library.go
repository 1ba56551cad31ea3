package symbolizer

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-multierror"
	lru "github.com/hashicorp/golang-lru/v2"
)

const DefaultCacheSize = 32

var DefaultDebugDirs = []string{"/usr/lib/debug"}

type Config struct {
	// CacheSize is the number of modules kept loaded between calls.
	CacheSize int
	// DebugDirs are the roots searched for separate debug files.
	DebugDirs []string
}

func (cfg Config) Validate() error {
	if cfg.CacheSize < 1 {
		return fmt.Errorf("invalid cache size %d, must be positive", cfg.CacheSize)
	}
	return nil
}

// Library resolves addresses and names against module files. Loaded modules
// are kept in an LRU cache keyed by path; evicted modules are closed.
type Library struct {
	mu        sync.Mutex
	cache     *lru.Cache[string, *Module]
	loader    ModuleLoader
	closeErrs *multierror.Error
	closed    bool
}

// Init creates a Library reading modules from the filesystem.
func Init(cfg Config) (*Library, error) {
	return newLibrary(cfg, &FileLoader{DebugDirs: cfg.DebugDirs})
}

func newLibrary(cfg Config, loader ModuleLoader) (*Library, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &Library{loader: loader}
	cache, err := lru.NewWithEvict(cfg.CacheSize, l.onEvict)
	if err != nil {
		return nil, fmt.Errorf("creating module cache: %w", err)
	}
	l.cache = cache
	return l, nil
}

// onEvict runs with l.mu held, from Add or Purge.
func (l *Library) onEvict(path string, m *Module) {
	slog.Debug("Closing module", "path", path)
	if err := m.Close(); err != nil {
		l.closeErrs = multierror.Append(l.closeErrs, fmt.Errorf("closing %s: %w", path, err))
	}
}

// Close unloads every cached module. Later calls fail.
func (l *Library) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return errors.New("symbol library already closed")
	}
	l.closed = true
	l.cache.Purge()
	return l.closeErrs.ErrorOrNil()
}

func (l *Library) module(path string) (*Module, error) {
	if path == "" {
		return nil, statusErr(ErrInvalidParameter, "empty module path")
	}
	key := filepath.Clean(path)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil, statusErr(ErrGeneric, "symbol library is closed")
	}
	if m, ok := l.cache.Get(key); ok {
		return m, nil
	}
	m, err := l.loader.Load(key)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, m)
	return m, nil
}

// LookupAddress resolves a module offset to its symbol and source line. When
// only the line is missing the Info is returned along with
// ErrLineNotAvailable.
func (l *Library) LookupAddress(path string, offs uint64) (*Info, error) {
	m, err := l.module(path)
	if err != nil {
		return nil, err
	}
	return m.lookupAddress(offs)
}

// LookupSymbol resolves an exact symbol name, raw or demangled, to its
// module offset.
func (l *Library) LookupSymbol(path, name string) (uint64, error) {
	if name == "" {
		return 0, statusErr(ErrInvalidParameter, "empty symbol name")
	}
	m, err := l.module(path)
	if err != nil {
		return 0, err
	}
	return m.lookupSymbol(name)
}

// EnumerateSymbols calls fn for every symbol in offset order until fn
// returns false.
func (l *Library) EnumerateSymbols(path string, fn SymbolFunc) error {
	m, err := l.module(path)
	if err != nil {
		return err
	}
	m.enumerate(nil, fn)
	return nil
}

// SearchSymbols calls fn for the symbols matching a glob pattern. Private
// (local) symbols are only searched when full is set.
func (l *Library) SearchSymbols(path, pattern string, full bool, fn SymbolFunc) error {
	match, err := compileMatcher(pattern, full)
	if err != nil {
		return err
	}
	m, err := l.module(path)
	if err != nil {
		return err
	}
	m.enumerate(match, fn)
	return nil
}

// EnumerateLines calls fn for every line table row until fn returns false.
func (l *Library) EnumerateLines(path string, fn LineFunc) error {
	m, err := l.module(path)
	if err != nil {
		return err
	}
	return m.enumerateLines(fn)
}

func (l *Library) DebugKind(path string) (DebugKind, error) {
	m, err := l.module(path)
	if err != nil {
		return 0, err
	}
	return m.Kind(), nil
}

func (l *Library) Details(path string) (ModuleDetails, error) {
	m, err := l.module(path)
	if err != nil {
		return ModuleDetails{}, err
	}
	return m.Details(), nil
}
