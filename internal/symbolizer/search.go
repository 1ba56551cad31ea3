package symbolizer

import "github.com/gobwas/glob"

// compileMatcher turns a glob-style pattern into a symbol filter. An empty
// pattern matches every symbol; private symbols are kept only when full is
// set.
func compileMatcher(pattern string, full bool) (func(*Symbol) bool, error) {
	var g glob.Glob
	if pattern != "" && pattern != "*" {
		var err error
		g, err = glob.Compile(pattern)
		if err != nil {
			return nil, statusErr(ErrInvalidParameter, "bad pattern %q: %v", pattern, err)
		}
	}
	return func(s *Symbol) bool {
		if s.Local && !full {
			return false
		}
		if g == nil {
			return true
		}
		return g.Match(s.Name) || (s.Mangled != "" && g.Match(s.Mangled))
	}, nil
}
