package transfer

import "path/filepath"

// NewFiles returns the sources whose basename is absent from archived, in
// source order. When two sources share a basename only the first is kept,
// since both would land on the same archive path.
func NewFiles(sources, archived []string) []string {
	present := make(map[string]struct{}, len(archived)+len(sources))
	for _, path := range archived {
		present[filepath.Base(path)] = struct{}{}
	}

	var fresh []string
	for _, path := range sources {
		name := filepath.Base(path)
		if _, ok := present[name]; ok {
			continue
		}
		present[name] = struct{}{}
		fresh = append(fresh, path)
	}
	return fresh
}
