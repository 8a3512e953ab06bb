package depscan

import "path/filepath"

// Locator maps a root-relative dependency path to the absolute path of an
// existing file. It reports false when the file does not exist.
type Locator func(rel string) (abs string, ok bool)

// Transitive returns the dependencies of the script at abs together with the
// dependencies of every existing dependency, breadth-first and deduplicated.
// Dependencies that cannot be located are returned but not followed.
func (s *Scanner) Transitive(abs string, locate Locator) ([]string, error) {
	visited := map[string]struct{}{filepath.Clean(abs): {}}
	seen := make(map[string]struct{})

	var out []string

	queue := []string{abs}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		deps, err := s.Scan(cur)
		if err != nil {
			return nil, err
		}

		for _, dep := range deps {
			if _, ok := seen[dep]; !ok {
				seen[dep] = struct{}{}
				out = append(out, dep)
			}

			depAbs, ok := locate(dep)
			if !ok || !s.Applies(depAbs) {
				continue
			}

			depAbs = filepath.Clean(depAbs)
			if _, ok := visited[depAbs]; ok {
				continue
			}
			visited[depAbs] = struct{}{}
			queue = append(queue, depAbs)
		}
	}

	return out, nil
}
