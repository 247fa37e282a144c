//go:build darwin

package ndiserial

import "path/filepath"

func candidates() ([]string, error) {
	var names []string
	for _, pattern := range []string{"/dev/tty*", "/dev/cu*"} {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		names = append(names, matches...)
	}
	return names, nil
}
