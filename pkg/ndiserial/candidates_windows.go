//go:build windows

package ndiserial

import "fmt"

func candidates() ([]string, error) {
	names := make([]string, 0, 256)
	for i := 1; i <= 256; i++ {
		names = append(names, fmt.Sprintf("COM%d", i))
	}
	return names, nil
}
