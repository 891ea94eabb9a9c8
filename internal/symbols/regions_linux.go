//go:build linux

package symbols

import "os"

// Regions lists the memory mappings of the current process.
func Regions() ([]Region, error) {
	f, err := os.Open("/proc/self/maps")
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseMaps(f)
}
