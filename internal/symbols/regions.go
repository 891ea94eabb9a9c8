package symbols

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Region is one mapped range of the process address space.
type Region struct {
	Start uintptr
	End   uintptr
	Perms string
	Path  string
}

// Contains reports whether addr lies inside the region.
func (r Region) Contains(addr uintptr) bool {
	return addr >= r.Start && addr < r.End
}

// parseMaps reads the /proc/<pid>/maps format:
//
//	00400000-00452000 r-xp 00000000 08:02 173521   /usr/bin/app
func parseMaps(r io.Reader) ([]Region, error) {
	var regions []Region
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 {
			continue
		}
		lo, hi, ok := strings.Cut(fields[0], "-")
		if !ok {
			return nil, fmt.Errorf("malformed range %q", fields[0])
		}
		start, err := strconv.ParseUint(lo, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing region start: %w", err)
		}
		end, err := strconv.ParseUint(hi, 16, 64)
		if err != nil {
			return nil, fmt.Errorf("parsing region end: %w", err)
		}
		reg := Region{Start: uintptr(start), End: uintptr(end), Perms: fields[1]}
		if len(fields) >= 6 {
			reg.Path = strings.Join(fields[5:], " ")
		}
		regions = append(regions, reg)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading maps: %w", err)
	}
	return regions, nil
}

// regionFor returns the region containing addr.
func regionFor(regions []Region, addr uintptr) (Region, bool) {
	for _, r := range regions {
		if r.Contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}
