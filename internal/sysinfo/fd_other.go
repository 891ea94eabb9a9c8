//go:build !linux && !darwin

package sysinfo

// CountFDs reports 0, 0: descriptor counts are not exposed through a
// portable interface on this platform.
func CountFDs() (open, limit int) {
	return 0, 0
}
