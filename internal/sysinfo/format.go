package sysinfo

import "fmt"

const (
	kib = 1024
	mib = 1024 * 1024
)

// FormatSize renders a byte count with a KB or MB unit.
//
//	0            -> "0 KB"
//	< 1 KB       -> fractional KB ("0.5 KB")
//	< 1 MB       -> whole KB ("1023 KB")
//	otherwise    -> fractional MB ("1.0 MB")
func FormatSize(size uint64) string {
	switch {
	case size == 0:
		return "0 KB"
	case size < kib:
		return fmt.Sprintf("%.1f KB", float64(size)/kib)
	case size < mib:
		return fmt.Sprintf("%d KB", size/kib)
	default:
		return fmt.Sprintf("%.1f MB", float64(size)/mib)
	}
}
