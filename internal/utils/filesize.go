package utils

import "fmt"

var sizeUnits = []string{"KB", "MB", "GB", "TB"}

// FormatSize renders a byte count with binary units, e.g. "1.5 MB".
// Negative counts are shown as 0 B.
func FormatSize(bytes int64) string {
	if bytes < 1024 {
		return fmt.Sprintf("%d B", max(bytes, 0))
	}
	v := float64(bytes) / 1024
	unit := 0
	for v >= 1024 && unit < len(sizeUnits)-1 {
		v /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", v, sizeUnits[unit])
}
