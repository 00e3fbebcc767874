package utils

import "fmt"

// FormatDisplaySize renders a byte count as a parenthesized human-readable size, e.g. "(1.2 MB)".
func FormatDisplaySize(sizeBytes int64) string {
	if sizeBytes <= 0 {
		return "(0 B)"
	}
	if sizeBytes < 1024 {
		return fmt.Sprintf("(%d B)", sizeBytes)
	}
	sizeKilobytes := float64(sizeBytes) / 1024
	if sizeKilobytes < 1024 {
		return fmt.Sprintf("(%.1f KB)", sizeKilobytes)
	}
	sizeMegabytes := sizeKilobytes / 1024
	if sizeMegabytes < 1024 {
		return fmt.Sprintf("(%.1f MB)", sizeMegabytes)
	}
	return fmt.Sprintf("(%.2f GB)", sizeMegabytes/1024)
}
