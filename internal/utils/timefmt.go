package utils

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	headerTimestampLayout   = "2006-01-02 15:04:05"
	fileNameTimestampLayout = "2006-01-02_15-04-05"
)

// FormatTimestamp returns the provided time in the local zone using the report header layout.
func FormatTimestamp(value time.Time) string {
	if value.IsZero() {
		return ""
	}
	return value.In(time.Local).Format(headerTimestampLayout)
}

// TimestampedFileName inserts a timestamp between the stem and the extension of name.
// "report.txt" becomes "report_2023-10-27_15-30-00.txt"; compound ".tar.gz" suffixes stay intact.
func TimestampedFileName(name string, at time.Time) string {
	extension := filepath.Ext(name)
	stem := strings.TrimSuffix(name, extension)
	if strings.HasSuffix(stem, ".tar") {
		stem = strings.TrimSuffix(stem, ".tar")
		extension = ".tar" + extension
	}
	return stem + "_" + at.In(time.Local).Format(fileNameTimestampLayout) + extension
}
