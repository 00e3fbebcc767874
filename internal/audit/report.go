package audit

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/temirov/projmapper/internal/utils"
)

const (
	placeholderFormat    = "unavailable (%s)"
	sectionHeadingFormat = "\n--- %s ---\n"
	reportHeadingFormat  = "%s - %s\n"
	lineFormat           = "%s: %s\n"
	emptySectionMarker   = "(none)"
)

// Line is one key/value entry of a report.
type Line struct {
	Key   string
	Value string
}

// Section groups lines, or raw command output, under a heading.
type Section struct {
	Title string
	Lines []Line
	Body  string
}

// Report is the ordered result of an audit.
type Report struct {
	Title     string
	Generated time.Time
	Lines     []Line
	Sections  []Section
}

// Placeholder formats a probe failure as a report value.
func Placeholder(cause error) string {
	return fmt.Sprintf(placeholderFormat, firstLine(strings.TrimSpace(cause.Error())))
}

// Render writes the report as text.
func (report Report) Render(writer io.Writer) error {
	buffered := bufio.NewWriter(writer)
	fmt.Fprintf(buffered, reportHeadingFormat, report.Title, utils.FormatTimestamp(report.Generated))
	writeLines(buffered, report.Lines)
	for _, section := range report.Sections {
		fmt.Fprintf(buffered, sectionHeadingFormat, section.Title)
		writeLines(buffered, section.Lines)
		body := strings.TrimRight(section.Body, "\n")
		if body != "" {
			buffered.WriteString(body)
			buffered.WriteString("\n")
		}
		if body == "" && len(section.Lines) == 0 {
			buffered.WriteString(emptySectionMarker + "\n")
		}
	}
	return buffered.Flush()
}

// String renders the report into a string.
func (report Report) String() string {
	var builder strings.Builder
	_ = report.Render(&builder)
	return builder.String()
}

func writeLines(writer *bufio.Writer, lines []Line) {
	for _, line := range lines {
		if line.Value == "" {
			writer.WriteString(line.Key + "\n")
			continue
		}
		fmt.Fprintf(writer, lineFormat, line.Key, line.Value)
	}
}
