package export

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/temirov/projmapper/internal/tokenizer"
	"github.com/temirov/projmapper/internal/tree"
	"github.com/temirov/projmapper/internal/types"
	"github.com/temirov/projmapper/internal/utils"
)

// DefaultMaxFileSize is the size cap applied when DumpOptions.MaxFileSize is zero.
const DefaultMaxFileSize int64 = 1 << 20

const (
	dumpRuleWidth         = 80
	dumpHeaderLead        = "-------------------- FILE: "
	dumpMinimumTrail      = 4
	binarySkippedBody     = "[binary, skipped]"
	unreadableBodyFormat  = "[unreadable: %s]"
	oversizedBodyFormat   = "[skipped: larger than %d bytes]"
	invalidEncodingReason = "content is not valid UTF-8"
	tokenAnnotationFormat = " [%d tokens]"

	logFieldPath     = "path"
	logFieldError    = "error"
	logUnreadable    = "file unreadable during dump"
	logTokenFailure  = "token counting failed"
	logDumpCompleted = "dump rendered"
)

// DumpOptions controls source dump rendering.
type DumpOptions struct {
	MaxFileSize  int64
	TokenCounter tokenizer.Counter
	Now          func() time.Time
	Logger       *zap.Logger
}

// DumpResult summarizes a rendered dump.
type DumpResult struct {
	Files      int
	Text       int
	Binary     int
	Unreadable int
	Oversized  int
	Tokens     int
}

type dumpEntry struct {
	body    string
	tokens  int
	counted bool
}

// WriteDump writes every included file of scanned into writer in map order: a
// header line carrying the slash-separated relative path, then the content or a
// bracketed placeholder for binary, unreadable, and oversized files.
func WriteDump(writer io.Writer, scanned *tree.Tree, options DumpOptions) (DumpResult, error) {
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	maxFileSize := options.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}
	now := time.Now
	if options.Now != nil {
		now = options.Now
	}

	includedPaths := scanned.CollectIncludedPaths()
	buffered := bufio.NewWriter(writer)
	result := DumpResult{Files: len(includedPaths)}

	fmt.Fprintf(buffered, "Project Root: %s\n", scanned.Root.Path)
	fmt.Fprintf(buffered, "Generated: %s\n", utils.FormatTimestamp(now()))
	fmt.Fprintf(buffered, "Files: %d\n\n", len(includedPaths))

	for _, absolutePath := range includedPaths {
		relativePath := scanned.RelativeFromAbsolute(absolutePath)
		entry := readDumpEntry(absolutePath, maxFileSize, &result, logger)
		if entry.counted && options.TokenCounter != nil {
			tokens, countError := options.TokenCounter.CountString(entry.body)
			if countError != nil {
				logger.Warn(logTokenFailure, zap.String(logFieldPath, relativePath), zap.Error(countError))
				entry.counted = false
			} else {
				entry.tokens = tokens
				result.Tokens += tokens
			}
		}

		buffered.WriteString(dumpHeader(relativePath, entry, options.TokenCounter != nil))
		buffered.WriteString("\n")
		buffered.WriteString(entry.body)
		if !strings.HasSuffix(entry.body, "\n") {
			buffered.WriteString("\n")
		}
		buffered.WriteString(strings.Repeat("-", dumpRuleWidth))
		buffered.WriteString("\n\n")
	}

	buffered.WriteString(dumpSummary(result, options.TokenCounter != nil))
	if flushError := buffered.Flush(); flushError != nil {
		return result, flushError
	}
	logger.Debug(logDumpCompleted, zap.Int("files", result.Files))
	return result, nil
}

func readDumpEntry(absolutePath string, maxFileSize int64, result *DumpResult, logger *zap.Logger) dumpEntry {
	unreadable := func(reason string) dumpEntry {
		result.Unreadable++
		logger.Warn(logUnreadable, zap.String(logFieldPath, absolutePath), zap.String(logFieldError, reason))
		return dumpEntry{body: fmt.Sprintf(unreadableBodyFormat, reason)}
	}

	if utils.HasForcedBinaryExtension(filepath.Base(absolutePath)) {
		result.Binary++
		return dumpEntry{body: binarySkippedBody}
	}
	info, statError := os.Stat(absolutePath)
	if statError != nil {
		return unreadable(statError.Error())
	}
	if info.Size() > maxFileSize {
		result.Oversized++
		return dumpEntry{body: fmt.Sprintf(oversizedBodyFormat, maxFileSize)}
	}
	// #nosec G304
	content, readError := os.ReadFile(absolutePath)
	if readError != nil {
		return unreadable(readError.Error())
	}
	if utils.ClassifyContent(filepath.Base(absolutePath), content) == types.ContentBinary {
		result.Binary++
		return dumpEntry{body: binarySkippedBody}
	}
	if !utf8.Valid(content) {
		return unreadable(invalidEncodingReason)
	}
	result.Text++
	return dumpEntry{body: string(content), counted: true}
}

func dumpHeader(relativePath string, entry dumpEntry, showTokens bool) string {
	header := dumpHeaderLead + relativePath
	if showTokens && entry.counted {
		header += fmt.Sprintf(tokenAnnotationFormat, entry.tokens)
	}
	header += " "
	trail := dumpRuleWidth - utf8.RuneCountInString(header)
	if trail < dumpMinimumTrail {
		trail = dumpMinimumTrail
	}
	return header + strings.Repeat("-", trail)
}

func dumpSummary(result DumpResult, showTokens bool) string {
	summary := fmt.Sprintf(
		"Summary: %d files, %d text, %d binary skipped, %d unreadable, %d oversized",
		result.Files, result.Text, result.Binary, result.Unreadable, result.Oversized,
	)
	if showTokens {
		summary += fmt.Sprintf(", %d tokens", result.Tokens)
	}
	return summary + "\n"
}
