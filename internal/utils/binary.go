package utils

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/temirov/projmapper/internal/types"
)

// SniffLength is the number of leading bytes inspected when classifying content.
const SniffLength = 1024

// forcedBinaryExtensions lists suffixes that are always treated as binary regardless of content.
var forcedBinaryExtensions = map[string]struct{}{
	".tar.gz": {}, ".gz": {}, ".zip": {}, ".rar": {}, ".7z": {}, ".bz2": {}, ".xz": {}, ".tgz": {},
	".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {}, ".bmp": {}, ".ico": {}, ".webp": {}, ".tif": {}, ".tiff": {},
	".mp3": {}, ".wav": {}, ".ogg": {}, ".flac": {}, ".aac": {}, ".m4a": {},
	".mp4": {}, ".mkv": {}, ".avi": {}, ".mov": {}, ".webm": {}, ".flv": {}, ".wmv": {},
	".pdf": {}, ".doc": {}, ".docx": {}, ".xls": {}, ".xlsx": {}, ".ppt": {}, ".pptx": {}, ".odt": {}, ".ods": {}, ".odp": {},
	".exe": {}, ".dll": {}, ".so": {}, ".o": {}, ".a": {}, ".lib": {}, ".app": {}, ".dmg": {}, ".deb": {}, ".rpm": {},
	".db": {}, ".sqlite": {}, ".mdb": {}, ".accdb": {}, ".dat": {}, ".idx": {}, ".pickle": {}, ".joblib": {},
	".pyc": {}, ".pyo": {}, ".class": {}, ".jar": {}, ".wasm": {},
	".ttf": {}, ".otf": {}, ".woff": {}, ".woff2": {},
	".iso": {}, ".img": {}, ".bin": {}, ".bak": {}, ".data": {}, ".asset": {}, ".pak": {},
}

// ClassifyContent decides whether a file is text or binary from its name and leading bytes.
// A null byte within the first SniffLength bytes marks the content as binary.
func ClassifyContent(name string, prefix []byte) types.ContentClass {
	if HasForcedBinaryExtension(name) {
		return types.ContentBinary
	}
	if len(prefix) > SniffLength {
		prefix = prefix[:SniffLength]
	}
	if bytes.IndexByte(prefix, 0) >= 0 {
		return types.ContentBinary
	}
	return types.ContentText
}

// HasForcedBinaryExtension reports whether name ends with a known binary suffix.
// Both the compound suffix (".tar.gz") and the final one (".gz") are checked.
func HasForcedBinaryExtension(name string) bool {
	lowerName := strings.ToLower(name)
	if firstDot := strings.Index(lowerName, "."); firstDot > 0 {
		if _, forced := forcedBinaryExtensions[lowerName[firstDot:]]; forced {
			return true
		}
	}
	_, forced := forcedBinaryExtensions[filepath.Ext(lowerName)]
	return forced
}

// ClassifyFile reads up to SniffLength bytes from path and classifies them.
func ClassifyFile(path string) (types.ContentClass, error) {
	if HasForcedBinaryExtension(filepath.Base(path)) {
		return types.ContentBinary, nil
	}
	fileHandle, openError := os.Open(path)
	if openError != nil {
		return types.ContentBinary, openError
	}
	defer fileHandle.Close()

	buffer := make([]byte, SniffLength)
	bytesRead, readError := io.ReadFull(fileHandle, buffer)
	if readError != nil && readError != io.EOF && readError != io.ErrUnexpectedEOF {
		return types.ContentBinary, readError
	}
	return ClassifyContent(filepath.Base(path), buffer[:bytesRead]), nil
}
