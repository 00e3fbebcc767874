package selection

import (
	"path"
	"strings"
)

// directoryPatternSuffix marks a pattern that only matches directories.
const directoryPatternSuffix = "/"

// MatchName reports whether name matches pattern using shell glob semantics
// ("*", "?", "[...]"). Matching is case-insensitive. Malformed patterns never match.
func MatchName(name string, pattern string) bool {
	trimmedPattern := strings.TrimSpace(pattern)
	if trimmedPattern == "" {
		return false
	}
	matched, matchError := path.Match(strings.ToLower(trimmedPattern), strings.ToLower(name))
	return matchError == nil && matched
}

// MatchEntry reports whether a directory entry is excluded by any pattern.
// A pattern ending in "/" such as "build/" applies to directories only.
func MatchEntry(name string, isDirectory bool, patterns []string) bool {
	for _, pattern := range patterns {
		trimmedPattern := strings.TrimSpace(pattern)
		if strings.HasSuffix(trimmedPattern, directoryPatternSuffix) {
			if !isDirectory {
				continue
			}
			trimmedPattern = strings.TrimSuffix(trimmedPattern, directoryPatternSuffix)
		}
		if MatchName(name, trimmedPattern) {
			return true
		}
	}
	return false
}

// ValidPattern reports whether pattern is a well-formed glob.
func ValidPattern(pattern string) bool {
	trimmedPattern := strings.TrimSuffix(strings.TrimSpace(pattern), directoryPatternSuffix)
	if trimmedPattern == "" {
		return false
	}
	_, matchError := path.Match(trimmedPattern, "")
	return matchError == nil
}
