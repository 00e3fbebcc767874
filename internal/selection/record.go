package selection

import (
	"encoding/json"
	"errors"
	"path"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/temirov/projmapper/internal/utils"
)

// Set is an unordered collection of strings that serializes as a sorted JSON array.
type Set map[string]struct{}

// NewSet builds a set from values, dropping blanks.
func NewSet(values ...string) Set {
	set := make(Set, len(values))
	for _, value := range values {
		set.Add(value)
	}
	return set
}

// Add inserts the trimmed value unless it is blank.
func (set Set) Add(value string) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return
	}
	set[trimmed] = struct{}{}
}

// Contains reports whether value is present.
func (set Set) Contains(value string) bool {
	_, present := set[strings.TrimSpace(value)]
	return present
}

// Sorted returns the members in lexical order.
func (set Set) Sorted() []string {
	values := make([]string, 0, len(set))
	for value := range set {
		values = append(values, value)
	}
	sort.Strings(values)
	return values
}

// Equal reports whether both sets hold the same members. Nil and empty sets are equal.
func (set Set) Equal(other Set) bool {
	if len(set) != len(other) {
		return false
	}
	for value := range set {
		if _, present := other[value]; !present {
			return false
		}
	}
	return true
}

// MarshalJSON writes the set as a sorted array.
func (set Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(set.Sorted())
}

// UnmarshalJSON reads an array of strings into the set.
func (set *Set) UnmarshalJSON(data []byte) error {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return err
	}
	*set = NewSet(values...)
	return nil
}

// Record is the persisted selection of one project.
type Record struct {
	Project          string `json:"project"`
	ExcludedPaths    Set    `json:"excludedPaths"`
	ExcludedPatterns Set    `json:"excludedPatterns"`
}

// NewRecord returns an empty record for project.
func NewRecord(project string) Record {
	return Record{
		Project:          project,
		ExcludedPaths:    NewSet(),
		ExcludedPatterns: NewSet(),
	}
}

// Equal reports whether two records describe the same selection.
func (record Record) Equal(other Record) bool {
	return record.Project == other.Project &&
		record.ExcludedPaths.Equal(other.ExcludedPaths) &&
		record.ExcludedPatterns.Equal(other.ExcludedPatterns)
}

// Patterns returns the exclusion patterns in lexical order.
func (record Record) Patterns() []string {
	return record.ExcludedPatterns.Sorted()
}

// AddPatterns inserts patterns and returns the ones that were not present before.
func (record *Record) AddPatterns(patterns ...string) []string {
	if record.ExcludedPatterns == nil {
		record.ExcludedPatterns = NewSet()
	}
	var added []string
	for _, pattern := range utils.DeduplicatePatterns(patterns) {
		if record.ExcludedPatterns.Contains(pattern) {
			continue
		}
		record.ExcludedPatterns.Add(pattern)
		added = append(added, pattern)
	}
	return added
}

// RemovePatterns deletes patterns and returns the ones that were present.
func (record *Record) RemovePatterns(patterns ...string) []string {
	var removed []string
	for _, pattern := range utils.DeduplicatePatterns(patterns) {
		if !record.ExcludedPatterns.Contains(pattern) {
			continue
		}
		delete(record.ExcludedPatterns, pattern)
		removed = append(removed, pattern)
	}
	return removed
}

var (
	errMalformedPattern = errors.New("malformed glob pattern")
	errEscapingPath     = errors.New("path must be relative to the project root")
)

// Validate checks that every pattern is a well-formed glob and every excluded
// path is a clean relative path inside the project.
func (record Record) Validate() error {
	return validation.ValidateStruct(&record,
		validation.Field(&record.ExcludedPatterns, validation.By(func(value interface{}) error {
			for _, pattern := range value.(Set).Sorted() {
				if !ValidPattern(pattern) {
					return validation.NewError("validation_pattern", errMalformedPattern.Error()+": "+pattern)
				}
			}
			return nil
		})),
		validation.Field(&record.ExcludedPaths, validation.By(func(value interface{}) error {
			for _, relativePath := range value.(Set).Sorted() {
				if !isContainedRelativePath(relativePath) {
					return validation.NewError("validation_path", errEscapingPath.Error()+": "+relativePath)
				}
			}
			return nil
		})),
	)
}

func isContainedRelativePath(relativePath string) bool {
	if relativePath == "" || relativePath == "." || strings.HasPrefix(relativePath, "/") || strings.Contains(relativePath, "\\") {
		return false
	}
	if len(relativePath) > 1 && relativePath[1] == ':' {
		return false
	}
	cleaned := path.Clean(relativePath)
	return cleaned == relativePath && cleaned != ".." && !strings.HasPrefix(cleaned, "../")
}
