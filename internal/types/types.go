// Package types defines every cross‑package data structure used by the projmapper CLI.
package types

const (
	NodeKindFile      = "file"
	NodeKindDirectory = "directory"

	CommandMap    = "map"
	CommandDump   = "dump"
	CommandBackup = "backup"
	CommandAudit  = "audit"

	FormatRaw  = "raw"
	FormatJSON = "json"
)

// InclusionState is the tri-state inclusion flag of a tree node.
type InclusionState int

const (
	StateIncluded InclusionState = iota
	StatePartial
	StateExcluded
)

// String returns the lower-case name of the state.
func (state InclusionState) String() string {
	switch state {
	case StateIncluded:
		return "included"
	case StatePartial:
		return "partial"
	default:
		return "excluded"
	}
}

// Glyph returns the checkbox glyph used in rendered trees.
func (state InclusionState) Glyph() string {
	switch state {
	case StateIncluded:
		return "[X]"
	case StatePartial:
		return "[/]"
	default:
		return "[ ]"
	}
}

// ContentClass is the result of classifying file bytes.
type ContentClass int

const (
	ContentText ContentClass = iota
	ContentBinary
)

// String returns the lower-case name of the class.
func (class ContentClass) String() string {
	if class == ContentBinary {
		return "binary"
	}
	return "text"
}

// MapNode is the serializable form of a scanned node used by the JSON map.
type MapNode struct {
	Path     string     `json:"path"`
	Name     string     `json:"name"`
	Kind     string     `json:"kind"`
	State    string     `json:"state"`
	Size     string     `json:"size,omitempty"`
	Binary   bool       `json:"binary,omitempty"`
	Error    string     `json:"error,omitempty"`
	Children []*MapNode `json:"children,omitempty"`
}

// MapDocument is the JSON map written by the map command.
type MapDocument struct {
	Root      string   `json:"root"`
	Generated string   `json:"generated"`
	Patterns  []string `json:"patterns"`
	Tree      *MapNode `json:"tree"`
}
