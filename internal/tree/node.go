// Package tree builds the in-memory project tree and tracks which nodes are included in exports.
package tree

import (
	"fmt"

	"github.com/temirov/projmapper/internal/types"
)

// AccessError records a file system entry that could not be read during a scan.
// It never aborts a scan; it is attached to the node and rendered in the map.
type AccessError struct {
	Path string
	Err  error
}

// Error implements error.
func (accessError *AccessError) Error() string {
	return fmt.Sprintf("access denied: %s: %v", accessError.Path, accessError.Err)
}

// Unwrap exposes the underlying file system error.
func (accessError *AccessError) Unwrap() error {
	return accessError.Err
}

// Node is one scanned file system entry. Children are ordered directories first,
// then by case-folded name with the exact name as tie-break.
type Node struct {
	Path      string
	Name      string
	Kind      string
	Children  []*Node
	SizeBytes int64
	Symlink   bool
	Err       *AccessError

	parent   *Node
	selected bool
}

// IsDir reports whether the node is a directory.
func (node *Node) IsDir() bool {
	return node.Kind == types.NodeKindDirectory
}

// Parent returns the containing node, nil for the root.
func (node *Node) Parent() *Node {
	return node.parent
}

// Selected reports the node's own flag, ignoring ancestors.
func (node *Node) Selected() bool {
	return node.selected
}

// active reports whether the node and every ancestor are selected.
func (node *Node) active() bool {
	for current := node; current != nil; current = current.parent {
		if !current.selected {
			return false
		}
	}
	return true
}
