package tree

import (
	"path/filepath"
	"strings"

	"github.com/temirov/projmapper/internal/types"
	"github.com/temirov/projmapper/internal/utils"
)

type walkEntry struct {
	node  *Node
	depth int
}

// Walk visits every node in map order (pre-order, children in sorted order).
// Returning false from visit skips the node's descendants.
func (scanned *Tree) Walk(visit func(node *Node, depth int) bool) {
	if scanned == nil || scanned.Root == nil {
		return
	}
	pending := []walkEntry{{node: scanned.Root}}
	for len(pending) > 0 {
		current := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		if !visit(current.node, current.depth) {
			continue
		}
		for index := len(current.node.Children) - 1; index >= 0; index-- {
			pending = append(pending, walkEntry{node: current.node.Children[index], depth: current.depth + 1})
		}
	}
}

// Relative returns the slash-separated path of node relative to the root; "." for the root.
func (scanned *Tree) Relative(node *Node) string {
	return utils.RelativePathOrSelf(node.Path, scanned.Root.Path)
}

// Find returns the node at the slash-separated relative path, or nil.
func (scanned *Tree) Find(relativePath string) *Node {
	normalized := utils.NormalizeRelativePath(relativePath)
	if normalized == "." || normalized == "" {
		return scanned.Root
	}
	current := scanned.Root
	for _, segment := range strings.Split(normalized, "/") {
		var next *Node
		for _, child := range current.Children {
			if child.Name == segment {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		current = next
	}
	return current
}

// Toggle sets the inclusion flag of node. Excluding a directory excludes every
// descendant; including it again restores each descendant's previous state.
// Including a node beneath an excluded directory re-includes the ancestor chain
// while keeping the ancestors' other children excluded, leaving them partial.
func (scanned *Tree) Toggle(node *Node, included bool) {
	if node == nil {
		return
	}
	if !included {
		node.selected = false
		return
	}
	node.selected = true

	var chain []*Node
	for ancestor := node.parent; ancestor != nil; ancestor = ancestor.parent {
		chain = append(chain, ancestor)
	}
	masked := false
	for index := len(chain) - 1; index >= 0; index-- {
		ancestor := chain[index]
		if !ancestor.selected {
			masked = true
			ancestor.selected = true
		}
		if !masked {
			continue
		}
		onPath := node
		if index > 0 {
			onPath = chain[index-1]
		}
		for _, sibling := range ancestor.Children {
			if sibling != onPath {
				sibling.selected = false
			}
		}
	}
}

// States computes the tri-state flag of every node in one pass.
// A file is included when it and all ancestors are selected. A selected directory
// is included when every child is included, excluded when every child is excluded,
// and partial otherwise; an empty selected directory counts as included.
func (scanned *Tree) States() map[*Node]types.InclusionState {
	states := make(map[*Node]types.InclusionState)
	var order []*Node
	scanned.Walk(func(node *Node, _ int) bool {
		order = append(order, node)
		return true
	})
	for index := len(order) - 1; index >= 0; index-- {
		node := order[index]
		if !node.active() {
			states[node] = types.StateExcluded
			continue
		}
		if !node.IsDir() || len(node.Children) == 0 {
			states[node] = types.StateIncluded
			continue
		}
		includedCount, excludedCount := 0, 0
		for _, child := range node.Children {
			switch states[child] {
			case types.StateIncluded:
				includedCount++
			case types.StateExcluded:
				excludedCount++
			}
		}
		switch {
		case includedCount == len(node.Children):
			states[node] = types.StateIncluded
		case excludedCount == len(node.Children):
			states[node] = types.StateExcluded
		default:
			states[node] = types.StatePartial
		}
	}
	return states
}

// State returns the tri-state flag of a single node.
func (scanned *Tree) State(node *Node) types.InclusionState {
	if node == nil {
		return types.StateExcluded
	}
	subtree := &Tree{Root: node}
	return subtree.States()[node]
}

// CollectIncludedPaths returns the absolute path of every included file in map order.
func (scanned *Tree) CollectIncludedPaths() []string {
	var included []string
	scanned.Walk(func(node *Node, _ int) bool {
		if !node.selected {
			return false
		}
		if !node.IsDir() {
			included = append(included, node.Path)
		}
		return true
	})
	return included
}

// ExcludedPaths returns the relative paths of every node whose own flag is cleared,
// including nodes beneath excluded directories so their state survives a reload.
func (scanned *Tree) ExcludedPaths() []string {
	var excluded []string
	scanned.Walk(func(node *Node, _ int) bool {
		if !node.selected && node != scanned.Root {
			excluded = append(excluded, scanned.Relative(node))
		}
		return true
	})
	return excluded
}

// ApplyExclusions clears the flag of every node named by a relative path and
// returns the paths that did not resolve to a node.
func (scanned *Tree) ApplyExclusions(relativePaths []string) []string {
	var unresolved []string
	for _, relativePath := range relativePaths {
		node := scanned.Find(relativePath)
		if node == nil || node == scanned.Root {
			unresolved = append(unresolved, relativePath)
			continue
		}
		node.selected = false
	}
	return unresolved
}

// RelativeFromAbsolute converts an absolute path under the root into its relative form.
func (scanned *Tree) RelativeFromAbsolute(absolutePath string) string {
	return utils.RelativePathOrSelf(filepath.Clean(absolutePath), scanned.Root.Path)
}
