package tree

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/temirov/projmapper/internal/selection"
	"github.com/temirov/projmapper/internal/types"
	"github.com/temirov/projmapper/internal/utils"
)

const (
	errorAbsolutePathFormat = "getting absolute path for %s: %w"
	errorStatRootFormat     = "stat project root %s: %w"
	errorRootNotDirFormat   = "project root %s is not a directory"
)

// Tree owns the scanned root node together with the patterns used to build it.
// A Tree is not safe for concurrent mutation.
type Tree struct {
	Root     *Node
	Patterns []string
	Errors   []*AccessError

	omitted map[string]struct{}
}

// Scan walks rootPath and builds a Tree. Entries whose name matches any pattern
// are omitted and never descended into. Directories that cannot be read are
// recorded as AccessErrors and the scan continues with their siblings. Only a
// missing or non-directory root is returned as an error. Entries at omittedPaths
// (absolute) are left out regardless of the patterns.
func Scan(rootPath string, patterns []string, omittedPaths ...string) (*Tree, error) {
	absoluteRootPath, absolutePathError := filepath.Abs(rootPath)
	if absolutePathError != nil {
		return nil, fmt.Errorf(errorAbsolutePathFormat, rootPath, absolutePathError)
	}
	rootInfo, statError := os.Stat(absoluteRootPath)
	if statError != nil {
		return nil, fmt.Errorf(errorStatRootFormat, absoluteRootPath, statError)
	}
	if !rootInfo.IsDir() {
		return nil, fmt.Errorf(errorRootNotDirFormat, absoluteRootPath)
	}

	scanned := &Tree{
		Root: &Node{
			Path:     absoluteRootPath,
			Name:     filepath.Base(absoluteRootPath),
			Kind:     types.NodeKindDirectory,
			selected: true,
		},
		Patterns: utils.DeduplicatePatterns(patterns),
		omitted:  make(map[string]struct{}, len(omittedPaths)),
	}
	for _, omittedPath := range omittedPaths {
		if absoluteOmitted, omittedError := filepath.Abs(omittedPath); omittedError == nil && absoluteOmitted != absoluteRootPath {
			scanned.omitted[absoluteOmitted] = struct{}{}
		}
	}

	pending := []*Node{scanned.Root}
	for len(pending) > 0 {
		directory := pending[len(pending)-1]
		pending = pending[:len(pending)-1]

		scanned.readDirectory(directory)
		for index := len(directory.Children) - 1; index >= 0; index-- {
			child := directory.Children[index]
			if child.IsDir() && !child.Symlink {
				pending = append(pending, child)
			}
		}
	}

	scanned.aggregateSizes()
	return scanned, nil
}

func (scanned *Tree) readDirectory(directory *Node) {
	entries, readError := os.ReadDir(directory.Path)
	if readError != nil {
		scanned.recordError(directory, readError)
	}
	for _, entry := range entries {
		entryName := entry.Name()
		childPath := filepath.Join(directory.Path, entryName)
		if _, omitted := scanned.omitted[childPath]; omitted {
			continue
		}
		child := &Node{
			Path:     childPath,
			Name:     entryName,
			Kind:     types.NodeKindFile,
			parent:   directory,
			selected: true,
		}

		isDirectory := entry.IsDir()
		if entry.Type()&fs.ModeSymlink != 0 {
			child.Symlink = true
			if targetInfo, targetError := os.Stat(childPath); targetError == nil {
				isDirectory = targetInfo.IsDir()
			}
		}
		if selection.MatchEntry(entryName, isDirectory, scanned.Patterns) {
			continue
		}
		if isDirectory {
			child.Kind = types.NodeKindDirectory
		} else {
			entryInfo, infoError := entry.Info()
			if infoError != nil {
				scanned.recordError(child, infoError)
			} else {
				child.SizeBytes = entryInfo.Size()
			}
		}
		directory.Children = append(directory.Children, child)
	}
	sortChildren(directory.Children)
}

func (scanned *Tree) recordError(node *Node, cause error) {
	node.Err = &AccessError{Path: node.Path, Err: cause}
	scanned.Errors = append(scanned.Errors, node.Err)
}

// aggregateSizes sums file sizes into every directory, children before parents.
func (scanned *Tree) aggregateSizes() {
	var directories []*Node
	scanned.Walk(func(node *Node, _ int) bool {
		if node.IsDir() {
			directories = append(directories, node)
		}
		return true
	})
	for index := len(directories) - 1; index >= 0; index-- {
		directory := directories[index]
		directory.SizeBytes = 0
		for _, child := range directory.Children {
			directory.SizeBytes += child.SizeBytes
		}
	}
}

func sortChildren(children []*Node) {
	sort.SliceStable(children, func(left, right int) bool {
		leftNode, rightNode := children[left], children[right]
		if leftNode.IsDir() != rightNode.IsDir() {
			return leftNode.IsDir()
		}
		leftFolded, rightFolded := strings.ToLower(leftNode.Name), strings.ToLower(rightNode.Name)
		if leftFolded != rightFolded {
			return leftFolded < rightFolded
		}
		return leftNode.Name < rightNode.Name
	})
}
