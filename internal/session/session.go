// Package session holds the working state of one project: its scanned tree, the
// persisted selection record and the store it came from. Commands open a session,
// change or export the selection, and save it back.
package session

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/temirov/projmapper/internal/selection"
	"github.com/temirov/projmapper/internal/tree"
	"github.com/temirov/projmapper/internal/utils"
)

var (
	// ErrUnknownPath reports a relative path that names no node of the scanned tree.
	ErrUnknownPath = errors.New("path is not part of the project tree")
	// ErrRootExclusion reports an attempt to exclude the project root itself.
	ErrRootExclusion = errors.New("the project root cannot be excluded")
)

const (
	errorResolveRootFormat = "resolve project root %s: %w"
	errorScanFormat        = "scan project %s: %w"
	errorToggleFormat      = "%s: %w"

	logStalePaths  = "saved exclusions no longer present"
	logFieldCount  = "count"
	logFieldRoot   = "root"
	logFieldErrors = "access_errors"
	logScanned     = "project scanned"
)

// Session is the explicit context shared by every command. It is not safe for
// concurrent use.
type Session struct {
	Root   string
	Tree   *tree.Tree
	Record selection.Record

	store        *selection.Store
	basePatterns []string
	omittedPaths []string
	stalePaths   []string
	logger       *zap.Logger
}

// Open loads the saved selection for root, scans the project with basePatterns
// plus the saved patterns, and re-applies the saved exclusions. Saved paths that
// no longer exist are kept so they survive the next save. omittedPaths are
// absolute paths left out of every scan, such as the artifact directory.
func Open(root string, store *selection.Store, basePatterns []string, logger *zap.Logger, omittedPaths ...string) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	absoluteRoot, absoluteError := filepath.Abs(root)
	if absoluteError != nil {
		return nil, fmt.Errorf(errorResolveRootFormat, root, absoluteError)
	}
	current := &Session{
		Root:         absoluteRoot,
		Record:       store.Load(absoluteRoot),
		store:        store,
		basePatterns: utils.DeduplicatePatterns(basePatterns),
		omittedPaths: append([]string{}, omittedPaths...),
		logger:       logger,
	}
	if scanError := current.scan(current.Record.ExcludedPaths.Sorted()); scanError != nil {
		return nil, scanError
	}
	return current, nil
}

// Patterns returns the configured patterns followed by the saved ones.
func (current *Session) Patterns() []string {
	return utils.DeduplicatePatterns(append(append([]string{}, current.basePatterns...), current.Record.Patterns()...))
}

// StalePaths returns saved exclusions that did not resolve against the tree.
func (current *Session) StalePaths() []string {
	return append([]string{}, current.stalePaths...)
}

// ExcludedPaths returns every exclusion that Save would persist, in lexical order.
func (current *Session) ExcludedPaths() []string {
	excluded := selection.NewSet(current.Tree.ExcludedPaths()...)
	for _, stalePath := range current.stalePaths {
		excluded.Add(stalePath)
	}
	return excluded.Sorted()
}

// Toggle includes or excludes the node at relativePath. Including a saved
// exclusion that no longer exists drops it together with stale paths beneath it.
func (current *Session) Toggle(relativePath string, included bool) error {
	node := current.Tree.Find(relativePath)
	if node == nil {
		if included && current.dropStalePath(relativePath) {
			return nil
		}
		return fmt.Errorf(errorToggleFormat, relativePath, ErrUnknownPath)
	}
	if node == current.Tree.Root && !included {
		return ErrRootExclusion
	}
	current.Tree.Toggle(node, included)
	return nil
}

func (current *Session) dropStalePath(relativePath string) bool {
	normalized := utils.NormalizeRelativePath(relativePath)
	kept := current.stalePaths[:0]
	dropped := false
	for _, stalePath := range current.stalePaths {
		if stalePath == normalized || strings.HasPrefix(stalePath, normalized+"/") {
			dropped = true
			continue
		}
		kept = append(kept, stalePath)
	}
	current.stalePaths = kept
	return dropped
}

// AddPatterns saves new exclusion patterns and rescans. It returns the patterns
// that were not already saved.
func (current *Session) AddPatterns(patterns ...string) ([]string, error) {
	added := current.Record.AddPatterns(patterns...)
	if len(added) == 0 {
		return nil, nil
	}
	return added, current.Rescan()
}

// RemovePatterns drops saved exclusion patterns and rescans. It returns the
// patterns that were removed.
func (current *Session) RemovePatterns(patterns ...string) ([]string, error) {
	removed := current.Record.RemovePatterns(patterns...)
	if len(removed) == 0 {
		return nil, nil
	}
	return removed, current.Rescan()
}

// Reset clears every saved exclusion and pattern and rescans.
func (current *Session) Reset() error {
	current.Record = selection.NewRecord(current.Root)
	current.stalePaths = nil
	return current.scan(nil)
}

// Rescan rebuilds the tree with the current patterns while keeping the selection.
func (current *Session) Rescan() error {
	return current.scan(current.ExcludedPaths())
}

// Save persists the selection of the current tree.
func (current *Session) Save() error {
	current.Record.ExcludedPaths = selection.NewSet(current.ExcludedPaths()...)
	return current.store.Save(current.Root, current.Record)
}

func (current *Session) scan(excludedPaths []string) error {
	scanned, scanError := tree.Scan(current.Root, current.Patterns(), current.omittedPaths...)
	if scanError != nil {
		return fmt.Errorf(errorScanFormat, current.Root, scanError)
	}
	current.Tree = scanned
	current.stalePaths = scanned.ApplyExclusions(excludedPaths)
	if len(current.stalePaths) > 0 {
		current.logger.Debug(logStalePaths, zap.Int(logFieldCount, len(current.stalePaths)))
	}
	current.logger.Debug(logScanned, zap.String(logFieldRoot, current.Root), zap.Int(logFieldErrors, len(scanned.Errors)))
	return nil
}
