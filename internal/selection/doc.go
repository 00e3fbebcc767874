// Package selection persists which parts of a project are excluded from exports.
//
// A Record holds two sets for one project root: relative paths the user excluded
// and name patterns that remove entries from scans altogether. Records are stored
// one JSON file per project and replaced atomically on save. Pattern matching is a
// case-insensitive shell glob evaluated against entry names, never full paths.
package selection
