package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/temirov/projmapper/internal/tree"
	"github.com/temirov/projmapper/internal/types"
	"github.com/temirov/projmapper/internal/utils"
)

const (
	connectorMiddle    = "├── "
	connectorLast      = "└── "
	indentContinuation = "│   "
	indentBlank        = "    "
	rootIndent         = "  "
	noneLabel          = "None"
	binaryMarker       = " (binary)"
	symlinkMarker      = " (symlink)"
	accessDeniedFormat = "[access denied: %v]"
	unsupportedFormat  = "unsupported map format %q"
)

// MapOptions controls map rendering.
type MapOptions struct {
	Format        string
	ExcludedPaths []string
	MarkBinary    bool
	Now           func() time.Time
}

func (options MapOptions) now() time.Time {
	if options.Now == nil {
		return time.Now()
	}
	return options.Now()
}

// WriteMap renders scanned as a map into writer. Only included and partial nodes
// appear, in the same order CollectIncludedPaths returns files: directories first,
// then files, each ordered by case-folded name.
func WriteMap(writer io.Writer, scanned *tree.Tree, options MapOptions) error {
	format := strings.ToLower(strings.TrimSpace(options.Format))
	switch format {
	case "", types.FormatRaw:
		return writeRawMap(writer, scanned, options)
	case types.FormatJSON:
		return writeJSONMap(writer, scanned, options)
	default:
		return fmt.Errorf(unsupportedFormat, options.Format)
	}
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return noneLabel
	}
	return strings.Join(values, ", ")
}

type rawMapFrame struct {
	node   *tree.Node
	prefix string
	isLast bool
	isRoot bool
}

func writeRawMap(writer io.Writer, scanned *tree.Tree, options MapOptions) error {
	buffered := bufio.NewWriter(writer)
	states := scanned.States()

	fmt.Fprintf(buffered, "Project Root: %s\n", scanned.Root.Path)
	fmt.Fprintf(buffered, "Generated: %s\n", utils.FormatTimestamp(options.now()))
	fmt.Fprintf(buffered, "Exclusion Patterns: %s\n", joinOrNone(scanned.Patterns))
	fmt.Fprintf(buffered, "Excluded Paths: %s\n\n", joinOrNone(options.ExcludedPaths))

	pending := []rawMapFrame{{node: scanned.Root, isRoot: true}}
	for len(pending) > 0 {
		frame := pending[len(pending)-1]
		pending = pending[:len(pending)-1]
		node := frame.node
		state := states[node]

		childPrefix := rootIndent
		if frame.isRoot {
			fmt.Fprintf(buffered, "%s %s/ (Project Root) %s\n", state.Glyph(), node.Name, utils.FormatDisplaySize(node.SizeBytes))
			if state == types.StateExcluded {
				continue
			}
		} else {
			connector := connectorMiddle
			childPrefix = frame.prefix + indentContinuation
			if frame.isLast {
				connector = connectorLast
				childPrefix = frame.prefix + indentBlank
			}
			fmt.Fprintf(buffered, "%s%s%s\n", frame.prefix, connector, describeNode(node, state, options.MarkBinary))
		}

		visible := visibleChildren(node, states)
		if node.Err != nil {
			connector := connectorLast
			if len(visible) > 0 {
				connector = connectorMiddle
			}
			fmt.Fprintf(buffered, "%s%s"+accessDeniedFormat+"\n", childPrefix, connector, node.Err.Err)
		}
		for index := len(visible) - 1; index >= 0; index-- {
			pending = append(pending, rawMapFrame{
				node:   visible[index],
				prefix: childPrefix,
				isLast: index == len(visible)-1,
			})
		}
	}
	return buffered.Flush()
}

func visibleChildren(node *tree.Node, states map[*tree.Node]types.InclusionState) []*tree.Node {
	var visible []*tree.Node
	for _, child := range node.Children {
		if states[child] != types.StateExcluded {
			visible = append(visible, child)
		}
	}
	return visible
}

func describeNode(node *tree.Node, state types.InclusionState, markBinary bool) string {
	var builder strings.Builder
	if node.IsDir() {
		builder.WriteString(state.Glyph())
		builder.WriteString(" ")
		builder.WriteString(node.Name)
		builder.WriteString("/ ")
		builder.WriteString(utils.FormatDisplaySize(node.SizeBytes))
	} else {
		builder.WriteString(node.Name)
		if markBinary && isBinaryNode(node) {
			builder.WriteString(binaryMarker)
		}
	}
	if node.Symlink {
		builder.WriteString(symlinkMarker)
	}
	return builder.String()
}

func isBinaryNode(node *tree.Node) bool {
	class, classifyError := utils.ClassifyFile(node.Path)
	return classifyError == nil && class == types.ContentBinary
}

func writeJSONMap(writer io.Writer, scanned *tree.Tree, options MapOptions) error {
	states := scanned.States()
	patterns := scanned.Patterns
	if patterns == nil {
		patterns = []string{}
	}
	document := types.MapDocument{
		Root:      scanned.Root.Path,
		Generated: utils.FormatTimestamp(options.now()),
		Patterns:  patterns,
		Tree:      buildMapNode(scanned, scanned.Root, states, options.MarkBinary),
	}
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(document)
}

// buildMapNode mirrors the visible part of the tree. Recursion depth is bounded by
// the tree depth, which the scan already materialized.
func buildMapNode(scanned *tree.Tree, node *tree.Node, states map[*tree.Node]types.InclusionState, markBinary bool) *types.MapNode {
	mapNode := &types.MapNode{
		Path:  scanned.Relative(node),
		Name:  node.Name,
		Kind:  node.Kind,
		State: states[node].String(),
		Size:  strings.Trim(utils.FormatDisplaySize(node.SizeBytes), "()"),
	}
	if node.Err != nil {
		mapNode.Error = node.Err.Error()
	}
	if !node.IsDir() {
		mapNode.Binary = markBinary && isBinaryNode(node)
		return mapNode
	}
	if states[node] == types.StateExcluded {
		return mapNode
	}
	for _, child := range visibleChildren(node, states) {
		mapNode.Children = append(mapNode.Children, buildMapNode(scanned, child, states, markBinary))
	}
	return mapNode
}
