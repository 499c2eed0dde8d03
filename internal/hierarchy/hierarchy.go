// Package hierarchy renders an ASCII file tree from the ordered list of
// generated filenames. The rendering is a pure structural transform: the same
// ordered input always yields the same string, byte for byte.
package hierarchy

import "strings"

// Root is the fixed project-root label all trees are rendered under.
const Root = "terraform-project"

// node is one entry in the insertion-ordered path tree.
type node struct {
	name     string
	children []*node
	index    map[string]*node
}

// child returns the named child, creating it in insertion order if absent.
func (n *node) child(name string) *node {
	if c, ok := n.index[name]; ok {
		return c
	}
	if n.index == nil {
		n.index = make(map[string]*node)
	}
	c := &node{name: name}
	n.index[name] = c
	n.children = append(n.children, c)
	return c
}

// Render builds the tree string for the given relative paths. Paths are split
// on "/"; nested levels are connected with the usual box-drawing convention:
// "├── " for entries with a following sibling, "└── " for the last sibling,
// with "│   " / four-space continuation indents beneath them. Directory
// entries carry a trailing slash. The output has no trailing newline.
func Render(paths []string) string {
	root := &node{}
	for _, p := range paths {
		cur := root
		for _, part := range strings.Split(p, "/") {
			if part == "" {
				continue
			}
			cur = cur.child(part)
		}
	}

	var b strings.Builder
	b.WriteString(Root + "/")
	renderChildren(&b, root, "")
	return b.String()
}

func renderChildren(b *strings.Builder, n *node, indent string) {
	for i, c := range n.children {
		connector, childIndent := "├── ", indent+"│   "
		if i == len(n.children)-1 {
			connector, childIndent = "└── ", indent+"    "
		}
		b.WriteString("\n" + indent + connector + c.name)
		if len(c.children) > 0 {
			b.WriteString("/")
			renderChildren(b, c, childIndent)
		}
	}
}
