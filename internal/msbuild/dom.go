// Package msbuild edits MSBuild project metadata documents in place:
// the build-copy directive in the project file and the debug-launch
// settings in the per-user file. Documents are modeled as a typed tree
// with find-or-create operations that report whether they mutated
// anything; a document is only written back when a mutation occurred.
package msbuild

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// MSBuildNamespace is the xmlns carried by legacy-style project files.
const MSBuildNamespace = "http://schemas.microsoft.com/developer/msbuild/2003"

// NodeType discriminates tree nodes.
type NodeType int

const (
	ElementNode NodeType = iota
	TextNode
	CommentNode
)

// Attr is a single attribute. Order is preserved.
type Attr struct {
	Name  string
	Value string
}

// Node is one node of a parsed metadata document.
type Node struct {
	Type  NodeType
	Name  string // element local name
	Attrs []Attr
	Kids  []*Node
	Data  string // text or comment content
}

// Document is a metadata document bound to its file path. Mutating
// operations mark it dirty; Save is a no-op on a clean document.
type Document struct {
	Path  string
	Root  *Node
	dirty bool
}

// LoadDocument reads and parses a metadata document. A document that
// fails to parse yields a CorruptMetadataError; read failures are
// returned as-is so callers can test for fs.ErrNotExist.
func LoadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root, err := parse(data)
	if err != nil {
		return nil, &CorruptMetadataError{Path: path, Err: err}
	}
	return &Document{Path: path, Root: root}, nil
}

// NewDocument builds an empty document with the given root element.
// The document starts dirty since nothing on disk backs it yet.
func NewDocument(path string, root *Node) *Document {
	return &Document{Path: path, Root: root, dirty: true}
}

// Dirty reports whether any mutation occurred since load.
func (d *Document) Dirty() bool { return d.dirty }

// MarkDirty flags the document for persistence.
func (d *Document) MarkDirty() { d.dirty = true }

// Save writes the document back if and only if it is dirty.
func (d *Document) Save() error {
	if !d.dirty {
		return nil
	}
	if err := os.WriteFile(d.Path, d.Encode(), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", d.Path, err)
	}
	d.dirty = false
	return nil
}

// Encode serializes the tree with two-space indentation.
func (d *Document) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>` + "\n")
	writeNode(&buf, d.Root, 0)
	return buf.Bytes()
}

func parse(data []byte) (*Node, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))

	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := &Node{Type: ElementNode, Name: t.Name.Local}
			for _, a := range t.Attr {
				n.Attrs = append(n.Attrs, Attr{Name: attrName(a.Name), Value: a.Value})
			}
			if len(stack) == 0 {
				if root != nil {
					return nil, fmt.Errorf("multiple root elements")
				}
				root = n
			} else {
				top := stack[len(stack)-1]
				top.Kids = append(top.Kids, n)
			}
			stack = append(stack, n)
		case xml.EndElement:
			stack = stack[:len(stack)-1]
		case xml.CharData:
			s := string(t)
			if strings.TrimSpace(s) == "" {
				continue
			}
			if len(stack) == 0 {
				return nil, fmt.Errorf("text outside root element")
			}
			top := stack[len(stack)-1]
			top.Kids = append(top.Kids, &Node{Type: TextNode, Data: s})
		case xml.Comment:
			if len(stack) == 0 {
				continue
			}
			top := stack[len(stack)-1]
			top.Kids = append(top.Kids, &Node{Type: CommentNode, Data: string(t)})
		}
	}
	if root == nil {
		return nil, fmt.Errorf("no root element")
	}
	return root, nil
}

func attrName(n xml.Name) string {
	if n.Space == "xmlns" {
		return "xmlns:" + n.Local
	}
	return n.Local
}

func writeNode(buf *bytes.Buffer, n *Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch n.Type {
	case CommentNode:
		buf.WriteString(indent + "<!--" + n.Data + "-->\n")
	case TextNode:
		buf.WriteString(indent)
		escapeInto(buf, n.Data)
		buf.WriteString("\n")
	case ElementNode:
		buf.WriteString(indent + "<" + n.Name)
		for _, a := range n.Attrs {
			buf.WriteString(" " + a.Name + `="`)
			escapeInto(buf, a.Value)
			buf.WriteString(`"`)
		}
		if len(n.Kids) == 0 {
			buf.WriteString(" />\n")
			return
		}
		if text, ok := n.onlyText(); ok {
			buf.WriteString(">")
			escapeInto(buf, text)
			buf.WriteString("</" + n.Name + ">\n")
			return
		}
		buf.WriteString(">\n")
		for _, k := range n.Kids {
			writeNode(buf, k, depth+1)
		}
		buf.WriteString(indent + "</" + n.Name + ">\n")
	}
}

func escapeInto(buf *bytes.Buffer, s string) {
	// xml.EscapeText only fails on writer errors; bytes.Buffer never does.
	_ = xml.EscapeText(buf, []byte(s))
}

// onlyText reports whether the element holds exactly one text child.
func (n *Node) onlyText() (string, bool) {
	if len(n.Kids) == 1 && n.Kids[0].Type == TextNode {
		return n.Kids[0].Data, true
	}
	return "", false
}

// Child returns the first element child with the given local name,
// case-insensitive, or nil.
func (n *Node) Child(name string) *Node {
	for _, k := range n.Kids {
		if k.Type == ElementNode && strings.EqualFold(k.Name, name) {
			return k
		}
	}
	return nil
}

// ChildrenNamed returns every element child with the given local name.
func (n *Node) ChildrenNamed(name string) []*Node {
	var out []*Node
	for _, k := range n.Kids {
		if k.Type == ElementNode && strings.EqualFold(k.Name, name) {
			out = append(out, k)
		}
	}
	return out
}

// Elements returns every element child.
func (n *Node) Elements() []*Node {
	var out []*Node
	for _, k := range n.Kids {
		if k.Type == ElementNode {
			out = append(out, k)
		}
	}
	return out
}

// Attr returns the named attribute value, case-insensitive, or "".
func (n *Node) Attr(name string) string {
	for _, a := range n.Attrs {
		if strings.EqualFold(a.Name, name) {
			return a.Value
		}
	}
	return ""
}

// Text returns the concatenated text content of the element.
func (n *Node) Text() string {
	var b strings.Builder
	for _, k := range n.Kids {
		if k.Type == TextNode {
			b.WriteString(k.Data)
		}
	}
	return strings.TrimSpace(b.String())
}

// SetText replaces the element content with a single text node.
func (n *Node) SetText(s string) {
	n.Kids = []*Node{{Type: TextNode, Data: s}}
}

// AppendElement adds a new empty element child and returns it.
func (n *Node) AppendElement(name string, attrs ...Attr) *Node {
	k := &Node{Type: ElementNode, Name: name, Attrs: attrs}
	n.Kids = append(n.Kids, k)
	return k
}

// FindOrCreate returns the first element child with the given name,
// creating it when absent. The second return reports creation.
func (n *Node) FindOrCreate(name string) (*Node, bool) {
	if k := n.Child(name); k != nil {
		return k, false
	}
	return n.AppendElement(name), true
}
