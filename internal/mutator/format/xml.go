package format

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"

	"github.com/fluxfuzzer/corefuzz/internal/mutator"
	"github.com/fluxfuzzer/corefuzz/pkg/types"
)

// xmlNode is a minimal DOM: element name, attributes, text, and children,
// enough to drive spec's rename/insert/delete/move/swap/tweak strategies
// without adopting a full validating XML model.
type xmlNode struct {
	Name     string
	Attrs    []xml.Attr
	Text     string
	Children []*xmlNode
}

// XMLMutator decodes into xmlNode, mutates, and re-encodes, reverting to
// the previous valid tree whenever a mutated tree fails to round-trip.
type XMLMutator struct {
	SafeMode bool
}

func NewXMLMutator() *XMLMutator { return &XMLMutator{SafeMode: true} }

func (m *XMLMutator) Name() string             { return "format/xml" }
func (m *XMLMutator) Description() string      { return "XML DOM structural mutation" }
func (m *XMLMutator) Type() types.MutationType { return types.FormatAware }

const maxXMLVariants = 32

func (m *XMLMutator) Generate(input []byte) mutator.Generator {
	prolog, root, err := parseXML(input)
	if err != nil || root == nil {
		return fallbackGenerator(input)
	}

	strategies := []func(*xmlNode){
		m.renameTag,
		m.insertElement,
		m.deleteElement,
		m.duplicateElement,
		m.moveSubtree,
		m.swapSiblings,
		m.tweakAttribute,
		m.deleteAttribute,
		m.tweakNumericText,
		m.insertComment,
	}
	if m.SafeMode {
		// down-weight delete/move-heavy ops: every other strategy appears twice
		strategies = append(strategies, m.renameTag, m.insertElement, m.duplicateElement,
			m.swapSiblings, m.tweakAttribute, m.tweakNumericText, m.insertComment)
	}

	produced := 0
	return func() ([]byte, bool) {
		if produced >= maxXMLVariants {
			return nil, false
		}
		strategy := strategies[produced%len(strategies)]
		produced++
		clone := cloneXML(root)
		strategy(clone)
		out, encErr := encodeXML(prolog, clone)
		if encErr != nil {
			return fallbackFlip(append([]byte(nil), input...)), true
		}
		if _, reErr := parseReader(out); reErr != nil {
			prev, _ := encodeXML(prolog, root) // revert to previous valid tree
			return prev, true
		}
		return out, true
	}
}

func parseXML(input []byte) (prolog string, root *xmlNode, err error) {
	if i := bytes.Index(input, []byte("?>")); i >= 0 && bytes.HasPrefix(bytes.TrimSpace(input), []byte("<?xml")) {
		prolog = string(input[:i+2])
	}
	root, err = parseReader(input)
	return prolog, root, err
}

func parseReader(input []byte) (*xmlNode, error) {
	dec := xml.NewDecoder(bytes.NewReader(input))
	var stack []*xmlNode
	var root *xmlNode
	for {
		tok, err := dec.Token()
		if err != nil {
			if err.Error() == "EOF" {
				break
			}
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{Name: t.Name.Local, Attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			} else {
				root = node
			}
			stack = append(stack, node)
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}
	if root == nil {
		return nil, fmt.Errorf("format: no root element")
	}
	return root, nil
}

func cloneXML(n *xmlNode) *xmlNode {
	out := &xmlNode{Name: n.Name, Text: n.Text, Attrs: append([]xml.Attr(nil), n.Attrs...)}
	for _, c := range n.Children {
		out.Children = append(out.Children, cloneXML(c))
	}
	return out
}

func encodeXML(prolog string, root *xmlNode) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if prolog != "" {
		buf.WriteString(prolog)
		buf.WriteByte('\n')
	}
	writeXMLNode(buf, root)
	return buf.Bytes(), nil
}

func writeXMLNode(buf *bytes.Buffer, n *xmlNode) {
	fmt.Fprintf(buf, "<%s", n.Name)
	for _, a := range n.Attrs {
		fmt.Fprintf(buf, " %s=%q", a.Name.Local, a.Value)
	}
	if len(n.Children) == 0 && n.Text == "" {
		buf.WriteString("/>")
		return
	}
	buf.WriteByte('>')
	xml.EscapeText(buf, []byte(n.Text))
	for _, c := range n.Children {
		writeXMLNode(buf, c)
	}
	fmt.Fprintf(buf, "</%s>", n.Name)
}

func allNodes(root *xmlNode) []*xmlNode {
	var out []*xmlNode
	var walk func(*xmlNode)
	walk = func(n *xmlNode) {
		out = append(out, n)
		for _, c := range n.Children {
			walk(c)
		}
	}
	walk(root)
	return out
}

func (m *XMLMutator) renameTag(root *xmlNode) {
	nodes := allNodes(root)
	n := nodes[secureRandomIntF(len(nodes))]
	n.Name = n.Name + "_x"
}

func (m *XMLMutator) insertElement(root *xmlNode) {
	nodes := allNodes(root)
	parent := nodes[secureRandomIntF(len(nodes))]
	parent.Children = append(parent.Children, &xmlNode{Name: "injected"})
}

func (m *XMLMutator) deleteElement(root *xmlNode) {
	nodes := allNodes(root)
	for _, n := range nodes {
		if len(n.Children) > 0 {
			i := secureRandomIntF(len(n.Children))
			n.Children = append(n.Children[:i], n.Children[i+1:]...)
			return
		}
	}
}

func (m *XMLMutator) duplicateElement(root *xmlNode) {
	nodes := allNodes(root)
	for _, n := range nodes {
		if len(n.Children) > 0 {
			i := secureRandomIntF(len(n.Children))
			dup := cloneXML(n.Children[i])
			out := append([]*xmlNode(nil), n.Children[:i+1]...)
			out = append(out, dup)
			out = append(out, n.Children[i+1:]...)
			n.Children = out
			return
		}
	}
}

func (m *XMLMutator) moveSubtree(root *xmlNode) {
	nodes := allNodes(root)
	var withChildren []*xmlNode
	for _, n := range nodes {
		if len(n.Children) > 0 {
			withChildren = append(withChildren, n)
		}
	}
	if len(withChildren) < 2 {
		return
	}
	src := withChildren[secureRandomIntF(len(withChildren))]
	dst := withChildren[secureRandomIntF(len(withChildren))]
	if src == dst || len(src.Children) == 0 {
		return
	}
	i := secureRandomIntF(len(src.Children))
	moved := src.Children[i]
	src.Children = append(src.Children[:i], src.Children[i+1:]...)
	dst.Children = append(dst.Children, moved)
}

func (m *XMLMutator) swapSiblings(root *xmlNode) {
	nodes := allNodes(root)
	for _, n := range nodes {
		if len(n.Children) >= 2 {
			i := secureRandomIntF(len(n.Children) - 1)
			n.Children[i], n.Children[i+1] = n.Children[i+1], n.Children[i]
			return
		}
	}
}

func (m *XMLMutator) tweakAttribute(root *xmlNode) {
	nodes := allNodes(root)
	for _, n := range nodes {
		if len(n.Attrs) > 0 {
			i := secureRandomIntF(len(n.Attrs))
			n.Attrs[i].Value = n.Attrs[i].Value + "_mut"
			return
		}
	}
}

func (m *XMLMutator) deleteAttribute(root *xmlNode) {
	nodes := allNodes(root)
	for _, n := range nodes {
		if len(n.Attrs) > 0 {
			i := secureRandomIntF(len(n.Attrs))
			n.Attrs = append(n.Attrs[:i], n.Attrs[i+1:]...)
			return
		}
	}
}

func (m *XMLMutator) tweakNumericText(root *xmlNode) {
	nodes := allNodes(root)
	for _, n := range nodes {
		if v, err := strconv.Atoi(n.Text); err == nil {
			delta := 1 + secureRandomIntF(10)
			if secureRandomIntF(2) == 0 {
				delta = -delta
			}
			n.Text = strconv.Itoa(v + delta)
			return
		}
	}
}

func (m *XMLMutator) insertComment(root *xmlNode) {
	nodes := allNodes(root)
	n := nodes[secureRandomIntF(len(nodes))]
	n.Text = n.Text + "<!--mut-->"
}
