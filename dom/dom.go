// Package dom provides the narrow document-tree surface the viewer core
// renders into. The host page is treated as an external collaborator: the
// core only ever looks elements up by id, creates elements, moves them, and
// sets attributes and styles. The tree is backed by golang.org/x/net/html
// nodes so collaborators (and tests) can query it with CSS selectors.
//
// A Tree is not safe for concurrent use; each viewer instance serializes
// access to its own subtree.
package dom

import (
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Tree is an in-memory element tree with a single body element that hosts
// all viewer containers.
type Tree struct {
	root *html.Node // <html>
	body *html.Node
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	root := &html.Node{Type: html.ElementNode, Data: "html", DataAtom: atom.Html}
	body := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	root.AppendChild(body)
	return &Tree{root: root, body: body}
}

// Body returns the tree's body element.
func (t *Tree) Body() *Element {
	return &Element{tree: t, node: t.body}
}

// CreateElement creates a detached element with the given tag.
func (t *Tree) CreateElement(tag string) *Element {
	n := &html.Node{Type: html.ElementNode, Data: tag, DataAtom: atom.Lookup([]byte(tag))}
	return &Element{tree: t, node: n}
}

// GetByID returns the attached element with the given id, or nil.
func (t *Tree) GetByID(id string) *Element {
	var found *html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if found != nil {
			return
		}
		if n.Type == html.ElementNode {
			for _, a := range n.Attr {
				if a.Key == "id" && a.Val == id {
					found = n
					return
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(t.root)
	if found == nil {
		return nil
	}
	return &Element{tree: t, node: found}
}

// Query returns all attached elements matching the CSS selector.
func (t *Tree) Query(selector string) ([]*Element, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, err
	}
	nodes := cascadia.QueryAll(t.root, sel)
	els := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &Element{tree: t, node: n})
	}
	return els, nil
}

// Selection exposes the tree to goquery so collaborators can run richer
// queries than the core itself needs.
func (t *Tree) Selection() *goquery.Document {
	return goquery.NewDocumentFromNode(t.root)
}

// Render serializes the tree to HTML, mostly for snapshots and debugging.
func (t *Tree) Render() (string, error) {
	var sb strings.Builder
	if err := html.Render(&sb, t.root); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// Element wraps a single node in a Tree.
type Element struct {
	tree *Tree
	node *html.Node
}

// Tag returns the element's tag name.
func (e *Element) Tag() string { return e.node.Data }

// Attr returns the value of an attribute and whether it is set.
func (e *Element) Attr(name string) (string, bool) {
	for _, a := range e.node.Attr {
		if a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr sets an attribute, replacing any previous value.
func (e *Element) SetAttr(name, value string) {
	for i, a := range e.node.Attr {
		if a.Key == name {
			e.node.Attr[i].Val = value
			return
		}
	}
	e.node.Attr = append(e.node.Attr, html.Attribute{Key: name, Val: value})
}

// RemoveAttr deletes an attribute if present.
func (e *Element) RemoveAttr(name string) {
	for i, a := range e.node.Attr {
		if a.Key == name {
			e.node.Attr = append(e.node.Attr[:i], e.node.Attr[i+1:]...)
			return
		}
	}
}

// ClearAttrs drops every attribute.
func (e *Element) ClearAttrs() {
	e.node.Attr = nil
}

// ID returns the element id ("" when unset).
func (e *Element) ID() string {
	v, _ := e.Attr("id")
	return v
}

// SetID sets the element id.
func (e *Element) SetID(id string) { e.SetAttr("id", id) }

// Style returns a single style property value ("" when unset).
func (e *Element) Style(prop string) string {
	return e.styles()[prop]
}

// SetStyle sets a single style property, keeping the others.
func (e *Element) SetStyle(prop, value string) {
	s := e.styles()
	s[prop] = value
	e.writeStyles(s)
}

// SetStyles applies several style properties at once.
func (e *Element) SetStyles(props map[string]string) {
	s := e.styles()
	for k, v := range props {
		s[k] = v
	}
	e.writeStyles(s)
}

// ClearStyles removes the style attribute entirely.
func (e *Element) ClearStyles() { e.RemoveAttr("style") }

func (e *Element) styles() map[string]string {
	out := map[string]string{}
	raw, ok := e.Attr("style")
	if !ok {
		return out
	}
	for _, decl := range strings.Split(raw, ";") {
		k, v, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}

func (e *Element) writeStyles(s map[string]string) {
	keys := make([]string, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	// Deterministic order keeps rendered snapshots stable.
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+s[k])
	}
	e.SetAttr("style", strings.Join(parts, "; "))
}

// AppendChild attaches child as the last child of e, detaching it from any
// previous parent first.
func (e *Element) AppendChild(child *Element) {
	if child.node.Parent != nil {
		child.node.Parent.RemoveChild(child.node)
	}
	e.node.AppendChild(child.node)
}

// Remove detaches the element from its parent. Detached elements keep their
// children and can be re-attached.
func (e *Element) Remove() {
	if e.node.Parent != nil {
		e.node.Parent.RemoveChild(e.node)
	}
}

// Clear removes all children.
func (e *Element) Clear() {
	for c := e.node.FirstChild; c != nil; {
		next := c.NextSibling
		e.node.RemoveChild(c)
		c = next
	}
}

// Parent returns the parent element, or nil at the tree root or when
// detached.
func (e *Element) Parent() *Element {
	p := e.node.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil
	}
	return &Element{tree: e.tree, node: p}
}

// Children returns the element children in document order.
func (e *Element) Children() []*Element {
	var out []*Element
	for c := e.node.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, &Element{tree: e.tree, node: c})
		}
	}
	return out
}

// SetText replaces the element's content with a single text node.
func (e *Element) SetText(s string) {
	e.Clear()
	e.node.AppendChild(&html.Node{Type: html.TextNode, Data: s})
}

// Text returns the concatenated text content of the subtree.
func (e *Element) Text() string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(e.node)
	return sb.String()
}

// Attached reports whether the element is reachable from the tree root.
func (e *Element) Attached() bool {
	for n := e.node; n != nil; n = n.Parent {
		if n == e.tree.root {
			return true
		}
	}
	return false
}

// Query returns descendants of e matching the CSS selector.
func (e *Element) Query(selector string) ([]*Element, error) {
	sel, err := cascadia.Parse(selector)
	if err != nil {
		return nil, err
	}
	nodes := cascadia.QueryAll(e.node, sel)
	els := make([]*Element, 0, len(nodes))
	for _, n := range nodes {
		els = append(els, &Element{tree: e.tree, node: n})
	}
	return els, nil
}

// Same reports whether two wrappers point at the same underlying node.
func (e *Element) Same(other *Element) bool {
	return other != nil && e.node == other.node
}
