// Package page exposes parsed HTML through a small, selector based node
// interface so extraction code does not depend on a specific parser.
package page

import (
	"bytes"
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// Node is an element (or the document root) of a parsed page.
type Node interface {
	// Find returns the first descendant matching selector.
	Find(selector string) (Node, bool)
	// FindAll returns every descendant matching selector in document order.
	FindAll(selector string) []Node
	// Children returns the direct element children matching selector. An
	// empty selector matches every element child.
	Children(selector string) []Node
	// Text returns the combined text of the node and its descendants.
	Text() string
	// Attr returns the named attribute.
	Attr(name string) (string, bool)
}

// Parse builds a Node tree from raw HTML.
func Parse(body []byte) (Node, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return node{sel: doc.Selection}, nil
}

type node struct {
	sel *goquery.Selection
}

func (n node) Find(selector string) (Node, bool) {
	found := n.sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, false
	}
	return node{sel: found}, true
}

func (n node) FindAll(selector string) []Node {
	return wrap(n.sel.Find(selector))
}

func (n node) Children(selector string) []Node {
	if selector == "" {
		return wrap(n.sel.Children())
	}
	return wrap(n.sel.ChildrenFiltered(selector))
}

func (n node) Text() string {
	return n.sel.Text()
}

func (n node) Attr(name string) (string, bool) {
	return n.sel.Attr(name)
}

func wrap(sel *goquery.Selection) []Node {
	out := make([]Node, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, node{sel: s})
	})
	return out
}
