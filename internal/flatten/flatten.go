// Package flatten renders an XML document as plain text lines.
//
// The walk keeps reading order for mixed content: an element's leading
// text comes first, then each child element followed by the text that
// trails it. Markup and attributes are dropped.
package flatten

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/antchfx/xmlquery"
)

var (
	errNoRoot    = errors.New("no element found")
	errJunkAfter = errors.New("junk after document element")
)

// Lines parses r and returns the non-empty stripped text fragments in
// document order.
func Lines(r io.Reader) ([]string, error) {
	doc, err := xmlquery.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parsing xml: %w", err)
	}
	root, err := rootElement(doc)
	if err != nil {
		return nil, fmt.Errorf("parsing xml: %w", err)
	}

	var lines []string
	walk(root, &lines)
	return lines, nil
}

// Text returns the flattened lines joined with newlines.
func Text(r io.Reader) (string, error) {
	lines, err := Lines(r)
	if err != nil {
		return "", err
	}
	return strings.Join(lines, "\n"), nil
}

// String is Text for an in-memory document.
func String(xml string) (string, error) {
	return Text(strings.NewReader(xml))
}

func rootElement(doc *xmlquery.Node) (*xmlquery.Node, error) {
	var root *xmlquery.Node
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		switch n.Type {
		case xmlquery.ElementNode:
			if root != nil {
				return nil, errJunkAfter
			}
			root = n
		case xmlquery.TextNode, xmlquery.CharDataNode:
			if strings.TrimSpace(n.Data) != "" {
				return nil, errJunkAfter
			}
		}
	}
	if root == nil {
		return nil, errNoRoot
	}
	return root, nil
}

func walk(elem *xmlquery.Node, lines *[]string) {
	head, next := textRun(elem.FirstChild)
	emit(lines, head)
	for child := next; child != nil; {
		walk(child, lines)
		var tail string
		tail, child = textRun(child.NextSibling)
		emit(lines, tail)
	}
}

// textRun collects text from n up to the next element sibling, which it
// also returns. Comments and processing instructions are skipped without
// breaking the run.
func textRun(n *xmlquery.Node) (string, *xmlquery.Node) {
	var sb strings.Builder
	for ; n != nil; n = n.NextSibling {
		switch n.Type {
		case xmlquery.ElementNode:
			return sb.String(), n
		case xmlquery.TextNode, xmlquery.CharDataNode:
			sb.WriteString(n.Data)
		}
	}
	return sb.String(), nil
}

func emit(lines *[]string, s string) {
	if s = strings.TrimSpace(s); s != "" {
		*lines = append(*lines, s)
	}
}
