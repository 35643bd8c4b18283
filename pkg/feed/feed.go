// Package feed parses KOS API Atom payloads and exposes the few fields the
// downloader and its callers read: the next-page link, entry identifiers,
// update timestamps and cross-reference codes.
package feed

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/antchfx/xmlquery"
)

// Errors returned by Parse.
var (
	// ErrNoRootElement indicates a body without any XML element.
	ErrNoRootElement = errors.New("document has no root element")

	// ErrUnexpectedRoot indicates a well-formed document that is neither a feed nor an entry.
	ErrUnexpectedRoot = errors.New("unexpected root element")
)

const (
	kindFeed  = "feed"
	kindEntry = "entry"
)

// Document is a parsed Atom feed or entry.
type Document struct {
	root *xmlquery.Node
	raw  []byte
}

// Parse parses body as an Atom document. Bodies that are not well-formed XML,
// or whose root element is not an Atom feed or entry, are rejected.
func Parse(body []byte) (*Document, error) {
	if !hasElement(body) {
		return nil, ErrNoRootElement
	}

	doc, err := xmlquery.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse xml: %w", err)
	}

	root := rootElement(doc)
	if root == nil {
		return nil, ErrNoRootElement
	}

	switch root.Data {
	case kindFeed, kindEntry:
	default:
		return nil, fmt.Errorf("%w: <%s>", ErrUnexpectedRoot, root.Data)
	}

	return &Document{root: root, raw: body}, nil
}

// Kind returns "feed" or "entry".
func (d *Document) Kind() string {
	return d.root.Data
}

// Raw returns the body the document was parsed from.
func (d *Document) Raw() []byte {
	return d.raw
}

// NextHref returns the href of the feed's rel="next" link, or "".
func (d *Document) NextHref() string {
	if d == nil {
		return ""
	}
	link := xmlquery.FindOne(d.root, "./*[local-name()='link' and @rel='next']")
	if link == nil {
		return ""
	}
	return link.SelectAttr("href")
}

// HasNext reports whether the feed links to a following page.
func (d *Document) HasNext() bool {
	if d == nil {
		return false
	}
	return xmlquery.FindOne(d.root, "./*[local-name()='link' and @rel='next']") != nil
}

// Entries returns the entries of a feed, or the document itself when it is a
// single entry.
func (d *Document) Entries() []*Entry {
	if d.Kind() == kindEntry {
		return []*Entry{{node: d.root}}
	}

	nodes := xmlquery.Find(d.root, "./*[local-name()='entry']")
	entries := make([]*Entry, 0, len(nodes))
	for _, n := range nodes {
		entries = append(entries, &Entry{node: n})
	}
	return entries
}

// Entry is a single Atom entry.
type Entry struct {
	node *xmlquery.Node
}

// ID returns the atom:id text, e.g. "urn:cvut:kos:course:BI-PA1".
func (e *Entry) ID() string {
	return childText(e.node, "id")
}

// Code returns the last colon-separated segment of the entry id.
func (e *Entry) Code() string {
	id := e.ID()
	if i := strings.LastIndex(id, ":"); i >= 0 {
		return id[i+1:]
	}
	return id
}

// Title returns the atom:title text.
func (e *Entry) Title() string {
	return childText(e.node, "title")
}

// Updated parses the atom:updated timestamp.
func (e *Entry) Updated() (time.Time, error) {
	raw := childText(e.node, "updated")
	if raw == "" {
		return time.Time{}, fmt.Errorf("entry %q has no updated element", e.ID())
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse updated %q: %w", raw, err)
	}
	return t, nil
}

// LinkCode returns the code referenced by the first descendant element named
// name through its xlink:href, e.g. "courses/BI-PA1/" yields "BI-PA1".
// It returns "" when no such reference exists.
func (e *Entry) LinkCode(name string) string {
	n := findDescendant(e.node, name)
	if n == nil {
		return ""
	}

	var href string
	for _, attr := range n.Attr {
		if attr.Name.Local == "href" {
			href = attr.Value
			break
		}
	}

	href = strings.Trim(href, "/")
	if i := strings.LastIndex(href, "/"); i >= 0 {
		href = href[i+1:]
	}
	return href
}

// hasElement reports whether body contains an element start tag. Bodies made of
// text, comments or processing instructions only have no root element.
func hasElement(body []byte) bool {
	for i := 0; i < len(body)-1; i++ {
		if body[i] != '<' {
			continue
		}
		c := body[i+1]
		if c == '_' || c == ':' || c >= 0x80 || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
			return true
		}
	}
	return false
}

// findDescendant returns the first element below n, in document order, whose
// local name is name.
func findDescendant(n *xmlquery.Node, name string) *xmlquery.Node {
	for child := n.FirstChild; child != nil; child = child.NextSibling {
		if child.Type != xmlquery.ElementNode {
			continue
		}
		if child.Data == name {
			return child
		}
		if found := findDescendant(child, name); found != nil {
			return found
		}
	}
	return nil
}

func rootElement(doc *xmlquery.Node) *xmlquery.Node {
	for n := doc.FirstChild; n != nil; n = n.NextSibling {
		if n.Type == xmlquery.ElementNode {
			return n
		}
	}
	return nil
}

func childText(n *xmlquery.Node, name string) string {
	child := xmlquery.FindOne(n, fmt.Sprintf("./*[local-name()='%s']", name))
	if child == nil {
		return ""
	}
	return strings.TrimSpace(child.InnerText())
}
