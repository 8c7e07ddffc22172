package epub

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// namedEntity matches an HTML named character reference.
var namedEntity = regexp.MustCompile(`&([A-Za-z][A-Za-z0-9]*);`)

// xmlEntities are the names encoding/xml resolves itself.
var xmlEntities = map[string]bool{"amp": true, "lt": true, "gt": true, "quot": true, "apos": true}

// replaceNamedEntities rewrites HTML named character references, which
// encoding/xml rejects, as numeric references. Unknown names are kept.
func replaceNamedEntities(data []byte) []byte {
	return namedEntity.ReplaceAllFunc(data, func(m []byte) []byte {
		name := string(m[1 : len(m)-1])
		if xmlEntities[name] {
			return m
		}
		s := html.UnescapeString(string(m))
		if s == string(m) {
			lower := strings.ToLower(s)
			if s = html.UnescapeString(lower); s == lower {
				return m
			}
		}
		var b strings.Builder
		for _, r := range s {
			fmt.Fprintf(&b, "&#%d;", r)
		}
		return []byte(b.String())
	})
}

// findElement returns the first element with tag a in depth-first order.
func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}

// firstElementChild returns the first child of n that is an element.
func firstElementChild(n *html.Node) *html.Node {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return c
		}
	}
	return nil
}

// walk calls fn for every element below n in document order.
func walk(n *html.Node, fn func(*html.Node)) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			fn(c)
		}
		walk(c, fn)
	}
}

func textOf(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textOf(c))
	}
	return b.String()
}

// attrIndex returns the position of the attribute key on n, or -1. Keys
// may be given with a namespace prefix such as "xlink:href".
func attrIndex(n *html.Node, key string) int {
	ns, local, prefixed := strings.Cut(key, ":")
	for i, a := range n.Attr {
		if a.Key == key && (prefixed || a.Namespace == "") {
			return i
		}
		if prefixed && a.Namespace == ns && a.Key == local {
			return i
		}
	}
	return -1
}

func getAttr(n *html.Node, key string) (string, bool) {
	if i := attrIndex(n, key); i >= 0 {
		return n.Attr[i].Val, true
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	if i := attrIndex(n, key); i >= 0 {
		n.Attr[i].Val = val
		return
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// cleanNode removes script and style elements below n and strips event
// handlers and unsafe URLs from the attributes of every other element.
func cleanNode(n *html.Node) {
	var next *html.Node
	for c := n.FirstChild; c != nil; c = next {
		next = c.NextSibling
		if c.Type != html.ElementNode {
			continue
		}
		if c.DataAtom == atom.Script || c.DataAtom == atom.Style {
			n.RemoveChild(c)
			continue
		}
		kept := c.Attr[:0]
		for _, a := range c.Attr {
			if strings.HasPrefix(strings.ToLower(a.Key), "on") {
				continue
			}
			if (a.Key == "href" || a.Key == "src") && !isSafeURI(a.Val) {
				continue
			}
			kept = append(kept, a)
		}
		c.Attr = kept
		cleanNode(c)
	}
}

// isSafeURI accepts relative references, http(s), mailto and inline images.
func isSafeURI(raw string) bool {
	v := strings.TrimSpace(raw)
	if v == "" || strings.HasPrefix(v, "#") {
		return true
	}
	u, err := url.Parse(v)
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "", "http", "https", "mailto":
		return true
	case "data":
		return strings.HasPrefix(strings.ToLower(v), "data:image/")
	}
	return false
}
