package epub

import (
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// anchorIDFormat is the fixed-width id given to every navigation target.
const anchorIDFormat = "%010d"

// link is a hyperlink with its target resolved once, before any document
// is moved into a chapter.
type link struct {
	node     *html.Node
	path     string
	fragment string
}

// target identifies an element by document path and id.
type target struct {
	path     string
	fragment string
}

// linkIndex holds every internal hyperlink and every element id of the
// loaded documents.
type linkIndex struct {
	links []link
	ids   map[target]*html.Node
	docs  map[string]*document
}

func newLinkIndex(docs []*document) *linkIndex {
	x := &linkIndex{
		ids:  make(map[target]*html.Node),
		docs: make(map[string]*document, len(docs)),
	}
	for _, d := range docs {
		x.docs[d.path] = d
		walk(d.body, func(n *html.Node) {
			if id, ok := getAttr(n, "id"); ok && id != "" {
				t := target{d.path, id}
				if _, dup := x.ids[t]; !dup {
					x.ids[t] = n
				}
			}
			if n.DataAtom != atom.A {
				return
			}
			href, ok := getAttr(n, "href")
			if !ok || hasScheme(href) {
				return
			}
			p, frag := splitFragment(strings.TrimSpace(href))
			if p == "" {
				p = d.path
			} else if p = resolvePath(d.path, p); p == "" {
				return
			}
			x.links = append(x.links, link{node: n, path: p, fragment: frag})
		})
	}
	return x
}

// resolve returns the element a navigation entry points at: the first
// element of the document body without a fragment, the element with that
// id otherwise.
func (x *linkIndex) resolve(e navEntry) (*html.Node, error) {
	d, ok := x.docs[e.path]
	if !ok {
		return nil, fmt.Errorf("navigation entry %q points outside the spine: %s", e.label, e.path)
	}
	if e.fragment == "" {
		n := firstElementChild(d.body)
		if n == nil {
			return nil, fmt.Errorf("navigation entry %q points at an empty document: %s", e.label, e.path)
		}
		return n, nil
	}
	n, ok := x.ids[target{e.path, e.fragment}]
	if !ok {
		return nil, fmt.Errorf("navigation entry %q: no element with id %q in %s", e.label, e.fragment, e.path)
	}
	return n, nil
}

// renumberAnchors gives every navigation target, in play order, a new
// sequential id and points every hyperlink to that target at it. A node
// reached by several entries keeps the id of the first. Unresolvable
// entries are reported through warn and skipped.
func (x *linkIndex) renumberAnchors(entries []navEntry, warn func(string)) {
	assigned := make(map[*html.Node]string)
	retarget := make(map[target]string)
	counter := 0

	for _, e := range entries {
		n, err := x.resolve(e)
		if err != nil {
			warn(err.Error())
			continue
		}
		id, ok := assigned[n]
		if !ok {
			orig, _ := getAttr(n, "id")
			counter++
			id = fmt.Sprintf(anchorIDFormat, counter)
			assigned[n] = id
			setAttr(n, "id", id)
			if orig != "" {
				retarget[target{e.path, orig}] = id
			}
		}
		if _, seen := retarget[target{e.path, e.fragment}]; !seen {
			retarget[target{e.path, e.fragment}] = id
		}
	}

	for _, l := range x.links {
		t := target{l.path, l.fragment}
		if id, ok := retarget[t]; ok {
			setAttr(l.node, "href", "#"+id)
			continue
		}
		if _, inBook := x.docs[l.path]; !inBook {
			continue
		}
		if l.fragment != "" {
			setAttr(l.node, "href", "#"+l.fragment)
		}
	}
}
