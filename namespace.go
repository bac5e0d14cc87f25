package sqlbook

import (
	"fmt"
	"strings"
)

// Namespace is a node of the query tree - each name in a namespace is either a query (leaf) or a child namespace
//
// names keep the order in which they were added (source order, then directory walk order)
type Namespace struct {
	name     string
	path     string
	order    []string
	queries  map[string]*Query
	children map[string]*Namespace
}

func newNamespace(name string, path string) *Namespace {
	return &Namespace{
		name:     name,
		path:     path,
		queries:  map[string]*Query{},
		children: map[string]*Namespace{},
	}
}

// Name is the name of the namespace ("" for the root)
func (ns *Namespace) Name() string {
	return ns.name
}

// Path is the dotted path of the namespace from the root
func (ns *Namespace) Path() string {
	return ns.path
}

// Names returns the leaf and child names in order
func (ns *Namespace) Names() []string {
	return append([]string{}, ns.order...)
}

// Query returns the named leaf query of this namespace
func (ns *Namespace) Query(name string) (*Query, bool) {
	q, ok := ns.queries[name]
	return q, ok
}

// Child returns the named child namespace
func (ns *Namespace) Child(name string) (*Namespace, bool) {
	c, ok := ns.children[name]
	return c, ok
}

// Queries returns the leaf queries of this namespace (not descending into children) in order
func (ns *Namespace) Queries() []*Query {
	result := make([]*Query, 0, len(ns.queries))
	for _, n := range ns.order {
		if q, ok := ns.queries[n]; ok {
			result = append(result, q)
		}
	}
	return result
}

// Lookup resolves a dotted path (e.g. "blogs.get_user_blogs") to a query
func (ns *Namespace) Lookup(path string) (*Query, error) {
	parent, leaf, err := ns.resolveParent(path)
	if err != nil {
		return nil, err
	}
	if q, ok := parent.queries[leaf]; ok {
		return q, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrNoQuery, path)
}

// Walk calls fn for every query in the tree (depth first, in order) - stops at the first error
func (ns *Namespace) Walk(fn func(q *Query) error) error {
	for _, n := range ns.order {
		if q, ok := ns.queries[n]; ok {
			if err := fn(q); err != nil {
				return err
			}
		} else if c, ok := ns.children[n]; ok {
			if err := c.Walk(fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Len returns the total number of queries in the tree
func (ns *Namespace) Len() (count int) {
	_ = ns.Walk(func(*Query) error {
		count++
		return nil
	})
	return count
}

func (ns *Namespace) resolveParent(path string) (*Namespace, string, error) {
	parts := strings.Split(path, ".")
	current := ns
	for _, part := range parts[:len(parts)-1] {
		c, ok := current.children[part]
		if !ok {
			return nil, "", fmt.Errorf("%w: %q", ErrNoQuery, path)
		}
		current = c
	}
	return current, parts[len(parts)-1], nil
}

func (ns *Namespace) has(name string) bool {
	_, isQuery := ns.queries[name]
	_, isChild := ns.children[name]
	return isQuery || isChild
}

func (ns *Namespace) addQuery(q *Query) error {
	def := q.def
	if ns.has(def.Name) {
		return &DuplicateNameError{Name: ns.qualified(def.Name), Source: def.Source, Line: def.Line}
	}
	ns.queries[def.Name] = q
	ns.order = append(ns.order, def.Name)
	return nil
}

// child returns the named child namespace, creating it if needed
func (ns *Namespace) child(name string, source string) (*Namespace, error) {
	if c, ok := ns.children[name]; ok {
		return c, nil
	}
	if _, clash := ns.queries[name]; clash {
		return nil, &DuplicateNameError{Name: ns.qualified(name), Source: source}
	}
	c := newNamespace(name, ns.qualified(name))
	ns.children[name] = c
	ns.order = append(ns.order, name)
	return c, nil
}

func (ns *Namespace) qualified(name string) string {
	if ns.path == "" {
		return name
	}
	return ns.path + "." + name
}
