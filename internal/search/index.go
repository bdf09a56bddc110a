// Package search provides the test case name index used for prefix lookups.
package search

import (
	"sort"
	"strings"
	"sync"
)

type child struct {
	key  rune
	node *node
}

// node children are kept sorted by key so traversal order never depends on map iteration.
type node struct {
	children []child
	end      bool
	word     string
}

func (n *node) get(r rune) *node {
	i := sort.Search(len(n.children), func(i int) bool { return n.children[i].key >= r })
	if i < len(n.children) && n.children[i].key == r {
		return n.children[i].node
	}
	return nil
}

func (n *node) getOrAdd(r rune) *node {
	i := sort.Search(len(n.children), func(i int) bool { return n.children[i].key >= r })
	if i < len(n.children) && n.children[i].key == r {
		return n.children[i].node
	}
	nn := &node{}
	n.children = append(n.children, child{})
	copy(n.children[i+1:], n.children[i:])
	n.children[i] = child{key: r, node: nn}
	return nn
}

// PrefixIndex is a trie over lower-cased test case names.
//
// Entries are never removed individually: after deleting test cases the owner
// calls Rebuild with the authoritative name list. Results of SearchPrefix are
// returned in pre-order with children visited by ascending rune, so a name
// always precedes its extensions ("login" before "login flow").
type PrefixIndex struct {
	mu   sync.RWMutex
	root *node
	size int
}

// NewPrefixIndex returns an empty index
func NewPrefixIndex() *PrefixIndex {
	return &PrefixIndex{root: &node{}}
}

// Insert adds name to the index. Inserting the same name twice is a no-op.
func (p *PrefixIndex) Insert(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.insertLocked(name)
}

func (p *PrefixIndex) insertLocked(name string) {
	word := strings.ToLower(name)
	n := p.root
	for _, r := range word {
		n = n.getOrAdd(r)
	}
	if !n.end {
		n.end = true
		n.word = word
		p.size++
	}
}

// SearchPrefix returns every indexed name starting with prefix, case-insensitively.
// An unmatched prefix yields an empty slice; the empty prefix yields every name.
func (p *PrefixIndex) SearchPrefix(prefix string) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	results := []string{}
	n := p.root
	for _, r := range strings.ToLower(prefix) {
		if n = n.get(r); n == nil {
			return results
		}
	}

	stack := []*node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if cur.end {
			results = append(results, cur.word)
		}
		for i := len(cur.children) - 1; i >= 0; i-- {
			stack = append(stack, cur.children[i].node)
		}
	}
	return results
}

// Rebuild replaces the whole index with names.
func (p *PrefixIndex) Rebuild(names []string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.root = &node{}
	p.size = 0
	for _, name := range names {
		p.insertLocked(name)
	}
}

// Len reports the number of distinct names indexed.
func (p *PrefixIndex) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.size
}
