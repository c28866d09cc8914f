package vcd

import (
	"slices"
	"strings"
)

// scope is one node of the declaration hierarchy, keyed by its full
// separator-delimited path.
type scope struct {
	path string
	kind ScopeType
	vars []*Variable // registration order
}

// scopeTree stores scopes in an arena. Variables refer to their scope by
// index into scopes, which never shrinks.
type scopeTree struct {
	sep    string
	scopes []*scope
	index  map[string]int
}

func newScopeTree(sep string) *scopeTree {
	return &scopeTree{sep: sep, index: make(map[string]int)}
}

// ensure returns the index of path, creating the scope with kind if absent.
// The kind of an existing scope is left untouched.
func (t *scopeTree) ensure(path string, kind ScopeType) int {
	if i, ok := t.index[path]; ok {
		return i
	}
	t.scopes = append(t.scopes, &scope{path: path, kind: kind})
	i := len(t.scopes) - 1
	t.index[path] = i
	return i
}

func (t *scopeTree) at(i int) *scope { return t.scopes[i] }

// sorted returns the scopes ordered segment by segment, so a parent always
// directly precedes the first of its descendants.
func (t *scopeTree) sorted() []*scope {
	out := slices.Clone(t.scopes)
	slices.SortStableFunc(out, func(a, b *scope) int {
		return slices.Compare(strings.Split(a.path, t.sep), strings.Split(b.path, t.sep))
	})
	return out
}

// writeDeclarations emits the nested $scope/$var/$upscope block.
//
// For each pair of consecutive scopes the shared leading segments stay
// open, the previous scope's remaining segments are closed and the current
// scope's new segments are opened. Segments opened on the way down take the
// kind of the scope that opened them.
func (t *scopeTree) writeDeclarations(s *sink) {
	var open []string
	for _, sc := range t.sorted() {
		segs := strings.Split(sc.path, t.sep)

		shared := 0
		for shared < len(open) && shared < len(segs) && open[shared] == segs[shared] {
			shared++
		}
		for range open[shared:] {
			s.printf("$upscope $end\n")
		}
		for _, seg := range segs[shared:] {
			s.printf("$scope %s %s $end\n", sc.kind, seg)
		}
		open = segs

		for _, v := range sc.vars {
			s.printf("%s\n", v.declaration())
		}
	}
	for range open {
		s.printf("$upscope $end\n")
	}
}
