package slist

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type node struct {
	v    int
	link Link[node]
}

func (n *node) SLink() *Link[node] { return &n.link }

type nodeList = List[node, *node]

func collect(l *nodeList) []int {
	var out []int
	for x := l.Head(); x != nil; x = l.Next(x) {
		out = append(out, x.v)
	}
	return out
}

func TestSList(t *testing.T) {
	var l nodeList
	a, b, c := &node{v: 1}, &node{v: 2}, &node{v: 3}
	l.PushHead(c)
	l.PushHead(a)
	l.InsertAfter(a, b)
	assert.Equal(t, []int{1, 2, 3}, collect(&l))
	assert.Equal(t, 3, l.Len())

	assert.Same(t, b, l.RemoveAfter(a))
	assert.Equal(t, []int{1, 3}, collect(&l))
	assert.Nil(t, l.RemoveAfter(c))

	assert.Same(t, a, l.RemoveAfter(nil))
	assert.Same(t, c, l.PopHead())
	assert.True(t, l.Empty())
	assert.Nil(t, l.PopHead())

	l.InsertAfter(nil, b)
	assert.Equal(t, []int{2}, collect(&l))
}
