package dlist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	v    int
	link Link[item]
}

func (x *item) DLink() *Link[item] { return &x.link }

type itemList = List[item, *item]

func values(l *itemList) []int {
	var out []int
	l.Each(func(x *item) { out = append(out, x.v) })
	return out
}

func TestPushAndOrder(t *testing.T) {
	var l itemList
	a, b, c := &item{v: 1}, &item{v: 2}, &item{v: 3}
	assert.True(t, l.Empty())
	l.PushTail(b)
	l.PushTail(c)
	l.PushHead(a)
	assert.Equal(t, []int{1, 2, 3}, values(&l))
	assert.Equal(t, 3, l.Len())
	assert.Same(t, a, l.Head())
	assert.Same(t, c, l.Tail())
	assert.Nil(t, l.Next(c))
	assert.Nil(t, l.Prev(a))
	assert.Same(t, a, l.Prev(b))
}

func TestInsertBeforeAndAfter(t *testing.T) {
	var l itemList
	a, b, c, d := &item{v: 1}, &item{v: 2}, &item{v: 3}, &item{v: 4}
	l.PushTail(c)
	l.InsertBefore(a, c)
	l.InsertAfter(b, a)
	l.InsertAfter(d, c)
	assert.Equal(t, []int{1, 2, 3, 4}, values(&l))
	assert.Same(t, a, l.Head())
}

func TestRemove(t *testing.T) {
	var l itemList
	items := []*item{{v: 1}, {v: 2}, {v: 3}}
	for _, x := range items {
		l.PushTail(x)
	}
	l.Remove(items[1])
	assert.Equal(t, []int{1, 3}, values(&l))
	assert.False(t, items[1].link.Linked())
	assert.False(t, l.Contains(items[1]))

	assert.Same(t, items[0], l.PopHead())
	assert.Same(t, items[2], l.PopTail())
	assert.True(t, l.Empty())
	assert.Nil(t, l.PopHead())
	assert.Nil(t, l.Tail())
}

func TestMembership(t *testing.T) {
	var l1, l2 itemList
	x := &item{v: 7}
	l1.PushTail(x)
	require.True(t, l1.Contains(x))
	require.False(t, l2.Contains(x))
	assert.Panics(t, func() { l2.PushTail(x) })
	assert.Panics(t, func() { l2.Remove(x) })
	l1.Remove(x)
	l2.PushHead(x)
	assert.True(t, l2.Contains(x))
}
