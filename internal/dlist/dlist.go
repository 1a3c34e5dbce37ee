// Package dlist is an intrusive circular doubly-linked list.
//
// The element type embeds a Link and exposes it through DLink, so splicing
// never allocates. An element is on at most one list per Link at a time.
// A List must not be copied after first use.
package dlist

// Link is the list header embedded in an element.
type Link[T any] struct {
	next, prev *T
	owner      *anchor[T]
}

// Linked reports whether the element is currently on a list.
func (l *Link[T]) Linked() bool { return l.owner != nil }

// Linked is satisfied by *T when T embeds a Link.
type Linked[T any] interface {
	*T
	DLink() *Link[T]
}

type anchor[T any] struct {
	first *T
	n     int
}

// List is the head of a circular list. The zero value is an empty list.
type List[T any, P Linked[T]] struct {
	a anchor[T]
}

func link[T any, P Linked[T]](x *T) *Link[T] { return P(x).DLink() }

// Len returns the number of elements.
func (l *List[T, P]) Len() int { return l.a.n }

// Empty reports whether the list has no elements.
func (l *List[T, P]) Empty() bool { return l.a.first == nil }

// Head returns the first element or nil.
func (l *List[T, P]) Head() *T { return l.a.first }

// Tail returns the last element or nil.
func (l *List[T, P]) Tail() *T {
	if l.a.first == nil {
		return nil
	}
	return link[T, P](l.a.first).prev
}

// Next returns the element after x, or nil when x is the tail.
func (l *List[T, P]) Next(x *T) *T {
	n := link[T, P](x).next
	if n == l.a.first {
		return nil
	}
	return n
}

// Prev returns the element before x, or nil when x is the head.
func (l *List[T, P]) Prev(x *T) *T {
	if x == l.a.first {
		return nil
	}
	return link[T, P](x).prev
}

// Contains reports whether x is on this list.
func (l *List[T, P]) Contains(x *T) bool { return link[T, P](x).owner == &l.a }

// PushTail appends x.
func (l *List[T, P]) PushTail(x *T) {
	if l.a.first == nil {
		l.pushFirst(x)
		return
	}
	l.insertBefore(x, l.a.first)
}

// PushHead prepends x.
func (l *List[T, P]) PushHead(x *T) {
	if l.a.first == nil {
		l.pushFirst(x)
		return
	}
	l.insertBefore(x, l.a.first)
	l.a.first = x
}

// InsertBefore inserts x ahead of mark, which must be on the list.
func (l *List[T, P]) InsertBefore(x, mark *T) {
	l.insertBefore(x, mark)
	if mark == l.a.first {
		l.a.first = x
	}
}

// InsertAfter inserts x behind mark, which must be on the list.
func (l *List[T, P]) InsertAfter(x, mark *T) {
	l.insertBefore(x, link[T, P](mark).next)
}

func (l *List[T, P]) pushFirst(x *T) {
	lx := link[T, P](x)
	if lx.owner != nil {
		panic("dlist: element already linked")
	}
	lx.next, lx.prev, lx.owner = x, x, &l.a
	l.a.first = x
	l.a.n = 1
}

func (l *List[T, P]) insertBefore(x, mark *T) {
	lx := link[T, P](x)
	if lx.owner != nil {
		panic("dlist: element already linked")
	}
	lm := link[T, P](mark)
	prev := lm.prev
	lx.next, lx.prev, lx.owner = mark, prev, &l.a
	link[T, P](prev).next = x
	lm.prev = x
	l.a.n++
}

// Remove unlinks x, which must be on this list.
func (l *List[T, P]) Remove(x *T) {
	lx := link[T, P](x)
	if lx.owner != &l.a {
		panic("dlist: element not on this list")
	}
	if lx.next == x {
		l.a.first = nil
	} else {
		link[T, P](lx.prev).next = lx.next
		link[T, P](lx.next).prev = lx.prev
		if l.a.first == x {
			l.a.first = lx.next
		}
	}
	lx.next, lx.prev, lx.owner = nil, nil, nil
	l.a.n--
}

// PopHead removes and returns the first element, or nil.
func (l *List[T, P]) PopHead() *T {
	x := l.a.first
	if x != nil {
		l.Remove(x)
	}
	return x
}

// PopTail removes and returns the last element, or nil.
func (l *List[T, P]) PopTail() *T {
	x := l.Tail()
	if x != nil {
		l.Remove(x)
	}
	return x
}

// Each calls fn for every element from head to tail. fn must not modify
// the list.
func (l *List[T, P]) Each(fn func(*T)) {
	for x := l.a.first; x != nil; x = l.Next(x) {
		fn(x)
	}
}
