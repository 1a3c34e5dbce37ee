// Package slist is an intrusive singly-linked list with O(1) head
// operations and remove-after splicing.
package slist

// Link is embedded in an element.
type Link[T any] struct {
	next *T
}

// Linked is satisfied by *T when T embeds a Link.
type Linked[T any] interface {
	*T
	SLink() *Link[T]
}

// List is the head of the list. The zero value is empty.
type List[T any, P Linked[T]] struct {
	first *T
}

// Head returns the first element or nil.
func (l *List[T, P]) Head() *T { return l.first }

// Empty reports whether the list has no elements.
func (l *List[T, P]) Empty() bool { return l.first == nil }

// Next returns the element following x, or nil.
func (l *List[T, P]) Next(x *T) *T { return P(x).SLink().next }

// PushHead prepends x.
func (l *List[T, P]) PushHead(x *T) {
	P(x).SLink().next = l.first
	l.first = x
}

// PopHead removes and returns the first element, or nil.
func (l *List[T, P]) PopHead() *T {
	x := l.first
	if x != nil {
		l.first = P(x).SLink().next
		P(x).SLink().next = nil
	}
	return x
}

// InsertAfter links x behind prev. A nil prev inserts at the head.
func (l *List[T, P]) InsertAfter(prev, x *T) {
	if prev == nil {
		l.PushHead(x)
		return
	}
	lp := P(prev).SLink()
	P(x).SLink().next = lp.next
	lp.next = x
}

// RemoveAfter unlinks the element behind prev and returns it. A nil prev
// removes the head.
func (l *List[T, P]) RemoveAfter(prev *T) *T {
	if prev == nil {
		return l.PopHead()
	}
	lp := P(prev).SLink()
	x := lp.next
	if x != nil {
		lp.next = P(x).SLink().next
		P(x).SLink().next = nil
	}
	return x
}

// Len walks the list and counts its elements.
func (l *List[T, P]) Len() int {
	n := 0
	for x := l.first; x != nil; x = P(x).SLink().next {
		n++
	}
	return n
}
