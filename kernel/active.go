package kernel

import "ember/internal/dlist"

type threadList = dlist.List[thread, *thread]

// readyList is the priority ordered set of runnable threads.
//
// The most urgent thread is held in current, outside the structure. The
// rest live in a fixed array of ranks, one list per distinct priority,
// sorted ascending and binary searched. When more distinct priorities are
// runnable than there are ranks, the least urgent ranks spill into a sorted
// overflow list, which only ever holds threads less urgent than every
// cached rank. Threads of equal priority are kept in FIFO order.
type readyList struct {
	ranks    []*threadList
	n        int
	store    []threadList
	spare    []*threadList
	overflow threadList
	current  *thread
}

func (r *readyList) init(size int) {
	r.store = make([]threadList, size)
	r.ranks = make([]*threadList, size)
	r.spare = make([]*threadList, 0, size)
	for i := range r.store {
		r.spare = append(r.spare, &r.store[i])
	}
}

// add makes t runnable. A thread strictly more urgent than current
// preempts it; the preempted thread goes back to the head of its rank.
func (r *readyList) add(t *thread) {
	switch {
	case r.current == nil:
		r.current = t
	case t.prio < r.current.prio:
		prev := r.current
		r.current = t
		r.insert(prev, true)
	default:
		r.insert(t, false)
	}
}

// remove takes t out of the runnable set. Removing current promotes the
// head of the most urgent rank.
func (r *readyList) remove(t *thread) {
	if t == r.current {
		r.current = r.popFirst()
		return
	}
	pos := r.search(t.prio)
	if pos < r.n && r.ranks[pos].Contains(t) {
		r.ranks[pos].Remove(t)
		if r.ranks[pos].Empty() {
			r.removeRank(pos)
		}
		return
	}
	r.overflow.Remove(t)
}

// search returns the first rank whose priority is not more urgent than p.
func (r *readyList) search(p Priority) int {
	lo, hi := 0, r.n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if r.ranks[mid].Head().prio < p {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (r *readyList) insert(t *thread, front bool) {
	pos := r.search(t.prio)
	if pos < r.n && r.ranks[pos].Head().prio == t.prio {
		if front {
			r.ranks[pos].PushHead(t)
		} else {
			r.ranks[pos].PushTail(t)
		}
		return
	}
	if pos >= len(r.ranks) {
		r.insertOverflow(t, front)
		return
	}
	if r.n == len(r.ranks) {
		r.evict()
	}
	l := r.spare[len(r.spare)-1]
	r.spare = r.spare[:len(r.spare)-1]
	l.PushTail(t)
	copy(r.ranks[pos+1:r.n+1], r.ranks[pos:r.n])
	r.ranks[pos] = l
	r.n++
}

// evict moves the least urgent rank to the head of the overflow list.
func (r *readyList) evict() {
	r.n--
	l := r.ranks[r.n]
	r.ranks[r.n] = nil
	for x := l.PopTail(); x != nil; x = l.PopTail() {
		r.overflow.PushHead(x)
	}
	r.spare = append(r.spare, l)
}

func (r *readyList) insertOverflow(t *thread, front bool) {
	o := &r.overflow
	switch {
	case o.Empty():
		o.PushTail(t)
	case front && t.prio <= o.Head().prio, !front && t.prio < o.Head().prio:
		o.PushHead(t)
	case front && t.prio > o.Tail().prio, !front && t.prio >= o.Tail().prio:
		o.PushTail(t)
	default:
		for x := o.Head(); x != nil; x = o.Next(x) {
			if x.prio > t.prio || (front && x.prio == t.prio) {
				o.InsertBefore(t, x)
				return
			}
		}
		o.PushTail(t)
	}
}

func (r *readyList) removeRank(pos int) {
	r.spare = append(r.spare, r.ranks[pos])
	copy(r.ranks[pos:r.n-1], r.ranks[pos+1:r.n])
	r.n--
	r.ranks[r.n] = nil
	r.refill()
}

// refill pulls the most urgent run of the overflow list into a free rank.
func (r *readyList) refill() {
	if r.overflow.Empty() || r.n == len(r.ranks) {
		return
	}
	l := r.spare[len(r.spare)-1]
	r.spare = r.spare[:len(r.spare)-1]
	p := r.overflow.Head().prio
	for x := r.overflow.Head(); x != nil && x.prio == p; x = r.overflow.Head() {
		r.overflow.Remove(x)
		l.PushTail(x)
	}
	r.ranks[r.n] = l
	r.n++
}

func (r *readyList) popFirst() *thread {
	if r.n == 0 {
		return nil
	}
	l := r.ranks[0]
	t := l.PopHead()
	if l.Empty() {
		r.removeRank(0)
	}
	return t
}

// each visits current, then every rank, then the overflow list.
func (r *readyList) each(fn func(*thread)) {
	if r.current != nil {
		fn(r.current)
	}
	for i := 0; i < r.n; i++ {
		r.ranks[i].Each(fn)
	}
	r.overflow.Each(fn)
}

// activate inserts t into the active structure, pending a switch when the
// most urgent thread changes.
func (k *Kernel) activate(t *thread) {
	prev := k.ready.current
	k.ready.add(t)
	k.syncCurrent(prev)
}

// deactivate removes t from the active structure, pending a switch when
// the most urgent thread changes.
func (k *Kernel) deactivate(t *thread) {
	prev := k.ready.current
	k.ready.remove(t)
	k.syncCurrent(prev)
}

func (k *Kernel) syncCurrent(prev *thread) {
	k.current = k.ready.current
	if k.current != prev {
		k.pendSwitch()
	}
}
