package kernel

import (
	"ember/internal/dlist"
	"ember/ktime"
)

type timerAction uint8

const (
	timerThread timerAction = iota + 1
	timerSoft
)

// timer is a wake queue entry. It is embedded in the object that arms it.
type timer struct {
	link   dlist.Link[timer]
	at     ktime.Time
	action timerAction
	thread *thread
	soft   *softTimer
	armed  bool
}

func (t *timer) DLink() *dlist.Link[timer] { return &t.link }

type timerList = dlist.List[timer, *timer]

// wakeQueue orders armed timers by deadline, FIFO among equal deadlines.
// The earliest entries sit in a sorted cache array; later ones spill into
// a sorted overflow list that is only non-empty while the cache is full.
type wakeQueue struct {
	cache    []*timer
	n        int
	overflow timerList
	// set while expired timers are being fired, so re-arming from a
	// callback does not reprogram the alarm mid-scan
	insideISR bool
}

func (q *wakeQueue) init(size int) {
	q.cache = make([]*timer, size)
}

func (q *wakeQueue) head() *timer {
	if q.n == 0 {
		return nil
	}
	return q.cache[0]
}

// upper returns the index after the last cached entry due at or before at.
func (q *wakeQueue) upper(at ktime.Time) int {
	lo, hi := 0, q.n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if !q.cache[mid].at.After(at) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// lower returns the index of the first cached entry due at or after at.
func (q *wakeQueue) lower(at ktime.Time) int {
	lo, hi := 0, q.n
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if q.cache[mid].at.Before(at) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func (q *wakeQueue) insert(t *timer) {
	t.armed = true
	pos := q.upper(t.at)
	if pos < len(q.cache) {
		if q.n == len(q.cache) {
			q.n--
			q.overflow.PushHead(q.cache[q.n])
			q.cache[q.n] = nil
		}
		copy(q.cache[pos+1:q.n+1], q.cache[pos:q.n])
		q.cache[pos] = t
		q.n++
		return
	}

	o := &q.overflow
	switch {
	case o.Empty() || !t.at.Before(o.Tail().at):
		o.PushTail(t)
	case t.at.Before(o.Head().at):
		o.PushHead(t)
	default:
		for x := o.Head(); x != nil; x = o.Next(x) {
			if x.at.After(t.at) {
				o.InsertBefore(t, x)
				return
			}
		}
		o.PushTail(t)
	}
}

// remove takes t out of the queue. Entries with equal deadlines are
// scanned for t itself.
func (q *wakeQueue) remove(t *timer) {
	if !t.armed {
		return
	}
	t.armed = false
	if q.overflow.Contains(t) {
		q.overflow.Remove(t)
		return
	}
	for i := q.lower(t.at); i < q.n && q.cache[i].at == t.at; i++ {
		if q.cache[i] == t {
			q.removeAt(i)
			return
		}
	}
}

func (q *wakeQueue) removeAt(i int) {
	copy(q.cache[i:q.n-1], q.cache[i+1:q.n])
	q.n--
	q.cache[q.n] = nil
	if x := q.overflow.PopHead(); x != nil {
		q.cache[q.n] = x
		q.n++
	}
}

// popExpired removes and returns the earliest timer due at or before now.
func (q *wakeQueue) popExpired(now ktime.Time) *timer {
	t := q.head()
	if t == nil || t.at.After(now) {
		return nil
	}
	t.armed = false
	q.removeAt(0)
	return t
}

func (q *wakeQueue) len() int { return q.n + q.overflow.Len() }

// armTimer queues t to fire at the absolute time at.
func (k *Kernel) armTimer(t *timer, at ktime.Time) {
	if t.armed {
		k.wq.remove(t)
	}
	t.at = at
	k.wq.insert(t)
	if !k.wq.insideISR && k.wq.head() == t {
		k.clock.SetAlarm(at)
	}
}

func (k *Kernel) cancelTimer(t *timer) {
	if !t.armed {
		return
	}
	wasHead := k.wq.head() == t
	k.wq.remove(t)
	if wasHead && !k.wq.insideISR {
		k.programAlarm()
	}
}

func (k *Kernel) programAlarm() {
	if t := k.wq.head(); t != nil {
		k.clock.SetAlarm(t.at)
		return
	}
	k.clock.SetAlarm(ktime.Time{})
}

// TimerInterrupt fires every expired timer and reprograms the alarm. The
// port calls it from interrupt context when the alarm goes off.
func (k *Kernel) TimerInterrupt() {
	k.checkContext(IRQ, "TIMER")
	s := k.arch.DisableInterrupts()
	defer k.arch.RestoreInterrupts(s)

	k.wq.insideISR = true
	for {
		t := k.wq.popExpired(k.clock.Uptime())
		if t == nil {
			break
		}
		switch t.action {
		case timerThread:
			k.threadTimeout(t.thread)
		case timerSoft:
			k.softTimerFired(t.soft)
		}
	}
	k.wq.insideISR = false
	k.programAlarm()
}
