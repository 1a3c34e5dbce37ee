package kernel

import "ember/ktime"

type event struct {
	id      EventID
	set     bool
	waiters threadList
}

// EventCreate creates a cleared event.
func (k *Kernel) EventCreate() EventID {
	return EventID(k.Syscall(callEventCreate, nil))
}

// EventPulse wakes every thread waiting on e and leaves it cleared.
func (k *Kernel) EventPulse(e EventID) { k.Syscall(callEventPulse, nil, Word(e)) }

// EventSet wakes every thread waiting on e and leaves it set, so later
// waits return at once until EventClear.
func (k *Kernel) EventSet(e EventID) { k.Syscall(callEventSet, nil, Word(e)) }

func (k *Kernel) EventClear(e EventID) { k.Syscall(callEventClear, nil, Word(e)) }

func (k *Kernel) EventIsSet(e EventID) bool {
	return k.Syscall(callEventIsSet, nil, Word(e)) != 0
}

// EventWait waits for e at most timeout; zero waits forever. It reports
// false on timeout or if e was destroyed.
func (k *Kernel) EventWait(e EventID, timeout ktime.Time) bool {
	return k.Syscall(callEventWait, nil, Word(e), Word(timeout.Pack())) != 0
}

func (k *Kernel) EventWaitMs(e EventID, ms uint32) bool {
	return k.EventWait(e, ktime.FromMs(ms))
}

func (k *Kernel) EventWaitUs(e EventID, us uint32) bool {
	return k.EventWait(e, ktime.FromUs(us))
}

// EventDestroy destroys e. Every waiter fails its wait.
func (k *Kernel) EventDestroy(e EventID) { k.Syscall(callEventDestroy, nil, Word(e)) }

func (k *Kernel) eventHandler(c Call) Word {
	k.checkContext(Supervisor|IRQ, "EVENT")
	s := k.arch.DisableInterrupts()
	defer k.arch.RestoreInterrupts(s)

	switch c.Num {
	case callEventCreate:
		return Word(k.eventCreate())
	case callEventPulse:
		e := k.eventFor(c.Args[0])
		k.eventWakeAll(e)
		e.set = false
	case callEventSet:
		e := k.eventFor(c.Args[0])
		k.eventWakeAll(e)
		e.set = true
	case callEventClear:
		k.eventFor(c.Args[0]).set = false
	case callEventIsSet:
		if k.eventFor(c.Args[0]).set {
			return 1
		}
	case callEventWait:
		return k.eventWait(k.eventFor(c.Args[0]), ktime.Unpack(uint64(c.Args[1])))
	case callEventDestroy:
		k.eventDestroy(k.eventFor(c.Args[0]))
	default:
		k.raise(ErrInvalidSysCall)
	}
	return 0
}

func (k *Kernel) eventFor(w Word) *event {
	e, ok := k.events.get(uint32(w))
	if !ok {
		k.badHandle("EVENT")
	}
	return e
}

func (k *Kernel) eventCreate() EventID {
	h, e, ok := k.events.alloc()
	if !ok {
		k.fatal(ErrOutOfSystemMemory, "EVENT")
	}
	*e = event{id: EventID(h)}
	return e.id
}

func (k *Kernel) eventWakeAll(e *event) {
	for w := e.waiters.PopHead(); w != nil; w = e.waiters.PopHead() {
		k.wakeup(w)
	}
}

func (k *Kernel) eventWait(e *event, timeout ktime.Time) Word {
	if e.set {
		return 1
	}
	t := k.caller()
	e.waiters.PushTail(t)
	k.sleep(t, timeout, SyncEvent, e)
	return 1
}

func (k *Kernel) eventDestroy(e *event) {
	for w := e.waiters.PopHead(); w != nil; w = e.waiters.PopHead() {
		k.arch.Patch(w.ctx, 0)
		k.wakeup(w)
	}
	k.events.release(uint32(e.id))
}
