package kernel

import "ember/ktime"

type semaphore struct {
	id      SemaphoreID
	value   uint32
	waiters threadList
}

// SemaphoreCreate creates a counting semaphore holding initial units.
func (k *Kernel) SemaphoreCreate(initial uint32) SemaphoreID {
	return SemaphoreID(k.Syscall(callSemaphoreCreate, nil, Word(initial)))
}

// SemaphoreSignal adds one unit, handing it to the longest waiting thread
// if there is one.
func (k *Kernel) SemaphoreSignal(s SemaphoreID) {
	k.Syscall(callSemaphoreSignal, nil, Word(s))
}

// SemaphoreWait takes one unit, waiting at most timeout; zero waits
// forever. It reports false on timeout or if s was destroyed.
func (k *Kernel) SemaphoreWait(s SemaphoreID, timeout ktime.Time) bool {
	return k.Syscall(callSemaphoreWait, nil, Word(s), Word(timeout.Pack())) != 0
}

func (k *Kernel) SemaphoreWaitMs(s SemaphoreID, ms uint32) bool {
	return k.SemaphoreWait(s, ktime.FromMs(ms))
}

func (k *Kernel) SemaphoreWaitUs(s SemaphoreID, us uint32) bool {
	return k.SemaphoreWait(s, ktime.FromUs(us))
}

// SemaphoreDestroy destroys s. Every waiter fails its wait.
func (k *Kernel) SemaphoreDestroy(s SemaphoreID) {
	k.Syscall(callSemaphoreDestroy, nil, Word(s))
}

func (k *Kernel) semaphoreHandler(c Call) Word {
	k.checkContext(Supervisor|IRQ, "SEMAPHORE")
	s := k.arch.DisableInterrupts()
	defer k.arch.RestoreInterrupts(s)

	switch c.Num {
	case callSemaphoreCreate:
		h, sem, ok := k.sems.alloc()
		if !ok {
			k.fatal(ErrOutOfSystemMemory, "SEMAPHORE")
		}
		*sem = semaphore{id: SemaphoreID(h), value: uint32(c.Args[0])}
		return Word(h)
	case callSemaphoreSignal:
		k.semaphoreSignal(k.semaphoreFor(c.Args[0]))
	case callSemaphoreWait:
		return k.semaphoreWait(k.semaphoreFor(c.Args[0]), ktime.Unpack(uint64(c.Args[1])))
	case callSemaphoreDestroy:
		sem := k.semaphoreFor(c.Args[0])
		for w := sem.waiters.PopHead(); w != nil; w = sem.waiters.PopHead() {
			k.arch.Patch(w.ctx, 0)
			k.wakeup(w)
		}
		k.sems.release(uint32(sem.id))
	default:
		k.raise(ErrInvalidSysCall)
	}
	return 0
}

func (k *Kernel) semaphoreFor(w Word) *semaphore {
	s, ok := k.sems.get(uint32(w))
	if !ok {
		k.badHandle("SEMAPHORE")
	}
	return s
}

func (k *Kernel) semaphoreSignal(s *semaphore) {
	s.value++
	for s.value > 0 {
		w := s.waiters.PopHead()
		if w == nil {
			break
		}
		s.value--
		k.wakeup(w)
	}
}

func (k *Kernel) semaphoreWait(s *semaphore, timeout ktime.Time) Word {
	if s.value > 0 {
		s.value--
		return 1
	}
	t := k.caller()
	s.waiters.PushTail(t)
	k.sleep(t, timeout, SyncSemaphore, s)
	return 1
}
