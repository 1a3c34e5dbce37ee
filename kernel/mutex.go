package kernel

import (
	"ember/internal/dlist"
	"ember/ktime"
)

type mutex struct {
	id MutexID
	// link threads the owner's owned list
	link    dlist.Link[mutex]
	owner   *thread
	waiters threadList
}

func (m *mutex) DLink() *dlist.Link[mutex] { return &m.link }

// MutexCreate creates an unowned mutex.
func (k *Kernel) MutexCreate() MutexID {
	return MutexID(k.Syscall(callMutexCreate, nil))
}

// MutexLock locks m, waiting at most timeout. A zero timeout waits
// forever. It reports false if the wait timed out or m was destroyed.
// Locking a mutex the caller already owns terminates the caller.
func (k *Kernel) MutexLock(m MutexID, timeout ktime.Time) bool {
	return k.Syscall(callMutexLock, nil, Word(m), Word(timeout.Pack())) != 0
}

func (k *Kernel) MutexLockMs(m MutexID, ms uint32) bool {
	return k.MutexLock(m, ktime.FromMs(ms))
}

func (k *Kernel) MutexLockUs(m MutexID, us uint32) bool {
	return k.MutexLock(m, ktime.FromUs(us))
}

// MutexUnlock unlocks m and hands it to the longest waiting thread. Only
// the owner may unlock; any other caller is terminated.
func (k *Kernel) MutexUnlock(m MutexID) {
	k.Syscall(callMutexUnlock, nil, Word(m))
}

// MutexDestroy destroys m. Every waiter fails its lock.
func (k *Kernel) MutexDestroy(m MutexID) {
	k.Syscall(callMutexDestroy, nil, Word(m))
}

func (k *Kernel) mutexHandler(c Call) Word {
	k.checkContext(Supervisor, "MUTEX")
	s := k.arch.DisableInterrupts()
	defer k.arch.RestoreInterrupts(s)

	switch c.Num {
	case callMutexCreate:
		h, m, ok := k.mutexes.alloc()
		if !ok {
			k.fatal(ErrOutOfSystemMemory, "MUTEX")
		}
		*m = mutex{id: MutexID(h)}
		return Word(h)
	case callMutexLock:
		return k.mutexLock(k.mutexFor(c.Args[0]), ktime.Unpack(uint64(c.Args[1])))
	case callMutexUnlock:
		k.mutexUnlock(k.mutexFor(c.Args[0]))
	case callMutexDestroy:
		k.mutexDestroy(k.mutexFor(c.Args[0]))
	default:
		k.raise(ErrInvalidSysCall)
	}
	return 0
}

func (k *Kernel) mutexFor(w Word) *mutex {
	m, ok := k.mutexes.get(uint32(w))
	if !ok {
		k.badHandle("MUTEX")
	}
	return m
}

func (k *Kernel) mutexLock(m *mutex, timeout ktime.Time) Word {
	t := k.caller()
	switch m.owner {
	case nil:
		m.owner = t
		t.owned.PushTail(m)
	case t:
		k.raise(ErrSyncAlreadyOwned)
		return 0
	default:
		m.waiters.PushTail(t)
		k.sleep(t, timeout, SyncMutex, m)
	}
	return 1
}

func (k *Kernel) mutexUnlock(m *mutex) {
	t := k.caller()
	switch m.owner {
	case nil:
		k.raise(ErrSyncAlreadyUnlocked)
	case t:
		k.mutexRelease(m, t)
	default:
		k.raise(ErrSyncWrongUnlocker)
	}
}

// mutexRelease detaches t from m. An owner gives m up to the head waiter;
// a waiter leaves the queue and the owner's priority is recomputed without
// it.
func (k *Kernel) mutexRelease(m *mutex, t *thread) {
	if m.owner != t {
		m.waiters.Remove(t)
		if m.owner != nil {
			k.setCurrentPriority(m.owner, k.ownerPriority(m.owner))
		}
		return
	}

	t.owned.Remove(m)
	m.owner = nil
	k.setCurrentPriority(t, k.ownerPriority(t))

	w := m.waiters.PopHead()
	if w == nil {
		return
	}
	m.owner = w
	w.owned.PushTail(m)
	k.wakeup(w)
	k.setCurrentPriority(w, k.ownerPriority(w))
}

func (k *Kernel) mutexDestroy(m *mutex) {
	for w := m.waiters.PopHead(); w != nil; w = m.waiters.PopHead() {
		k.arch.Patch(w.ctx, 0)
		k.wakeup(w)
	}
	if owner := m.owner; owner != nil {
		owner.owned.Remove(m)
		m.owner = nil
		k.setCurrentPriority(owner, k.ownerPriority(owner))
	}
	k.mutexes.release(uint32(m.id))
}
