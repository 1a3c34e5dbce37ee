package kernel

import (
	"ember/internal/dlist"
	"ember/ktime"
	"ember/mem"
)

// State is a thread lifecycle state.
type State uint8

const (
	Frozen State = iota
	Running
	Waiting
	WaitingFrozen
)

func (s State) String() string {
	switch s {
	case Frozen:
		return "frozen"
	case Running:
		return "running"
	case Waiting:
		return "waiting"
	case WaitingFrozen:
		return "waiting frozen"
	default:
		return "unknown"
	}
}

// SyncKind names what a waiting thread is blocked on.
type SyncKind uint8

const (
	SyncNone SyncKind = iota
	SyncTimer
	SyncMutex
	SyncEvent
	SyncSemaphore
	SyncQueue
)

func (s SyncKind) String() string {
	switch s {
	case SyncNone:
		return "none"
	case SyncTimer:
		return "timer"
	case SyncMutex:
		return "mutex"
	case SyncEvent:
		return "event"
	case SyncSemaphore:
		return "semaphore"
	case SyncQueue:
		return "queue"
	default:
		return "unknown"
	}
}

// threadFlags packs the lifecycle state (bits 0-1), the wake timer bit
// and the sync kind (bits 4-7).
type threadFlags uint32

const (
	flagStateMask   threadFlags = 0x3
	flagTimerActive threadFlags = 1 << 2
	flagSyncShift               = 4
	flagSyncMask    threadFlags = 0xf << flagSyncShift
)

// ThreadFunc is a thread entry point. It must not return; a thread is
// destroyed explicitly.
type ThreadFunc func(arg Word)

// ThreadSpec describes a thread to create.
type ThreadSpec struct {
	Name       string
	Priority   Priority
	StackWords int
	Entry      ThreadFunc
	Arg        Word
	// Pool overrides the data pool used by the thread's allocations.
	Pool *mem.Pool
}

type mutexList = dlist.List[mutex, *mutex]

type thread struct {
	id   ThreadID
	name string
	// link threads the active structure or a waiter list, never both
	link dlist.Link[thread]

	base Priority
	prio Priority

	flags threadFlags
	wake  timer
	sync  any
	owned mutexList

	pool       *mem.Pool
	ctx        ExecContext
	stack      int
	stackWords int

	switches uint64
	runtime  ktime.Time
	since    ktime.Time
}

func (t *thread) DLink() *dlist.Link[thread] { return &t.link }

func (t *thread) state() State { return State(t.flags & flagStateMask) }

func (t *thread) setState(s State) {
	t.flags = t.flags&^flagStateMask | threadFlags(s)
}

func (t *thread) syncKind() SyncKind {
	return SyncKind((t.flags & flagSyncMask) >> flagSyncShift)
}

func (t *thread) setSync(kind SyncKind, obj any) {
	t.flags = t.flags&^flagSyncMask | threadFlags(kind)<<flagSyncShift
	t.sync = obj
}

func (t *thread) timerActive() bool { return t.flags&flagTimerActive != 0 }

func (t *thread) displayName() string {
	if t.name == "" {
		return unnamedThreadName
	}
	return t.name
}

// ThreadCreate creates a frozen thread.
func (k *Kernel) ThreadCreate(spec ThreadSpec) ThreadID {
	return ThreadID(k.Syscall(callThreadCreate, &spec))
}

// ThreadUnfreeze makes a frozen thread runnable.
func (k *Kernel) ThreadUnfreeze(id ThreadID) {
	k.Syscall(callThreadUnfreeze, nil, Word(id))
}

// ThreadFreeze excludes a thread from scheduling.
func (k *Kernel) ThreadFreeze(id ThreadID) {
	k.Syscall(callThreadFreeze, nil, Word(id))
}

// ThreadDestroy destroys a thread, which may be the caller.
func (k *Kernel) ThreadDestroy(id ThreadID) {
	k.Syscall(callThreadDestroy, nil, Word(id))
}

// ThreadSetPriority changes the base priority of a thread.
func (k *Kernel) ThreadSetPriority(id ThreadID, p Priority) {
	k.Syscall(callThreadSetPriority, nil, Word(id), Word(p))
}

// ThreadGetPriority returns the effective priority of a thread.
func (k *Kernel) ThreadGetPriority(id ThreadID) Priority {
	return Priority(k.Syscall(callThreadGetPriority, nil, Word(id)))
}

// ThreadCurrent returns the calling thread.
func (k *Kernel) ThreadCurrent() ThreadID {
	return ThreadID(k.Syscall(callThreadGetCurrent, nil))
}

// ThreadName returns the name of a thread.
func (k *Kernel) ThreadName(id ThreadID) string {
	var name string
	k.Syscall(callThreadName, &name, Word(id))
	return name
}

// Sleep suspends the caller for d. A zero duration returns at once.
func (k *Kernel) Sleep(d ktime.Time) {
	if d.IsZero() {
		return
	}
	k.Syscall(callThreadSleep, nil, Word(d.Pack()))
}

// SleepMs suspends the caller for ms milliseconds.
func (k *Kernel) SleepMs(ms uint32) { k.Sleep(ktime.FromMs(ms)) }

// SleepUs suspends the caller for us microseconds.
func (k *Kernel) SleepUs(us uint32) { k.Sleep(ktime.FromUs(us)) }

func (k *Kernel) threadHandler(c Call) Word {
	k.checkContext(Supervisor|IRQ, "THREAD")
	s := k.arch.DisableInterrupts()
	defer k.arch.RestoreInterrupts(s)

	switch c.Num {
	case callThreadCreate:
		spec, ok := c.Ref.(*ThreadSpec)
		if !ok || spec.Entry == nil {
			k.raise(ErrInvalidSysCall)
			return 0
		}
		return Word(k.createThread(*spec, false).id)
	case callThreadUnfreeze:
		k.unfreeze(k.threadFor(c.Args[0]))
	case callThreadFreeze:
		k.freeze(k.threadFor(c.Args[0]))
	case callThreadDestroy:
		k.destroyThread(k.threadFor(c.Args[0]))
	case callThreadSetPriority:
		k.setPriority(k.threadFor(c.Args[0]), Priority(c.Args[1]))
	case callThreadGetPriority:
		return Word(k.threadFor(c.Args[0]).prio)
	case callThreadGetCurrent:
		if k.active == nil {
			return 0
		}
		return Word(k.active.id)
	case callThreadName:
		if name, ok := c.Ref.(*string); ok {
			*name = k.threadFor(c.Args[0]).displayName()
		}
	case callThreadSleep:
		k.sleep(k.caller(), ktime.Unpack(uint64(c.Args[0])), SyncTimer, nil)
	case callThreadExit:
		k.raise(ErrThreadOutOfContext)
	case callThreadStats:
		if out, ok := c.Ref.(*[]ThreadInfo); ok {
			*out = k.appendStats((*out)[:0])
		}
	default:
		k.raise(ErrInvalidSysCall)
	}
	return 0
}

func (k *Kernel) threadFor(w Word) *thread {
	t, ok := k.threads.get(uint32(w))
	if !ok {
		k.badHandle("THREAD")
	}
	return t
}

func (k *Kernel) badHandle(where string) {
	if k.cfg.Marks {
		k.fatal(ErrInvalidMagic, where)
	}
	k.fatal(ErrObjectNotFound, where)
}

// caller returns the thread whose context made the current call.
func (k *Kernel) caller() *thread {
	if k.active == nil {
		k.fatal(ErrWrongContext, "THREAD")
	}
	return k.active
}

func (k *Kernel) createThread(spec ThreadSpec, idle bool) *thread {
	if !idle && spec.Priority == IdlePriority {
		spec.Priority--
	}
	h, t, ok := k.threads.alloc()
	if !ok {
		k.fatal(ErrOutOfSystemMemory, "THREAD")
	}
	words := spec.StackWords
	if words <= 0 {
		words = k.cfg.DefaultStackWords
	}
	stack, ok := k.cfg.StackPool.Alloc(words*mem.WordSize, 2*mem.WordSize)
	if !ok {
		k.threads.release(h)
		k.fatal(ErrOutOfStackMemory, "THREAD")
	}
	*t = thread{
		id:         ThreadID(h),
		name:       spec.Name,
		base:       spec.Priority,
		prio:       spec.Priority,
		pool:       spec.Pool,
		stack:      stack,
		stackWords: words,
	}
	t.setState(Frozen)
	t.wake = timer{action: timerThread, thread: t}
	entry := spec.Entry
	t.ctx = k.arch.NewContext(t.id, func(arg Word) {
		entry(arg)
		k.Syscall(callThreadExit, nil)
	}, spec.Arg, words)

	k.log.Debug().
		Str("thread", t.displayName()).
		Uint64("id", uint64(t.id)).
		Uint64("priority", uint64(t.base)).
		Int("stack_words", words).
		Log("thread created")
	return t
}

func (k *Kernel) unfreeze(t *thread) {
	switch t.state() {
	case Frozen:
		t.setState(Running)
		k.activate(t)
	case WaitingFrozen:
		t.setState(Waiting)
	}
}

func (k *Kernel) freeze(t *thread) {
	if t == k.idle {
		k.fatal(ErrIdleCall, "THREAD")
	}
	switch t.state() {
	case Running:
		t.setState(Frozen)
		k.deactivate(t)
	case Waiting:
		t.setState(WaitingFrozen)
	}
}

func (k *Kernel) setPriority(t *thread, p Priority) {
	if t == k.idle {
		k.fatal(ErrIdleCall, "THREAD")
	}
	if p == IdlePriority {
		p--
	}
	t.base = p
	k.setCurrentPriority(t, k.ownerPriority(t))
}

// ownerPriority is min(base, every direct waiter of every owned mutex).
func (k *Kernel) ownerPriority(t *thread) Priority {
	p := t.base
	for m := t.owned.Head(); m != nil; m = t.owned.Next(m) {
		for w := m.waiters.Head(); w != nil; w = m.waiters.Next(w) {
			p = min(p, w.prio)
		}
	}
	return p
}

// setCurrentPriority changes the effective priority of t. A runnable
// thread is re-sorted; a thread blocked on a mutex passes the change on to
// that mutex's owner, so inheritance follows chains of any length.
func (k *Kernel) setCurrentPriority(t *thread, p Priority) {
	k.propagatePriority(t, p, 0)
}

func (k *Kernel) propagatePriority(t *thread, p Priority, depth int) {
	if t.prio == p {
		return
	}
	switch t.state() {
	case Running:
		k.deactivate(t)
		t.prio = p
		k.activate(t)
	case Waiting, WaitingFrozen:
		t.prio = p
		// a lock cycle is a deadlock; stop instead of spinning on it
		if m, ok := t.sync.(*mutex); ok && t.syncKind() == SyncMutex && m.owner != nil && depth < k.cfg.MaxThreads {
			k.propagatePriority(m.owner, k.ownerPriority(m.owner), depth+1)
		}
	default:
		t.prio = p
	}
}

// sleep blocks t, which must be the calling thread, on obj. A zero timeout
// waits forever. The caller has already queued t on obj's waiter list.
func (k *Kernel) sleep(t *thread, timeout ktime.Time, kind SyncKind, obj any) {
	k.checkBlocking("THREAD")
	if t == k.idle {
		k.fatal(ErrIdleCall, "THREAD")
	}
	k.deactivate(t)
	t.setState(Waiting)
	t.setSync(kind, obj)
	if kind == SyncMutex {
		if owner := obj.(*mutex).owner; owner != nil && owner.prio > t.prio {
			k.setCurrentPriority(owner, k.ownerPriority(owner))
		}
	}
	if !timeout.IsZero() {
		t.flags |= flagTimerActive
		k.armTimer(&t.wake, k.clock.Uptime().Add(timeout))
	}
}

// wakeup makes a waiting thread runnable again, or frozen if a freeze was
// requested while it waited.
func (k *Kernel) wakeup(t *thread) {
	if t.timerActive() {
		t.flags &^= flagTimerActive
		k.cancelTimer(&t.wake)
	}
	t.setSync(SyncNone, nil)
	switch t.state() {
	case Waiting:
		t.setState(Running)
		k.activate(t)
	case WaitingFrozen:
		t.setState(Frozen)
	}
}

// threadTimeout runs from the wake queue when a blocking call expires.
func (k *Kernel) threadTimeout(t *thread) {
	t.flags &^= flagTimerActive
	k.releaseSync(t)
	k.arch.Patch(t.ctx, 0)
	k.wakeup(t)
}

// releaseSync detaches a waiting thread from the object it waits on.
func (k *Kernel) releaseSync(t *thread) {
	switch obj := t.sync.(type) {
	case *mutex:
		k.mutexRelease(obj, t)
	case *event:
		obj.waiters.Remove(t)
	case *semaphore:
		obj.waiters.Remove(t)
	case *queue:
		obj.releaseWaiter(t)
	}
}

func (k *Kernel) destroyThread(t *thread) {
	if t == k.idle {
		k.fatal(ErrIdleCall, "THREAD")
	}
	switch t.state() {
	case Running:
		k.deactivate(t)
	case Waiting, WaitingFrozen:
		if t.timerActive() {
			t.flags &^= flagTimerActive
			k.cancelTimer(&t.wake)
		}
		k.releaseSync(t)
		t.setSync(SyncNone, nil)
	}
	t.setState(Frozen)
	for m := t.owned.Head(); m != nil; m = t.owned.Head() {
		k.mutexRelease(m, t)
	}
	if t == k.active {
		k.active = nil
	}

	k.log.Debug().
		Str("thread", t.displayName()).
		Uint64("id", uint64(t.id)).
		Log("thread destroyed")

	k.arch.ReleaseContext(t.ctx)
	if err := k.cfg.StackPool.Free(t.stack); err != nil {
		k.fatal(ErrPointerOutOfPool, "THREAD")
	}
	k.threads.release(uint32(t.id))
}

// poolOf returns the data pool used by t.
func (k *Kernel) poolOf(t *thread) *mem.Pool {
	if t != nil && t.pool != nil {
		return t.pool
	}
	return k.cfg.DataPool
}
