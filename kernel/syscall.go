package kernel

// SysGroup selects the handler a call is dispatched to.
type SysGroup uint8

const (
	SysThread SysGroup = iota
	SysMutex
	SysEvent
	SysSemaphore
	SysQueue
	SysTime
	SysMem
	SysDebug
)

var groupNames = [...]string{"THREAD", "MUTEX", "EVENT", "SEMAPHORE", "QUEUE", "TIME", "MEM", "DEBUG"}

func (g SysGroup) String() string {
	if int(g) < len(groupNames) {
		return groupNames[g]
	}
	return "UNKNOWN"
}

// CallNum encodes the minimum privilege tier (bits 12-15), the group
// (bits 8-11) and the operation (bits 0-7) of a system call.
type CallNum uint16

// Tier is the minimum privilege the call is dispatched at.
func (n CallNum) Tier() Privilege { return Privilege(n >> 12) }

func (n CallNum) Group() SysGroup { return SysGroup(n >> 8 & 0xf) }

func (n CallNum) Op() uint8 { return uint8(n) }

// Call is a system call request: the call number, three parameter words
// and an optional reference parameter for calls that move Go values.
type Call struct {
	Num  CallNum
	Args [3]Word
	Ref  any
}

const (
	callThreadCreate      = CallNum(Supervisor)<<12 | CallNum(SysThread)<<8 | iota
	callThreadUnfreeze
	callThreadFreeze
	callThreadDestroy
	callThreadSetPriority
	callThreadGetPriority
	callThreadGetCurrent
	callThreadName
	callThreadSleep
	callThreadExit
	callThreadStats
)

const (
	callMutexCreate = CallNum(Supervisor)<<12 | CallNum(SysMutex)<<8 | iota
	callMutexLock
	callMutexUnlock
	callMutexDestroy
)

const (
	callEventCreate = CallNum(Supervisor)<<12 | CallNum(SysEvent)<<8 | iota
	callEventPulse
	callEventSet
	callEventClear
	callEventIsSet
	callEventWait
	callEventDestroy
)

const (
	callSemaphoreCreate = CallNum(Supervisor)<<12 | CallNum(SysSemaphore)<<8 | iota
	callSemaphoreSignal
	callSemaphoreWait
	callSemaphoreDestroy
)

const (
	callQueueCreate = CallNum(Supervisor)<<12 | CallNum(SysQueue)<<8 | iota
	callQueueAllocate
	callQueuePush
	callQueuePull
	callQueueRelease
	callQueueIsEmpty
	callQueueIsFull
	callQueueDestroy
	callQueueBytes
)

const (
	callTimeUptime = CallNum(System)<<12 | CallNum(SysTime)<<8 | iota
	callTimeGet
	callTimeSet
	callTimerCreate
	callTimerStart
	callTimerStop
	callTimerDestroy
	callTimerIsActive
	callTimerNext
)

const (
	callMemAlloc = CallNum(Supervisor)<<12 | CallNum(SysMem)<<8 | iota
	callMemFree
	callMemStat
)

const (
	callDebugWrite     = CallNum(User)<<12 | CallNum(SysDebug)<<8
	callDebugStackStat = CallNum(Supervisor)<<12 | CallNum(SysDebug)<<8 | 1
	callDebugDevice    = CallNum(Supervisor)<<12 | CallNum(SysDebug)<<8 | 2
)

// Syscall issues a system call. If the caller's privilege is below the
// call's tier it traps through the port, otherwise the handler runs in
// line.
func (k *Kernel) Syscall(num CallNum, ref any, args ...Word) Word {
	c := Call{Num: num, Ref: ref}
	copy(c.Args[:], args)
	if k.arch.Privilege() < num.Tier() {
		return k.arch.Trap(c)
	}
	return k.Dispatch(c)
}

// Dispatch runs the handler for c. The port calls it from its trap
// handler at raised privilege.
func (k *Kernel) Dispatch(c Call) Word {
	switch c.Num.Group() {
	case SysThread:
		return k.threadHandler(c)
	case SysMutex:
		return k.mutexHandler(c)
	case SysEvent:
		return k.eventHandler(c)
	case SysSemaphore:
		return k.semaphoreHandler(c)
	case SysQueue:
		return k.queueHandler(c)
	case SysTime:
		return k.timeHandler(c)
	case SysMem:
		return k.memHandler(c)
	case SysDebug:
		return k.debugHandler(c)
	}
	k.raise(ErrInvalidSysCall)
	return 0
}
