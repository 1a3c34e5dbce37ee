// Package kernel is a preemptive, priority based real-time kernel core:
// threads, mutexes with priority inheritance, events, semaphores, bounded
// queues, a timer wake queue and the system call boundary between them.
//
// All kernel state is owned by one Kernel and mutated only inside
// privileged handlers with interrupts masked. The architecture port
// (Arch) supplies privilege, interrupt masking and context switching.
package kernel

import (
	"ember/ktime"

	"github.com/joeycumines/go-catrate"
	"github.com/joeycumines/logiface"
)

// Priority orders threads. Zero is the most urgent.
type Priority uint32

// IdlePriority is reserved for the idle thread.
const IdlePriority = ^Priority(0)

const (
	idleThreadName    = "IDLE THREAD"
	unnamedThreadName = "UNNAMED_THREAD"
	softTimerName     = "SW TIMER"
)

// Kernel is the scheduler and synchronization core.
type Kernel struct {
	cfg     Config
	arch    Arch
	clock   Clock
	log     *logiface.Logger[logiface.Event]
	limiter *catrate.Limiter
	halt    fatalState

	threads *slab[thread]
	mutexes *slab[mutex]
	events  *slab[event]
	sems    *slab[semaphore]
	queues  *slab[queue]
	timers  *slab[softTimer]

	ready readyList
	wq    wakeQueue

	// current heads the active structure, active is the thread whose
	// context is loaded, next is the pending switch target.
	current *thread
	active  *thread
	next    *thread
	idle    *thread

	soft softTimers

	// system time is kept as an offset from uptime
	timeOffset ktime.Time

	started bool
}

// New builds a kernel on the given port. It allocates every table the
// kernel will ever use; nothing is allocated afterwards.
func New(arch Arch, clock Clock, cfg Config) *Kernel {
	cfg.normalize()
	k := &Kernel{
		cfg:     cfg,
		arch:    arch,
		clock:   clock,
		log:     cfg.Logger,
		threads: newSlab[thread]("THREAD", magicThread, cfg.MaxThreads),
		mutexes: newSlab[mutex]("MUTEX", magicMutex, cfg.MaxMutexes),
		events:  newSlab[event]("EVENT", magicEvent, cfg.MaxEvents),
		sems:    newSlab[semaphore]("SEMAPHORE", magicSemaphore, cfg.MaxSemaphores),
		queues:  newSlab[queue]("QUEUE", magicQueue, cfg.MaxQueues),
		timers:  newSlab[softTimer]("TIMER", magicTimer, cfg.MaxTimers),
	}
	if len(cfg.ErrorRates) != 0 {
		k.limiter = catrate.NewLimiter(cfg.ErrorRates)
	}
	k.ready.init(cfg.ThreadCache)
	k.wq.init(cfg.TimerCache)
	return k
}

// Config returns the normalized configuration.
func (k *Kernel) Config() Config { return k.cfg }

// Start creates the idle thread and, if software timers are configured,
// the timer service thread, then requests the first switch. It must be
// called once from privileged boot code; threads created before Start run
// once the port resolves that switch.
func (k *Kernel) Start() {
	if k.started {
		k.fatal(ErrInvalidState, "KERNEL")
	}
	k.checkContext(Supervisor|IRQ, "KERNEL")
	s := k.arch.DisableInterrupts()
	defer k.arch.RestoreInterrupts(s)

	k.idle = k.createThread(ThreadSpec{
		Name:       idleThreadName,
		Priority:   IdlePriority,
		StackWords: k.cfg.IdleStackWords,
		Entry:      k.idleLoop,
	}, true)
	k.unfreeze(k.idle)

	if k.cfg.MaxTimers > 0 && k.cfg.MaxEvents > 0 {
		k.startSoftTimers()
	}

	k.started = true
	k.log.Info().
		Int("thread_cache", k.cfg.ThreadCache).
		Int("timer_cache", k.cfg.TimerCache).
		Int("max_threads", k.cfg.MaxThreads).
		Int("stack_pool", k.cfg.StackPool.Size()).
		Int("data_pool", k.cfg.DataPool.Size()).
		Log("kernel started")
	k.pendSwitch()
}

func (k *Kernel) idleLoop(Word) {
	for {
		k.arch.WaitForInterrupt()
	}
}

// SwitchContext resolves a pending switch. The port calls it at
// privileged call and interrupt exit; when ok is false nothing changes.
// A nil from means the outgoing thread was destroyed and its context must
// not be saved.
func (k *Kernel) SwitchContext() (from, to ExecContext, ok bool) {
	next := k.next
	k.next = nil
	if next == nil || next == k.active {
		return nil, nil, false
	}
	var now ktime.Time
	if k.cfg.Profiling {
		now = k.clock.Uptime()
	}
	if prev := k.active; prev != nil {
		from = prev.ctx
		if k.cfg.Profiling {
			prev.runtime = prev.runtime.Add(now.Sub(prev.since))
		}
	}
	next.switches++
	next.since = now
	k.active = next
	return from, next.ctx, true
}

// Running returns the thread whose context is loaded, or zero before the
// first switch.
func (k *Kernel) Running() ThreadID {
	if k.active == nil {
		return 0
	}
	return k.active.id
}

// pendSwitch records the current thread as the switch target, requesting
// the switch from the port if none is pending yet.
func (k *Kernel) pendSwitch() {
	if k.next == nil {
		k.arch.PendSwitch()
	}
	k.next = k.current
}

func (k *Kernel) checkContext(allowed Privilege, where string) {
	if k.arch.Privilege()&allowed == 0 {
		k.fatal(ErrWrongContext, where)
	}
}

// checkBlocking rejects calls that may suspend the caller from interrupt
// context, where there is no thread to suspend.
func (k *Kernel) checkBlocking(where string) {
	if k.arch.Privilege() == IRQ {
		k.fatal(ErrWrongContext, where)
	}
}
