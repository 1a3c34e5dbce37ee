package kernel

import "ember/ktime"

// Privilege is the CPU mode a caller executes in. Higher values are more
// privileged; IRQ is interrupt context.
type Privilege uint8

const (
	User Privilege = 1 << iota
	System
	Supervisor
	IRQ
)

func (p Privilege) String() string {
	switch p {
	case User:
		return "user"
	case System:
		return "system"
	case Supervisor:
		return "supervisor"
	case IRQ:
		return "irq"
	default:
		return "unknown"
	}
}

// Word is a system call parameter or result.
type Word uint64

// ExecContext is an opaque saved execution context owned by the
// architecture port.
type ExecContext any

// IRQState is the interrupt mask state returned by DisableInterrupts.
type IRQState uint32

// Arch is the architecture port the kernel runs on.
//
// Trap must raise privilege, call Kernel.Dispatch and return its result,
// or the value patched into the caller's context while it was blocked.
// Before dispatching and after it, the port resolves a pending switch by
// calling Kernel.SwitchContext. Interrupt handlers run with Privilege
// reporting IRQ, and a pending switch is resolved on their exit.
type Arch interface {
	Privilege() Privilege
	Trap(c Call) Word

	DisableInterrupts() IRQState
	RestoreInterrupts(s IRQState)

	// NewContext prepares a context that starts in entry(arg) the first
	// time it is switched to.
	NewContext(id ThreadID, entry func(Word), arg Word, stackWords int) ExecContext
	// ReleaseContext frees a context that will never run again.
	ReleaseContext(ctx ExecContext)
	// PendSwitch requests a deferred switch. Idempotent.
	PendSwitch()
	// Patch overwrites the result the blocked call in ctx returns.
	Patch(ctx ExecContext, v Word)
	// WaitForInterrupt is run by the idle thread.
	WaitForInterrupt()
}

// Clock is the free-running uptime counter plus the one-shot alarm that
// drives the wake queue. The port calls Kernel.TimerInterrupt in interrupt
// context once the alarm time has been reached. An alarm already in the
// past fires as soon as possible. A zero alarm disarms it.
type Clock interface {
	Uptime() ktime.Time
	SetAlarm(at ktime.Time)
}
