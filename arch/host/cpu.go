// Package host runs the kernel on goroutines.
//
// Every thread context is a goroutine, but only the goroutine holding the
// core runs; switching hands the core to the next context and parks the
// current one. Interrupts are posted from other goroutines and delivered
// on whichever goroutine holds the core, at trap entry and exit and while
// the idle thread waits. A thread that never makes a system call keeps
// interrupts pending until it does.
package host

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"ember/hal"
	"ember/kernel"
	"ember/ktime"
)

// ErrStopped is returned by Run once Stop has been called.
var ErrStopped = errors.New("host: cpu stopped")

const defaultIRQDepth = 64

// CPU is a single core port. It implements kernel.Arch and kernel.Clock.
type CPU struct {
	k     *kernel.Kernel
	timer hal.Timer

	// owned by the goroutine holding the core
	mode    kernel.Privilege
	masked  bool
	pending bool
	cur     *execContext

	irq chan func()

	stopOnce sync.Once
	stop     chan struct{}
	halted   chan error
}

type execContext struct {
	id     kernel.ThreadID
	entry  func(kernel.Word)
	arg    kernel.Word
	resume chan struct{}
	kill   chan struct{}

	started bool
	dead    bool
	ret     kernel.Word
}

// New returns a CPU using timer for uptime and the wake queue alarm.
func New(timer hal.Timer) *CPU {
	return &CPU{
		timer:  timer,
		mode:   kernel.Supervisor,
		irq:    make(chan func(), defaultIRQDepth),
		stop:   make(chan struct{}),
		halted: make(chan error, 1),
	}
}

// Attach binds the kernel the CPU dispatches to. It must be called before
// Run.
func (c *CPU) Attach(k *kernel.Kernel) { c.k = k }

// Run executes boot in supervisor mode on the calling goroutine, then
// hands the core to the first thread and waits. It returns the fatal
// error that halted the kernel, ErrStopped, or the context's error.
func (c *CPU) Run(ctx context.Context, boot func() error) (err error) {
	if c.k == nil {
		return errors.New("host: no kernel attached")
	}
	booted := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = asFatal(r)
			}
		}()
		c.mode = kernel.Supervisor
		if err := boot(); err != nil {
			return fmt.Errorf("host: boot: %w", err)
		}
		c.resolve()
		return nil
	}()
	if booted != nil {
		c.Stop()
		return booted
	}

	select {
	case err = <-c.halted:
	case <-ctx.Done():
		err = ctx.Err()
	case <-c.stop:
		err = ErrStopped
	}
	c.Stop()
	return err
}

// Stop halts every context at its next trap or interrupt wait.
func (c *CPU) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		c.timer.Stop()
	})
}

// Interrupt posts fn to run in interrupt context. It may be called from
// any goroutine.
func (c *CPU) Interrupt(fn func()) {
	select {
	case c.irq <- fn:
	case <-c.stop:
	}
}

func (c *CPU) Privilege() kernel.Privilege { return c.mode }

func (c *CPU) Trap(call kernel.Call) kernel.Word {
	c.checkStop()
	self := c.cur
	prev := c.mode
	c.mode = kernel.Supervisor
	c.deliver()
	c.resolve()
	c.mode = kernel.Supervisor

	ret := c.k.Dispatch(call)
	if self != nil {
		self.ret = ret
	}
	c.deliver()
	c.resolve()
	c.mode = prev
	if self == nil {
		return ret
	}
	return self.ret
}

func (c *CPU) DisableInterrupts() kernel.IRQState {
	var s kernel.IRQState
	if c.masked {
		s = 1
	}
	c.masked = true
	return s
}

func (c *CPU) RestoreInterrupts(s kernel.IRQState) { c.masked = s != 0 }

func (c *CPU) NewContext(id kernel.ThreadID, entry func(kernel.Word), arg kernel.Word, _ int) kernel.ExecContext {
	return &execContext{
		id:     id,
		entry:  entry,
		arg:    arg,
		resume: make(chan struct{}, 1),
		kill:   make(chan struct{}),
	}
}

func (c *CPU) ReleaseContext(ctx kernel.ExecContext) {
	x := ctx.(*execContext)
	if x.dead {
		return
	}
	x.dead = true
	if x.started && x != c.cur {
		close(x.kill)
	}
}

func (c *CPU) PendSwitch() { c.pending = true }

func (c *CPU) Patch(ctx kernel.ExecContext, v kernel.Word) {
	ctx.(*execContext).ret = v
}

// WaitForInterrupt blocks the core until an interrupt is posted, runs it
// and resolves any switch it requested.
func (c *CPU) WaitForInterrupt() {
	prev := c.mode
	select {
	case fn := <-c.irq:
		c.isr(fn)
	case <-c.stop:
		runtime.Goexit()
	}
	c.deliver()
	c.resolve()
	c.mode = prev
}

func (c *CPU) Uptime() ktime.Time { return ktime.FromDuration(c.timer.Now()) }

func (c *CPU) SetAlarm(at ktime.Time) {
	if at.IsZero() {
		c.timer.Stop()
		return
	}
	c.timer.SetAlarm(at.Duration(), c.alarm)
}

func (c *CPU) alarm() { c.Interrupt(c.k.TimerInterrupt) }

// deliver runs every pending interrupt unless interrupts are masked.
func (c *CPU) deliver() {
	for !c.masked {
		select {
		case fn := <-c.irq:
			c.isr(fn)
		default:
			return
		}
	}
}

func (c *CPU) isr(fn func()) {
	prev := c.mode
	c.mode = kernel.IRQ
	fn()
	c.mode = prev
}

// resolve performs a pending switch, handing the core to the next context
// and parking the caller until it is switched back in.
func (c *CPU) resolve() {
	if !c.pending {
		return
	}
	c.pending = false
	_, to, ok := c.k.SwitchContext()
	if !ok {
		return
	}
	self := c.cur
	dead := self != nil && self.dead
	next := to.(*execContext)
	c.cur = next
	if !next.started {
		next.started = true
		go c.run(next)
	} else {
		next.resume <- struct{}{}
	}
	if self == nil {
		return
	}
	// A later release reaches self through kill.
	if dead {
		runtime.Goexit()
	}
	select {
	case <-self.resume:
	case <-self.kill:
		runtime.Goexit()
	case <-c.stop:
		runtime.Goexit()
	}
}

func (c *CPU) run(x *execContext) {
	defer func() {
		if r := recover(); r != nil {
			c.fail(asFatal(r))
		}
	}()
	c.mode = kernel.User
	x.entry(x.arg)
}

func (c *CPU) checkStop() {
	select {
	case <-c.stop:
		runtime.Goexit()
	default:
	}
}

func (c *CPU) fail(err error) {
	select {
	case c.halted <- err:
	default:
	}
	c.Stop()
	runtime.Goexit()
}

// asFatal turns a recovered kernel halt back into an error. Anything else
// is not ours to recover.
func asFatal(r any) error {
	if err, ok := r.(*kernel.FatalError); ok {
		return err
	}
	panic(r)
}
