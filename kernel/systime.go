package kernel

import "ember/ktime"

// Uptime returns the time since the clock started.
func (k *Kernel) Uptime() ktime.Time {
	return ktime.Unpack(uint64(k.Syscall(callTimeUptime, nil)))
}

// SysTime returns the system time: uptime plus the offset last set by
// SetSysTime.
func (k *Kernel) SysTime() ktime.Time {
	return ktime.Unpack(uint64(k.Syscall(callTimeGet, nil)))
}

// SetSysTime sets the system time. Times earlier than the uptime are
// clamped to it.
func (k *Kernel) SetSysTime(t ktime.Time) {
	k.Syscall(callTimeSet, nil, Word(t.Pack()))
}

func (k *Kernel) timeHandler(c Call) Word {
	k.checkContext(System|Supervisor|IRQ, "TIME")
	s := k.arch.DisableInterrupts()
	defer k.arch.RestoreInterrupts(s)

	switch c.Num {
	case callTimeUptime:
		return Word(k.clock.Uptime().Pack())
	case callTimeGet:
		return Word(k.clock.Uptime().Add(k.timeOffset).Pack())
	case callTimeSet:
		k.timeOffset = ktime.Unpack(uint64(c.Args[0])).Sub(k.clock.Uptime())
	case callTimerCreate:
		spec, ok := c.Ref.(*TimerSpec)
		if !ok || spec.Handler == nil {
			k.raise(ErrInvalidSysCall)
			return 0
		}
		return k.timerCreate(spec)
	case callTimerStart:
		st := k.timerFor(c.Args[0])
		k.timerStop(st)
		st.period = ktime.Unpack(uint64(c.Args[1]))
		k.armTimer(&st.wake, k.clock.Uptime().Add(st.period))
	case callTimerStop:
		k.timerStop(k.timerFor(c.Args[0]))
	case callTimerIsActive:
		if k.timerFor(c.Args[0]).wake.armed {
			return 1
		}
	case callTimerDestroy:
		st := k.timerFor(c.Args[0])
		k.timerStop(st)
		k.timers.release(uint32(st.id))
	case callTimerNext:
		out, ok := c.Ref.(*firedTimer)
		if !ok {
			k.raise(ErrInvalidSysCall)
			return 0
		}
		return k.timerNext(out)
	default:
		k.raise(ErrInvalidSysCall)
	}
	return 0
}
