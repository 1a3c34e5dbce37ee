package kernel

import (
	"ember/internal/dlist"
	"ember/ktime"
)

// TimerFunc is a software timer handler. It runs on the timer service
// thread and may make any thread context call.
type TimerFunc func(param Word)

// TimerSpec describes a software timer to create.
type TimerSpec struct {
	Handler  TimerFunc
	Param    Word
	Periodic bool
}

type softTimer struct {
	id TimerID
	// link threads the fired list
	link     dlist.Link[softTimer]
	wake     timer
	handler  TimerFunc
	param    Word
	periodic bool
	period   ktime.Time
}

func (s *softTimer) DLink() *dlist.Link[softTimer] { return &s.link }

// softTimers is the service side of software timers. Expired timers are
// queued on fired from interrupt context and drained by a thread.
type softTimers struct {
	fired  dlist.List[softTimer, *softTimer]
	event  *event
	thread *thread
}

type firedTimer struct {
	handler TimerFunc
	param   Word
}

// TimerCreate creates a stopped software timer.
func (k *Kernel) TimerCreate(spec TimerSpec) TimerID {
	return TimerID(k.Syscall(callTimerCreate, &spec))
}

// TimerStart arms t to fire after timeout, and every timeout after that if
// it is periodic. Starting an armed timer restarts it.
func (k *Kernel) TimerStart(t TimerID, timeout ktime.Time) {
	k.Syscall(callTimerStart, nil, Word(t), Word(timeout.Pack()))
}

func (k *Kernel) TimerStartMs(t TimerID, ms uint32) { k.TimerStart(t, ktime.FromMs(ms)) }

func (k *Kernel) TimerStartUs(t TimerID, us uint32) { k.TimerStart(t, ktime.FromUs(us)) }

// TimerStop disarms t and drops a pending expiry.
func (k *Kernel) TimerStop(t TimerID) { k.Syscall(callTimerStop, nil, Word(t)) }

// TimerIsActive reports whether t is armed.
func (k *Kernel) TimerIsActive(t TimerID) bool {
	return k.Syscall(callTimerIsActive, nil, Word(t)) != 0
}

func (k *Kernel) TimerDestroy(t TimerID) { k.Syscall(callTimerDestroy, nil, Word(t)) }

func (k *Kernel) startSoftTimers() {
	h, e, ok := k.events.alloc()
	if !ok {
		k.fatal(ErrOutOfSystemMemory, "TIMER")
	}
	*e = event{id: EventID(h)}
	k.soft.event = e
	k.soft.thread = k.createThread(ThreadSpec{
		Name:       softTimerName,
		Priority:   k.cfg.SoftTimerPriority,
		StackWords: k.cfg.SoftTimerStackWords,
		Entry:      k.softTimerLoop,
	}, false)
	k.unfreeze(k.soft.thread)
}

func (k *Kernel) softTimerLoop(Word) {
	ev := k.soft.event.id
	for {
		k.EventWait(ev, ktime.Infinite)
		for {
			var f firedTimer
			if k.Syscall(callTimerNext, &f) == 0 {
				break
			}
			f.handler(f.param)
		}
	}
}

// softTimerFired runs from the wake queue.
func (k *Kernel) softTimerFired(s *softTimer) {
	if s.periodic && !s.period.IsZero() {
		k.armTimer(&s.wake, s.wake.at.Add(s.period))
	}
	if !k.soft.fired.Contains(s) {
		k.soft.fired.PushTail(s)
	}
	if e := k.soft.event; e != nil {
		k.eventWakeAll(e)
		e.set = true
	}
}

func (k *Kernel) timerFor(w Word) *softTimer {
	s, ok := k.timers.get(uint32(w))
	if !ok {
		k.badHandle("TIMER")
	}
	return s
}

func (k *Kernel) timerCreate(spec *TimerSpec) Word {
	h, s, ok := k.timers.alloc()
	if !ok {
		k.fatal(ErrOutOfSystemMemory, "TIMER")
	}
	*s = softTimer{
		id:       TimerID(h),
		handler:  spec.Handler,
		param:    spec.Param,
		periodic: spec.Periodic,
	}
	s.wake = timer{action: timerSoft, soft: s}
	return Word(h)
}

func (k *Kernel) timerStop(s *softTimer) {
	k.cancelTimer(&s.wake)
	if k.soft.fired.Contains(s) {
		k.soft.fired.Remove(s)
	}
}

// timerNext pops the oldest fired timer for the service thread, clearing
// the service event once none are left.
func (k *Kernel) timerNext(out *firedTimer) Word {
	s := k.soft.fired.PopHead()
	if s == nil {
		if k.soft.event != nil {
			k.soft.event.set = false
		}
		return 0
	}
	*out = firedTimer{handler: s.handler, param: s.param}
	return 1
}
