package kernel

import (
	"fmt"
	"testing"

	"ember/ktime"

	"github.com/stretchr/testify/require"
)

func TestEventPulseWakesCurrentWaiters(t *testing.T) {
	s := newSim(t, testConfig())
	var ev EventID
	require.NoError(t, s.boot(func(k *Kernel) {
		ev = k.EventCreate()
		for i := 0; i < 3; i++ {
			name := fmt.Sprint("w", i)
			spawn(k, name, 4, func() {
				s.log(fmt.Sprint(name, " ", k.EventWait(ev, ktime.Infinite)))
			})
		}
	}))
	require.Empty(t, s.trace)

	require.NoError(t, s.interrupt(func() { s.k.EventPulse(ev) }))
	require.Equal(t, []string{"w0 true", "w1 true", "w2 true"}, s.trace)
	require.False(t, s.k.eventFor(Word(ev)).set)

	// a pulse with nobody waiting is lost
	s.trace = nil
	require.NoError(t, s.interrupt(func() {
		s.k.EventPulse(ev)
		s.k.ThreadUnfreeze(s.k.ThreadCreate(ThreadSpec{Name: "late", Priority: 4, Entry: func(Word) {
			s.log(fmt.Sprint("late ", s.k.EventWaitMs(ev, 5)))
			s.k.ThreadDestroy(s.k.ThreadCurrent())
		}}))
	}))
	require.Empty(t, s.trace)
	require.NoError(t, s.advanceMs(10))
	require.Equal(t, []string{"late false"}, s.trace)
}

func TestEventSetLatches(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(func(k *Kernel) {
		ev := k.EventCreate()
		spawn(k, "a", 4, func() {
			s.log(fmt.Sprint("set ", k.EventIsSet(ev)))
			k.EventSet(ev)
			s.log(fmt.Sprint("set ", k.EventIsSet(ev)))
			s.log(fmt.Sprint("wait ", k.EventWait(ev, ktime.Infinite)))
			k.EventClear(ev)
			s.log(fmt.Sprint("set ", k.EventIsSet(ev)))
			s.log(fmt.Sprint("wait ", k.EventWaitUs(ev, 500)))
		})
	}))
	require.NoError(t, s.advanceMs(1))
	require.Equal(t, []string{"set false", "set true", "wait true", "set false", "wait false"}, s.trace)
}

func TestEventDestroyFailsWaiters(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(func(k *Kernel) {
		ev := k.EventCreate()
		spawn(k, "w", 3, func() { s.log(fmt.Sprint("w ", k.EventWaitMs(ev, 100))) })
		spawn(k, "d", 5, func() {
			k.EventDestroy(ev)
			s.log("destroyed")
		})
	}))
	require.Equal(t, []string{"w false", "destroyed"}, s.trace)
	require.Zero(t, s.k.wq.len())
	// only the timer service event is left
	require.Equal(t, 1, s.k.events.used)
}
