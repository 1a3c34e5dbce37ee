package kernel

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSoftTimerPeriodic(t *testing.T) {
	s := newSim(t, testConfig())
	var tm TimerID
	require.NoError(t, s.boot(func(k *Kernel) {
		tm = k.TimerCreate(TimerSpec{
			Periodic: true,
			Param:    7,
			Handler: func(p Word) {
				s.log(fmt.Sprintf("%d@%d", p, k.Uptime().ToMs()))
			},
		})
		k.TimerStartMs(tm, 10)
	}))
	require.NoError(t, s.advanceMs(35))
	require.Equal(t, []string{"7@10", "7@20", "7@30"}, s.trace)

	var active bool
	require.NoError(t, s.interrupt(func() { active = s.k.TimerIsActive(tm) }))
	require.True(t, active)

	require.NoError(t, s.interrupt(func() {
		s.k.TimerStop(tm)
		active = s.k.TimerIsActive(tm)
	}))
	require.False(t, active)
	require.NoError(t, s.advanceMs(50))
	require.Len(t, s.trace, 3)
}

func TestSoftTimerOneShot(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(func(k *Kernel) {
		tm := k.TimerCreate(TimerSpec{Handler: func(Word) {
			s.log(fmt.Sprint(k.Uptime().ToMs()))
		}})
		k.TimerStartMs(tm, 5)
	}))
	require.NoError(t, s.advanceMs(40))
	require.Equal(t, []string{"5"}, s.trace)
}

func TestSoftTimerRestart(t *testing.T) {
	s := newSim(t, testConfig())
	var tm TimerID
	require.NoError(t, s.boot(func(k *Kernel) {
		tm = k.TimerCreate(TimerSpec{Handler: func(Word) {
			s.log(fmt.Sprint(k.Uptime().ToMs()))
		}})
		k.TimerStartMs(tm, 10)
	}))
	require.NoError(t, s.advanceMs(6))
	require.NoError(t, s.interrupt(func() { s.k.TimerStartMs(tm, 10) }))
	require.NoError(t, s.advanceMs(20))
	require.Equal(t, []string{"16"}, s.trace)
}

func TestSoftTimerHandlersRunInOrder(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(func(k *Kernel) {
		for _, ms := range []uint32{3, 1, 2} {
			tm := k.TimerCreate(TimerSpec{Param: Word(ms), Handler: func(p Word) { s.log(fmt.Sprint(p)) }})
			k.TimerStartMs(tm, ms)
		}
	}))
	require.NoError(t, s.advanceMs(5))
	require.Equal(t, []string{"1", "2", "3"}, s.trace)
}

func TestSoftTimerDestroy(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(func(k *Kernel) {
		tm := k.TimerCreate(TimerSpec{Handler: func(Word) { s.log("fired") }})
		k.TimerStartMs(tm, 5)
		k.TimerDestroy(tm)
	}))
	require.NoError(t, s.advanceMs(10))
	require.Empty(t, s.trace)
	require.Zero(t, s.k.timers.used)
}

func TestSoftTimersDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.MaxTimers = -1
	s := newSim(t, cfg)
	require.NoError(t, s.boot(nil))
	require.Nil(t, s.k.soft.thread)
	var names []string
	s.k.threads.each(func(t *thread) { names = append(names, t.displayName()) })
	require.Equal(t, []string{idleThreadName}, names)
}

func TestSoftTimerServiceWithoutEventSlotIsFatal(t *testing.T) {
	cfg := testConfig()
	cfg.MaxEvents = 1
	s := newSim(t, cfg)
	s.k.EventCreate()
	require.PanicsWithError(t, "FATAL: TIMER: Out of system memory", func() { s.k.Start() })
	require.Len(t, s.fatals, 1)
}
