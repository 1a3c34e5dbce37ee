package kernel

import (
	"fmt"
	"testing"

	"ember/ktime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// spawn creates and starts a thread running fn, which is destroyed once fn
// returns.
func spawn(k *Kernel, name string, p Priority, fn func()) ThreadID {
	id := k.ThreadCreate(ThreadSpec{
		Name:     name,
		Priority: p,
		Entry: func(Word) {
			fn()
			k.ThreadDestroy(k.ThreadCurrent())
		},
	})
	k.ThreadUnfreeze(id)
	return id
}

func TestThreadsRunByPriority(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(func(k *Kernel) {
		for _, p := range []Priority{7, 3, 9, 3, 1} {
			name := fmt.Sprint(p)
			spawn(k, name, p, func() { s.log(name) })
		}
	}))
	require.Equal(t, []string{"1", "3", "3", "7", "9"}, s.trace)
	require.Empty(t, s.errors)
}

func TestThreadPreemptsOnUnfreeze(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(func(k *Kernel) {
		spawn(k, "low", 5, func() {
			s.log("low start")
			spawn(k, "high", 2, func() { s.log("high") })
			s.log("low end")
		})
	}))
	require.Equal(t, []string{"low start", "high", "low end"}, s.trace)
}

func TestThreadSleep(t *testing.T) {
	s := newSim(t, testConfig())
	var woke ktime.Time
	require.NoError(t, s.boot(func(k *Kernel) {
		spawn(k, "sleeper", 4, func() {
			k.SleepMs(10)
			woke = k.Uptime()
		})
	}))
	require.True(t, woke.IsZero())

	require.NoError(t, s.advanceMs(25))
	require.Equal(t, ktime.FromMs(10), woke)
}

func TestThreadSleepZeroReturnsAtOnce(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(func(k *Kernel) {
		spawn(k, "a", 4, func() {
			k.Sleep(ktime.Time{})
			s.log("a")
		})
	}))
	require.Equal(t, []string{"a"}, s.trace)
}

func TestThreadSleepersWakeInDeadlineOrder(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(func(k *Kernel) {
		for _, ms := range []uint32{30, 10, 20, 10} {
			name := fmt.Sprint(ms)
			spawn(k, name, 4, func() {
				k.SleepMs(ms)
				s.log(fmt.Sprintf("%s@%d", name, k.Uptime().ToMs()))
			})
		}
	}))
	require.NoError(t, s.advanceMs(100))
	require.Equal(t, []string{"10@10", "10@10", "20@20", "30@30"}, s.trace)
}

func TestThreadFreezeWhileWaiting(t *testing.T) {
	s := newSim(t, testConfig())
	var waiter ThreadID
	var ev EventID
	require.NoError(t, s.boot(func(k *Kernel) {
		ev = k.EventCreate()
		waiter = spawn(k, "waiter", 3, func() {
			s.log(fmt.Sprint("waited ", k.EventWait(ev, ktime.Infinite)))
		})
		spawn(k, "ctl", 5, func() {
			k.ThreadFreeze(waiter)
			k.EventSet(ev)
			s.log("set")
		})
	}))
	require.Equal(t, []string{"set"}, s.trace)
	require.Equal(t, Frozen, s.k.threadFor(Word(waiter)).state())

	require.NoError(t, s.interrupt(func() { s.k.ThreadUnfreeze(waiter) }))
	require.Equal(t, []string{"set", "waited true"}, s.trace)
}

func TestThreadFreezeRunning(t *testing.T) {
	s := newSim(t, testConfig())
	var a ThreadID
	require.NoError(t, s.boot(func(k *Kernel) {
		a = k.ThreadCreate(ThreadSpec{Name: "a", Priority: 4, Entry: func(Word) {
			s.log("a1")
			k.ThreadFreeze(k.ThreadCurrent())
			s.log("a2")
			k.ThreadDestroy(k.ThreadCurrent())
		}})
		k.ThreadUnfreeze(a)
	}))
	require.Equal(t, []string{"a1"}, s.trace)
	require.Equal(t, Frozen, s.k.threadFor(Word(a)).state())

	require.NoError(t, s.interrupt(func() { s.k.ThreadUnfreeze(a) }))
	require.Equal(t, []string{"a1", "a2"}, s.trace)
}

func TestThreadSetPriority(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(func(k *Kernel) {
		var b ThreadID
		spawn(k, "a", 4, func() {
			b = spawn(k, "b", 6, func() { s.log("b") })
			s.log("a1")
			k.ThreadSetPriority(b, 2)
			s.log("a2")
			s.log(fmt.Sprint(k.ThreadGetPriority(k.ThreadCurrent())))
		})
	}))
	require.Equal(t, []string{"a1", "b", "a2", "4"}, s.trace)
}

func TestThreadUserPriorityClampedAboveIdle(t *testing.T) {
	s := newSim(t, testConfig())
	var id ThreadID
	require.NoError(t, s.boot(func(k *Kernel) {
		id = k.ThreadCreate(ThreadSpec{Name: "x", Priority: IdlePriority, Entry: func(Word) {}})
	}))
	require.Equal(t, IdlePriority-1, s.k.threadFor(Word(id)).prio)
}

func TestThreadNames(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(func(k *Kernel) {
		spawn(k, "", 4, func() {
			s.log(k.ThreadName(k.ThreadCurrent()))
		})
	}))
	require.Equal(t, []string{unnamedThreadName}, s.trace)
	require.Equal(t, idleThreadName, s.k.idle.displayName())
}

func TestThreadEntryReturnIsError(t *testing.T) {
	s := newSim(t, testConfig())
	var id ThreadID
	require.NoError(t, s.boot(func(k *Kernel) {
		id = k.ThreadCreate(ThreadSpec{Name: "runaway", Priority: 4, Entry: func(Word) {}})
		k.ThreadUnfreeze(id)
	}))
	require.Len(t, s.errors, 1)
	assert.Equal(t, ErrThreadOutOfContext, s.errors[0].Code)
	assert.Equal(t, "runaway", s.errors[0].Thread)
	assert.Equal(t, id, s.errors[0].ID)
	_, ok := s.k.threads.get(uint32(id))
	assert.False(t, ok)
}

func TestThreadDestroyWhileSleeping(t *testing.T) {
	s := newSim(t, testConfig())
	var sleeper ThreadID
	require.NoError(t, s.boot(func(k *Kernel) {
		sleeper = spawn(k, "sleeper", 4, func() {
			k.SleepMs(10)
			s.log("woke")
		})
		spawn(k, "killer", 6, func() { k.ThreadDestroy(sleeper) })
	}))
	require.Zero(t, s.k.wq.len())
	require.NoError(t, s.advanceMs(50))
	require.Empty(t, s.trace)
}

func TestThreadStackFreedOnDestroy(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(nil))
	before := s.k.cfg.StackPool.Stat()

	require.NoError(t, s.interrupt(func() {
		id := s.k.ThreadCreate(ThreadSpec{Name: "t", Priority: 3, StackWords: 100, Entry: func(Word) {}})
		s.log(fmt.Sprint(s.k.StackStat(id).Words))
		s.k.ThreadDestroy(id)
	}))
	require.Equal(t, []string{"100"}, s.trace)
	require.Equal(t, before, s.k.cfg.StackPool.Stat())
}

func TestDestroyIdleIsFatal(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(nil))
	idle := s.k.idle.id

	err := s.interrupt(func() {
		s.k.Syscall(callThreadDestroy, nil, Word(idle))
	})
	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, ErrIdleCall, fe.Code)
	require.True(t, s.k.InFatalMode())
	require.Len(t, s.fatals, 1)
}

func TestStartTwiceIsFatal(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(nil))
	s.mode = Supervisor
	require.PanicsWithError(t, "FATAL: KERNEL: Invalid state", func() { s.k.Start() })
}
