package kernel

import (
	"fmt"
	"testing"

	"ember/ktime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCallNumEncoding(t *testing.T) {
	assert.Equal(t, Supervisor, callMutexLock.Tier())
	assert.Equal(t, SysMutex, callMutexLock.Group())
	assert.Equal(t, uint8(1), callMutexLock.Op())

	assert.Equal(t, System, callTimeGet.Tier())
	assert.Equal(t, SysTime, callTimeGet.Group())
	assert.Equal(t, User, callDebugWrite.Tier())
	assert.Equal(t, Supervisor, callDebugDevice.Tier())
	assert.Equal(t, "SEMAPHORE", SysSemaphore.String())
}

// countingArch records traps and forwards everything else to sim.
type countingArch struct {
	*sim
	traps int
}

func (c *countingArch) Trap(call Call) Word {
	c.traps++
	return c.sim.Trap(call)
}

func TestSyscallTrapsOnlyBelowTier(t *testing.T) {
	s := newSim(t, testConfig())
	ca := &countingArch{sim: s}
	s.k.arch = ca

	require.NoError(t, s.boot(func(k *Kernel) {
		// supervisor boot code dispatches in line
		k.EventCreate()
		require.Zero(t, ca.traps)

		spawn(k, "user", 4, func() {
			before := ca.traps
			k.DebugWrite("hello")
			s.log("debug traps " + fmt.Sprint(ca.traps-before))
			k.Uptime()
			s.log("time traps " + fmt.Sprint(ca.traps-before))
		})
	}))
	require.Equal(t, []string{"debug traps 0", "time traps 1"}, s.trace)
}

func TestUnknownCallTerminatesCaller(t *testing.T) {
	for name, num := range map[string]CallNum{
		"unknown group": CallNum(Supervisor)<<12 | 0xf<<8,
		"unknown op":    CallNum(Supervisor)<<12 | CallNum(SysEvent)<<8 | 0x7f,
		"unknown time":  CallNum(System)<<12 | CallNum(SysTime)<<8 | 0x7f,
	} {
		t.Run(name, func(t *testing.T) {
			s := newSim(t, testConfig())
			require.NoError(t, s.boot(func(k *Kernel) {
				spawn(k, "bad", 4, func() {
					k.Syscall(num, nil)
					s.log("unreachable")
				})
			}))
			require.Empty(t, s.trace)
			require.Len(t, s.errors, 1)
			require.Equal(t, ErrInvalidSysCall, s.errors[0].Code)
		})
	}
}

func TestBlockingFromInterruptIsFatal(t *testing.T) {
	s := newSim(t, testConfig())
	var sem SemaphoreID
	require.NoError(t, s.boot(func(k *Kernel) { sem = k.SemaphoreCreate(0) }))

	err := s.interrupt(func() { s.k.SemaphoreWaitMs(sem, 10) })
	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, ErrWrongContext, fe.Code)
	require.Equal(t, "THREAD", fe.Where)
}

func TestInterruptFastPathsDoNotBlock(t *testing.T) {
	s := newSim(t, testConfig())
	var (
		sem SemaphoreID
		ev  EventID
		q   QueueID
	)
	require.NoError(t, s.boot(func(k *Kernel) {
		sem = k.SemaphoreCreate(1)
		ev = k.EventCreate()
		k.EventSet(ev)
		q = k.QueueCreate(4, 2, 0)
		spawn(k, "consumer", 4, func() {
			buf := k.QueuePull(q, ktime.Infinite)
			s.log(fmt.Sprintf("pulled %q", k.QueueBytes(q, buf)))
			k.QueueReleaseBuffer(q, buf)
		})
	}))
	require.Empty(t, s.trace)

	require.NoError(t, s.interrupt(func() {
		s.log(fmt.Sprint("sem ", s.k.SemaphoreWaitMs(sem, 10)))
		s.log(fmt.Sprint("event ", s.k.EventWaitMs(ev, 10)))
		buf := s.k.QueueAllocateBufferMs(q, 10)
		s.log(fmt.Sprint("buffer ", buf != 0))
		copy(s.k.QueueBytes(q, buf), "irq!")
		s.k.QueuePush(q, buf)
	}))
	require.Equal(t, []string{"sem true", "event true", "buffer true", `pulled "irq!"`}, s.trace)
	require.Empty(t, s.errors)
	require.Empty(t, s.fatals)
}

func TestNonFatalErrorInInterruptIsFatal(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(nil))

	err := s.interrupt(func() { s.k.Syscall(CallNum(Supervisor)<<12|CallNum(SysThread)<<8|0x7f, nil) })
	var fe *FatalError
	require.ErrorAs(t, err, &fe)
	require.Equal(t, ErrInvalidSysCall, fe.Code)
	require.Equal(t, "IRQ", fe.Where)
}
