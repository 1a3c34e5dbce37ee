package kernel

import (
	"bytes"
	"errors"
	"fmt"
	"testing"
	"time"

	"ember/ktime"
	"ember/mem"

	"github.com/google/pprof/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lines []string

func (l *lines) WriteLineString(s string) { *l = append(*l, s) }

func TestSysTime(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(nil))
	require.NoError(t, s.advanceMs(1500))

	var got ktime.Time
	require.NoError(t, s.interrupt(func() {
		s.k.SetSysTime(ktime.Seconds(1000))
		got = s.k.SysTime()
	}))
	require.Equal(t, ktime.Seconds(1000), got)

	require.NoError(t, s.advanceMs(500))
	require.NoError(t, s.interrupt(func() { got = s.k.SysTime() }))
	require.Equal(t, ktime.FromMs(1000500), got)
}

func TestMemCalls(t *testing.T) {
	s := newSim(t, testConfig())
	pool := mem.New("private", 1024, 16)
	require.NoError(t, s.boot(func(k *Kernel) {
		id := k.ThreadCreate(ThreadSpec{Name: "m", Priority: 4, Pool: pool, Entry: func(Word) {
			b, ok := k.Alloc(100)
			s.log(fmt.Sprint(ok, " ", len(b.Bytes())))
			st := k.MemStat()
			s.log(fmt.Sprint(st.UsedBlocks, " ", st.TotalUsed))
			_, ok = k.Alloc(4096)
			s.log(fmt.Sprint(ok))
			k.Free(b)
			s.log(fmt.Sprint(k.MemStat().UsedBlocks))
			k.Free(b)
			s.log("unreachable")
		}})
		k.ThreadUnfreeze(id)
	}))
	require.Equal(t, []string{"true 100", "1 100", "false", "0"}, s.trace)
	require.Len(t, s.errors, 1)
	require.Equal(t, ErrPointerOutOfPool, s.errors[0].Code)
	require.Equal(t, mem.Stat{FreeBlocks: 1, TotalFree: 1024, LargestFree: 1024}, pool.Stat())
}

func TestDebugWrite(t *testing.T) {
	cfg := testConfig()
	var out lines
	cfg.Console = &out
	s := newSim(t, cfg)
	require.NoError(t, s.boot(func(k *Kernel) {
		spawn(k, "a", 4, func() { k.DebugWrite("hello from a") })
	}))
	require.Equal(t, lines{"hello from a"}, out)
}

func TestDeviceError(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(func(k *Kernel) {
		spawn(k, "driver", 4, func() {
			k.DeviceError(DevUART, 2, ErrDevNotPresent)
			s.log("unreachable")
		})
	}))
	require.Empty(t, s.trace)
	require.Len(t, s.errors, 1)
	err := s.errors[0]
	assert.Equal(t, "driver: UART2: Device not present", err.Error())
	assert.True(t, errors.Is(err, ErrDevNotPresent))
}

func TestThreadStatsAndProfile(t *testing.T) {
	s := newSim(t, testConfig())
	var a ThreadID
	require.NoError(t, s.boot(func(k *Kernel) {
		a = spawn(k, "worker", 4, func() {
			for i := 0; i < 3; i++ {
				k.SleepMs(10)
			}
		})
	}))
	require.NoError(t, s.advanceMs(15))

	var stats []ThreadInfo
	var buf bytes.Buffer
	var werr error
	require.NoError(t, s.interrupt(func() {
		stats = s.k.ThreadStats()
		werr = s.k.WriteProfile(&buf)
	}))
	require.NoError(t, werr)

	byName := map[string]ThreadInfo{}
	for _, st := range stats {
		byName[st.Name] = st
	}
	require.Contains(t, byName, idleThreadName)
	require.Contains(t, byName, softTimerName)
	w := byName["worker"]
	assert.Equal(t, a, w.ID)
	assert.Equal(t, Waiting, w.State)
	assert.Equal(t, SyncTimer, w.Sync)
	assert.True(t, w.TimerActive)
	assert.Equal(t, uint64(2), w.Switches)
	assert.Equal(t, Priority(4), w.BasePriority)

	p, err := profile.Parse(&buf)
	require.NoError(t, err)
	require.Len(t, p.Sample, len(stats))
	require.Equal(t, "cpu", p.SampleType[0].Type)
	var names []string
	for _, sm := range p.Sample {
		names = append(names, sm.Location[0].Line[0].Function.Name)
	}
	assert.Contains(t, names, "worker")
}

func TestErrorRateLimitStillTerminates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.ErrorRates = map[time.Duration]int{time.Hour: 1}
	s := newSim(t, cfg)
	require.NoError(t, s.boot(func(k *Kernel) {
		for i := 0; i < 3; i++ {
			spawn(k, fmt.Sprint("t", i), 4, func() {
				k.MutexUnlock(k.MutexCreate())
				s.log("unreachable")
			})
		}
	}))
	require.Empty(t, s.trace)
	require.Len(t, s.errors, 3)
}

func TestFatalNamesRunningThread(t *testing.T) {
	s := newSim(t, testConfig())
	require.NoError(t, s.boot(nil))

	s.k.active = newTestThread("running", 3)
	s.k.current = newTestThread("woken", 5)
	var fe *FatalError
	func() {
		defer func() { fe, _ = recover().(*FatalError) }()
		s.k.fatal(ErrObjectNotFound, "MUTEX")
	}()
	require.NotNil(t, fe)
	assert.Equal(t, "running", fe.Thread)
	require.Len(t, s.fatals, 1)
	assert.Equal(t, "running", s.fatals[0].Thread)
}

func TestErrorText(t *testing.T) {
	for _, tc := range []struct {
		code  ErrorCode
		group ErrorGroup
		text  string
	}{
		{ErrWrongContext, GroupGeneral, "Wrong context"},
		{ErrOutOfHeap, GroupMem, "Out of heap"},
		{ErrDevNotActive, GroupDev, "Device is not active"},
		{ErrIdleCall, GroupThread, "Invalid call in IDLE thread"},
		{ErrSyncAlreadyUnlocked, GroupSync, "Sync object already unlocked"},
		{ErrorCode(0x4ff), GroupSync, "error 0x4ff"},
	} {
		assert.Equal(t, tc.group, tc.code.Group(), tc.text)
		assert.Equal(t, tc.text, tc.code.String())
	}

	fe := &FatalError{Code: ErrInvalidMagic, Where: "MUTEX"}
	assert.EqualError(t, fe, "FATAL: MUTEX: Invalid magic")
	assert.ErrorIs(t, fe, ErrInvalidMagic)
	assert.EqualError(t, &FatalError{Code: ErrHardFault}, "FATAL: Hard fault")

	te := &ThreadError{Code: ErrSyncWrongUnlocker, Thread: "t"}
	assert.EqualError(t, te, "t: Wrong unlocker for sync object")
	assert.ErrorIs(t, te, ErrSyncWrongUnlocker)
}

func TestConfigNormalize(t *testing.T) {
	cfg := Config{MaxQueues: -1, MaxTimers: 3}
	cfg.normalize()
	assert.Equal(t, defaultMaxThreads, cfg.MaxThreads)
	assert.Equal(t, defaultThreadCache, cfg.ThreadCache)
	assert.Zero(t, cfg.MaxQueues)
	assert.Equal(t, 3, cfg.MaxTimers)
	assert.NotNil(t, cfg.StackPool)
	assert.NotNil(t, cfg.DataPool)
}
