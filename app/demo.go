package app

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"ember/hal"
	"ember/kernel"
	"ember/ktime"
)

// demoEnv is what a workload may touch besides the kernel.
type demoEnv struct {
	rng *rand.Rand
	led hal.LED
}

// jitter returns a delay in [ms, 2*ms).
func (e *demoEnv) jitter(ms uint32) uint32 {
	if ms == 0 {
		return 0
	}
	return ms + uint32(e.rng.IntN(int(ms)))
}

type demo func(k *kernel.Kernel, env *demoEnv)

var demos = map[string]demo{
	"inherit":  demoInherit,
	"pipeline": demoPipeline,
	"timers":   demoTimers,
}

// Demos lists the workload names New accepts, plus "all".
func Demos() []string {
	names := make([]string, 0, len(demos)+1)
	for name := range demos {
		names = append(names, name)
	}
	sort.Strings(names)
	return append(names, "all")
}

func selectDemos(name string) ([]demo, error) {
	if name == "all" || name == "" {
		var out []demo
		for _, n := range Demos() {
			if d, ok := demos[n]; ok {
				out = append(out, d)
			}
		}
		return out, nil
	}
	d, ok := demos[name]
	if !ok {
		return nil, fmt.Errorf("unknown demo %q (want one of %s)", name, strings.Join(Demos(), ", "))
	}
	return []demo{d}, nil
}

// startThread creates and releases a thread that runs fn forever.
func startThread(k *kernel.Kernel, name string, p kernel.Priority, fn func()) kernel.ThreadID {
	id := k.ThreadCreate(kernel.ThreadSpec{
		Name:     name,
		Priority: p,
		Entry: func(kernel.Word) {
			for {
				fn()
			}
		},
	})
	k.ThreadUnfreeze(id)
	return id
}

// demoInherit has a low priority holder keep a mutex that an urgent thread
// wants, while a medium thread competes for the core. The holder runs at
// the urgent priority while the urgent thread waits.
func demoInherit(k *kernel.Kernel, env *demoEnv) {
	m := k.MutexCreate()

	startThread(k, "holder", 12, func() {
		k.MutexLock(m, ktime.Infinite)
		k.SleepMs(env.jitter(20))
		self := k.ThreadCurrent()
		k.DebugWrite(fmt.Sprintf("holder: unlocking at priority %d", k.ThreadGetPriority(self)))
		k.MutexUnlock(m)
		k.SleepMs(env.jitter(40))
	})
	startThread(k, "medium", 8, func() {
		k.SleepMs(env.jitter(5))
	})
	startThread(k, "urgent", 4, func() {
		k.SleepMs(env.jitter(30))
		start := k.Uptime()
		if !k.MutexLockMs(m, 100) {
			k.DebugWrite("urgent: lock timed out")
			return
		}
		waited := k.Uptime().Sub(start)
		k.MutexUnlock(m)
		k.DebugWrite(fmt.Sprintf("urgent: waited %dus", waited.ToUs()))
	})
}

const (
	pipelineBlock = 32
	pipelineDepth = 4
)

// demoPipeline moves random payloads from a producer to a consumer
// through a block queue, and reports counts through a message queue.
func demoPipeline(k *kernel.Kernel, env *demoEnv) {
	q := k.QueueCreate(pipelineBlock, pipelineDepth, 8)
	report := k.MessageQueueCreate(2)

	var seq uint32
	startThread(k, "producer", 10, func() {
		buf := k.QueueAllocateBuffer(q, ktime.Infinite)
		b := k.QueueBytes(q, buf)
		seq++
		binary.LittleEndian.PutUint32(b, seq)
		for i := 4; i < len(b); i++ {
			b[i] = byte(env.rng.UintN(256))
		}
		k.QueuePush(q, buf)
		k.SleepMs(env.jitter(3))
	})

	var count, sum uint64
	startThread(k, "consumer", 9, func() {
		buf := k.QueuePullMs(q, 500)
		if buf == 0 {
			k.DebugWrite("consumer: starved")
			return
		}
		b := k.QueueBytes(q, buf)
		for _, v := range b[4:] {
			sum += uint64(v)
		}
		count++
		k.QueueReleaseBuffer(q, buf)
		if count%100 == 0 {
			k.MessagePost(report, count<<32|sum&0xffffffff, ktime.Infinite)
		}
	})

	startThread(k, "monitor", 14, func() {
		msg, ok := k.MessagePeekMs(report, 2000)
		if !ok {
			k.DebugWrite("monitor: no progress")
			return
		}
		k.DebugWrite(fmt.Sprintf("monitor: %d blocks, checksum %08x", msg>>32, uint32(msg)))
	})
}

// demoTimers blinks the LED from a periodic software timer and has a
// one-shot timer release a waiting thread.
func demoTimers(k *kernel.Kernel, env *demoEnv) {
	var on bool
	blink := k.TimerCreate(kernel.TimerSpec{
		Periodic: true,
		Handler: func(kernel.Word) {
			on = !on
			if env.led == nil {
				return
			}
			if on {
				env.led.High()
			} else {
				env.led.Low()
			}
		},
	})
	k.TimerStartMs(blink, 500)

	ev := k.EventCreate()
	sem := k.SemaphoreCreate(0)
	oneShot := k.TimerCreate(kernel.TimerSpec{
		Handler: func(kernel.Word) { k.EventSet(ev) },
	})

	startThread(k, "alarm", 6, func() {
		k.TimerStartMs(oneShot, env.jitter(250))
		k.EventWait(ev, ktime.Infinite)
		k.EventClear(ev)
		k.SemaphoreSignal(sem)
	})
	startThread(k, "ticker", 7, func() {
		if k.SemaphoreWaitMs(sem, 1000) {
			k.DebugWrite(fmt.Sprintf("ticker: alarm at %dms", k.Uptime().ToMs()))
		}
	})
}
