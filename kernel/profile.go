package kernel

import (
	"fmt"
	"io"
	"time"

	"github.com/google/pprof/profile"

	"ember/ktime"
)

// ThreadInfo is a snapshot of one thread.
type ThreadInfo struct {
	ID              ThreadID
	Name            string
	BasePriority    Priority
	CurrentPriority Priority
	State           State
	Sync            SyncKind
	TimerActive     bool
	Switches        uint64
	Runtime         ktime.Time
	StackWords      int
}

// ThreadStats returns a snapshot of every thread. Runtime is only
// accounted when profiling is enabled.
func (k *Kernel) ThreadStats() []ThreadInfo {
	var out []ThreadInfo
	k.Syscall(callThreadStats, &out)
	return out
}

func (k *Kernel) appendStats(out []ThreadInfo) []ThreadInfo {
	var now ktime.Time
	if k.cfg.Profiling {
		now = k.clock.Uptime()
	}
	k.threads.each(func(t *thread) {
		rt := t.runtime
		if t == k.active && k.cfg.Profiling {
			rt = rt.Add(now.Sub(t.since))
		}
		out = append(out, ThreadInfo{
			ID:              t.id,
			Name:            t.displayName(),
			BasePriority:    t.base,
			CurrentPriority: t.prio,
			State:           t.state(),
			Sync:            t.syncKind(),
			TimerActive:     t.timerActive(),
			Switches:        t.switches,
			Runtime:         rt,
			StackWords:      t.stackWords,
		})
	})
	return out
}

// WriteProfile writes the per-thread runtime and switch counts as a
// gzipped pprof profile, one sample per thread.
func (k *Kernel) WriteProfile(w io.Writer) error {
	stats := k.ThreadStats()
	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "cpu", Unit: "nanoseconds"},
			{Type: "switches", Unit: "count"},
		},
		PeriodType:    &profile.ValueType{Type: "cpu", Unit: "nanoseconds"},
		Period:        1,
		TimeNanos:     time.Now().UnixNano(),
		DurationNanos: int64(k.Uptime().Duration()),
	}
	for i, st := range stats {
		id := uint64(i + 1)
		fn := &profile.Function{
			ID:         id,
			Name:       st.Name,
			SystemName: fmt.Sprintf("thread/%d", st.ID),
		}
		loc := &profile.Location{ID: id, Line: []profile.Line{{Function: fn}}}
		p.Function = append(p.Function, fn)
		p.Location = append(p.Location, loc)
		p.Sample = append(p.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{int64(st.Runtime.Duration()), int64(st.Switches)},
			Label: map[string][]string{
				"state": {st.State.String()},
			},
			NumLabel: map[string][]int64{
				"priority": {int64(st.CurrentPriority)},
			},
		})
	}
	if err := p.CheckValid(); err != nil {
		return fmt.Errorf("kernel: profile: %w", err)
	}
	return p.Write(w)
}
