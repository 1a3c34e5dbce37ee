package kernel

import (
	"math/rand"
	"testing"

	"ember/ktime"

	"github.com/stretchr/testify/require"
)

func drain(q *wakeQueue, now ktime.Time) []*timer {
	var out []*timer
	for t := q.popExpired(now); t != nil; t = q.popExpired(now) {
		out = append(out, t)
	}
	return out
}

func TestWakeQueueOrder(t *testing.T) {
	var q wakeQueue
	q.init(2)

	ts := make([]*timer, 6)
	for i, ms := range []uint32{30, 10, 20, 10, 50, 40} {
		ts[i] = &timer{}
		ts[i].at = ktime.FromMs(ms)
		q.insert(ts[i])
	}
	require.Equal(t, 6, q.len())
	require.Equal(t, 2, q.n)
	require.Same(t, ts[1], q.head())

	got := drain(&q, ktime.FromMs(25))
	require.Equal(t, []*timer{ts[1], ts[3], ts[2]}, got)
	for _, x := range got {
		require.False(t, x.armed)
	}

	got = drain(&q, ktime.Seconds(1))
	require.Equal(t, []*timer{ts[0], ts[5], ts[4]}, got)
	require.Zero(t, q.len())
}

func TestWakeQueueRemoveExact(t *testing.T) {
	var q wakeQueue
	q.init(4)

	a, b, c := &timer{}, &timer{}, &timer{}
	for _, x := range []*timer{a, b, c} {
		x.at = ktime.FromMs(10)
		q.insert(x)
	}
	q.remove(b)
	require.False(t, b.armed)
	require.Equal(t, []*timer{a, c}, drain(&q, ktime.FromMs(10)))

	// removing a disarmed timer is a no-op
	q.remove(b)
	require.Zero(t, q.len())
}

func TestWakeQueueRemoveFromOverflow(t *testing.T) {
	var q wakeQueue
	q.init(1)

	ts := make([]*timer, 4)
	for i := range ts {
		ts[i] = &timer{}
		ts[i].at = ktime.FromMs(uint32(10 * (i + 1)))
		q.insert(ts[i])
	}
	q.remove(ts[2])
	q.remove(ts[0])
	require.Same(t, ts[1], q.head())
	require.Equal(t, []*timer{ts[1], ts[3]}, drain(&q, ktime.Seconds(1)))
}

func TestWakeQueueRandom(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	var q wakeQueue
	q.init(3)

	var armed []*timer
	for step := 0; step < 1000; step++ {
		switch {
		case len(armed) < 2 || rng.Intn(3) == 0:
			x := &timer{}
			x.at = ktime.FromMs(uint32(rng.Intn(50)))
			q.insert(x)
			armed = append(armed, x)
		case rng.Intn(2) == 0:
			i := rng.Intn(len(armed))
			q.remove(armed[i])
			armed = append(armed[:i], armed[i+1:]...)
		default:
			x := q.popExpired(ktime.Seconds(1))
			require.NotNil(t, x)
			for _, y := range armed {
				require.False(t, y.at.Before(x.at))
			}
			for i, y := range armed {
				if y == x {
					armed = append(armed[:i], armed[i+1:]...)
					break
				}
			}
		}
		require.Equal(t, len(armed), q.len())
	}
}
