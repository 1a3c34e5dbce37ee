package kernel

import (
	"time"

	"ember/mem"

	"github.com/joeycumines/logiface"
)

const (
	defaultThreadCache = 8
	defaultTimerCache  = 8

	defaultMaxThreads    = 32
	defaultMaxMutexes    = 32
	defaultMaxEvents     = 32
	defaultMaxSemaphores = 32
	defaultMaxQueues     = 16
	defaultMaxTimers     = 16

	defaultStackWords     = 256
	defaultIdleStackWords = 64

	defaultStackPoolBytes = 64 << 10
	defaultDataPoolBytes  = 64 << 10
	defaultPoolBlocks     = 256
)

// Config holds the compile-time shape of the kernel. All storage is sized
// from it in New.
type Config struct {
	// ThreadCache and TimerCache are the number of cached slots of the
	// active structure and the wake queue.
	ThreadCache int
	TimerCache  int

	MaxThreads    int
	MaxMutexes    int
	MaxEvents     int
	MaxSemaphores int
	MaxQueues     int
	MaxTimers     int

	DefaultStackWords int
	IdleStackWords    int

	// SoftTimerPriority and SoftTimerStackWords configure the thread that
	// runs software timer handlers. It is only started if MaxTimers > 0.
	SoftTimerPriority   Priority
	SoftTimerStackWords int

	// StackPool backs thread stacks, DataPool backs queues and Alloc.
	// Defaults are created when nil.
	StackPool *mem.Pool
	DataPool  *mem.Pool

	// Marks enables handle magic checks.
	Marks bool
	// Profiling enables per-thread runtime accounting.
	Profiling bool

	Logger *logiface.Logger[logiface.Event]
	// Console receives DebugWrite output. Without one it is logged.
	Console Console

	// OnFatal is called once on the first fatal error, before the kernel
	// halts. It must not return control to the kernel by panicking.
	OnFatal func(*FatalError)
	// OnError is called for every non-fatal error, including the ones the
	// log rate limit suppresses.
	OnError func(*ThreadError)
	// ErrorRates limits repeated non-fatal error reports per error code.
	ErrorRates map[time.Duration]int
}

// Console is a line oriented debug output.
type Console interface {
	WriteLineString(s string)
}

// DefaultConfig returns the configuration used by the reference board.
func DefaultConfig() Config {
	return Config{
		ThreadCache:         defaultThreadCache,
		TimerCache:          defaultTimerCache,
		MaxThreads:          defaultMaxThreads,
		MaxMutexes:          defaultMaxMutexes,
		MaxEvents:           defaultMaxEvents,
		MaxSemaphores:       defaultMaxSemaphores,
		MaxQueues:           defaultMaxQueues,
		MaxTimers:           defaultMaxTimers,
		DefaultStackWords:   defaultStackWords,
		IdleStackWords:      defaultIdleStackWords,
		SoftTimerPriority:   1,
		SoftTimerStackWords: defaultStackWords,
		Marks:               true,
		Profiling:           true,
		ErrorRates: map[time.Duration]int{
			time.Second: 4,
			time.Minute: 32,
		},
	}
}

// normalize fills zero fields with defaults. Negative object limits
// disable the object kind.
func (c *Config) normalize() {
	def := DefaultConfig()
	c.ThreadCache = positive(c.ThreadCache, def.ThreadCache)
	c.TimerCache = positive(c.TimerCache, def.TimerCache)
	c.MaxThreads = positive(c.MaxThreads, def.MaxThreads)
	c.MaxMutexes = limit(c.MaxMutexes, def.MaxMutexes)
	c.MaxEvents = limit(c.MaxEvents, def.MaxEvents)
	c.MaxSemaphores = limit(c.MaxSemaphores, def.MaxSemaphores)
	c.MaxQueues = limit(c.MaxQueues, def.MaxQueues)
	c.MaxTimers = limit(c.MaxTimers, def.MaxTimers)
	c.DefaultStackWords = positive(c.DefaultStackWords, def.DefaultStackWords)
	c.IdleStackWords = positive(c.IdleStackWords, def.IdleStackWords)
	c.SoftTimerStackWords = positive(c.SoftTimerStackWords, def.SoftTimerStackWords)
	if c.StackPool == nil {
		c.StackPool = mem.New("thread stack pool", defaultStackPoolBytes, defaultPoolBlocks)
	}
	if c.DataPool == nil {
		c.DataPool = mem.New("data pool", defaultDataPoolBytes, defaultPoolBlocks)
	}
}

func positive(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func limit(v, def int) int {
	switch {
	case v == 0:
		return def
	case v < 0:
		return 0
	}
	return v
}
