package kernel

import (
	"sync"
	"sync/atomic"
)

// maxStackBytes bounds the stack kept in a FatalError.
const maxStackBytes = 4 << 10

type fatalState struct {
	active atomic.Bool
	once   sync.Once
}

// InFatalMode reports whether the kernel has halted on a fatal error.
func (k *Kernel) InFatalMode() bool {
	return k.halt.active.Load()
}

// fatal reports err and halts the kernel by panicking with it. The
// configured handler is invoked at most once, on the first fatal error.
func (k *Kernel) fatal(code ErrorCode, where string) {
	err := &FatalError{Code: code, Where: where}
	err.Thread = k.activeName()
	k.halt.once.Do(func() {
		k.halt.active.Store(true)
		err.Stack = captureStack()
		k.log.Emerg().
			Str("code", code.String()).
			Str("where", where).
			Str("thread", err.Thread).
			Log("fatal error")
		if fn := k.cfg.OnFatal; fn != nil {
			fn(err)
		}
	})
	panic(err)
}
