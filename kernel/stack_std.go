//go:build !tinygo

package kernel

import "runtime/debug"

// captureStack returns the current goroutine's stack, cut to
// maxStackBytes.
func captureStack() []byte {
	s := debug.Stack()
	if len(s) > maxStackBytes {
		s = s[:maxStackBytes]
	}
	return s
}
