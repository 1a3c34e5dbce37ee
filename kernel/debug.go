package kernel

// StackInfo describes a thread's stack allocation.
type StackInfo struct {
	Words int
	Bytes int
}

// DebugWrite writes a line to the debug console. It may be called at any
// privilege.
func (k *Kernel) DebugWrite(s string) {
	k.Syscall(callDebugWrite, &s)
}

// StackStat reports the stack allocation of a thread.
func (k *Kernel) StackStat(id ThreadID) StackInfo {
	var st StackInfo
	k.Syscall(callDebugStackStat, &st, Word(id))
	return st
}

// DeviceError reports a failed driver call by the calling thread, which is
// terminated.
func (k *Kernel) DeviceError(dev DeviceClass, index int, code ErrorCode) {
	k.Syscall(callDebugDevice, nil, Word(dev), Word(index), Word(code))
}

func (k *Kernel) debugHandler(c Call) Word {
	switch c.Num {
	case callDebugWrite:
		s, ok := c.Ref.(*string)
		if !ok {
			break
		}
		if k.cfg.Console != nil {
			k.cfg.Console.WriteLineString(*s)
		} else {
			k.log.Info().Str("thread", k.activeName()).Log(*s)
		}
		return 0
	case callDebugStackStat:
		out, ok := c.Ref.(*StackInfo)
		if !ok {
			break
		}
		st := k.arch.DisableInterrupts()
		defer k.arch.RestoreInterrupts(st)
		t := k.threadFor(c.Args[0])
		n, _ := k.cfg.StackPool.BlockSize(t.stack)
		*out = StackInfo{Words: t.stackWords, Bytes: n}
		return 0
	case callDebugDevice:
		st := k.arch.DisableInterrupts()
		defer k.arch.RestoreInterrupts(st)
		k.raiseDevice(DeviceClass(c.Args[0]), int(c.Args[1]), ErrorCode(c.Args[2]))
		return 0
	}
	k.raise(ErrInvalidSysCall)
	return 0
}

func (k *Kernel) activeName() string {
	if k.active == nil {
		return ""
	}
	return k.active.displayName()
}
