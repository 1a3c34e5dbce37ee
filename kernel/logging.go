package kernel

// raise reports a non-fatal error against the calling thread and destroys
// it. Errors raised in interrupt context, or with no calling thread, are
// fatal.
func (k *Kernel) raise(code ErrorCode) {
	k.raiseError(&ThreadError{Code: code})
}

// raiseDevice reports a driver error on the device path.
func (k *Kernel) raiseDevice(dev DeviceClass, index int, code ErrorCode) {
	k.raiseError(&ThreadError{Code: code, Device: dev, Index: index})
}

func (k *Kernel) raiseError(err *ThreadError) {
	switch {
	case k.arch.Privilege() == IRQ:
		k.fatal(err.Code, "IRQ")
	case k.active == nil:
		k.fatal(err.Code, "KERNEL")
	}
	t := k.active
	err.Thread = t.displayName()
	err.ID = t.id

	if _, ok := k.limiter.Allow(err.Code); ok {
		b := k.log.Err().
			Str("thread", err.Thread).
			Uint64("id", uint64(err.ID)).
			Str("group", err.Code.Group().String()).
			Int("code", int(err.Code))
		if err.Code.Group() == GroupDev {
			b = b.Str("device", err.Device.String()).Int("index", err.Index)
		}
		b.Err(err.Code).Log("thread terminated")
	}
	if fn := k.cfg.OnError; fn != nil {
		fn(err)
	}
	k.destroyThread(t)
}
