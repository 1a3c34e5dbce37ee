package kernel

import "ember/mem"

// Block is memory allocated from a thread's data pool.
type Block struct {
	pool *mem.Pool
	Off  int
	Len  int
}

// Bytes returns the block's memory.
func (b Block) Bytes() []byte {
	if b.pool == nil {
		return nil
	}
	return b.pool.Bytes(b.Off, b.Len)
}

// Alloc allocates size bytes, word aligned, from the caller's data pool.
// It reports false if the pool is exhausted.
func (k *Kernel) Alloc(size int) (Block, bool) {
	var b Block
	ok := k.Syscall(callMemAlloc, &b, Word(size)) != 0
	return b, ok
}

// Free returns b to its pool. Freeing a block that is not allocated
// terminates the caller.
func (k *Kernel) Free(b Block) {
	k.Syscall(callMemFree, &b)
}

// MemStat reports the state of the caller's data pool.
func (k *Kernel) MemStat() mem.Stat {
	var st mem.Stat
	k.Syscall(callMemStat, &st)
	return st
}

func (k *Kernel) memHandler(c Call) Word {
	k.checkContext(Supervisor, "MEM")
	s := k.arch.DisableInterrupts()
	defer k.arch.RestoreInterrupts(s)

	switch c.Num {
	case callMemAlloc:
		out, ok := c.Ref.(*Block)
		if !ok {
			break
		}
		pool := k.poolOf(k.active)
		off, ok := pool.Alloc(int(c.Args[0]), mem.WordSize)
		if !ok {
			return 0
		}
		*out = Block{pool: pool, Off: off, Len: int(c.Args[0])}
		return 1
	case callMemFree:
		b, ok := c.Ref.(*Block)
		if !ok || b.pool == nil {
			break
		}
		if err := b.pool.Free(b.Off); err != nil {
			k.log.Warning().Err(err).Int("offset", b.Off).Log("bad free")
			k.raise(ErrPointerOutOfPool)
		}
		return 0
	case callMemStat:
		if out, ok := c.Ref.(*mem.Stat); ok {
			*out = k.poolOf(k.active).Stat()
			return 1
		}
	}
	k.raise(ErrInvalidSysCall)
	return 0
}
