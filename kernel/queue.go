package kernel

import (
	"encoding/binary"

	"ember/ktime"
	"ember/mem"
)

// Buffer references a queue block. Zero is no block.
type Buffer Word

// Block states, kept in each block header.
const (
	blockFree byte = iota + 0xb0
	blockAllocated
	blockFilled
	blockPulled
)

const (
	blockHeaderSize = 8
	noBlock         = ^uint32(0)
)

// blockFIFO chains block indices through the block headers.
type blockFIFO struct {
	head, tail uint32
	n          int
}

// queue is a bounded pool of fixed size blocks carried from producers to
// consumers. Every block is in exactly one state: free, allocated to a
// producer, filled and queued, or pulled by a consumer. Block storage lives
// in a memory pool; each payload is preceded by an 8 byte header holding
// the next index of its FIFO and its state.
type queue struct {
	id          QueueID
	pool        *mem.Pool
	base        int
	blockSize   int
	stride      int
	alignOffset int
	count       int

	free   blockFIFO
	filled blockFIFO

	pushWaiters threadList
	pullWaiters threadList
}

// QueueCreate creates a queue of count blocks of blockSize bytes, each
// payload aligned to align bytes (word aligned if zero). Storage comes from
// the caller's data pool; if it is exhausted the caller is terminated.
func (k *Kernel) QueueCreate(blockSize, count, align int) QueueID {
	return QueueID(k.Syscall(callQueueCreate, nil, Word(blockSize), Word(count), Word(align)))
}

// QueueAllocateBuffer takes a free block to fill, waiting at most timeout
// for one; zero waits forever. It returns zero on timeout.
func (k *Kernel) QueueAllocateBuffer(q QueueID, timeout ktime.Time) Buffer {
	return Buffer(k.Syscall(callQueueAllocate, nil, Word(q), Word(timeout.Pack())))
}

func (k *Kernel) QueueAllocateBufferMs(q QueueID, ms uint32) Buffer {
	return k.QueueAllocateBuffer(q, ktime.FromMs(ms))
}

func (k *Kernel) QueueAllocateBufferUs(q QueueID, us uint32) Buffer {
	return k.QueueAllocateBuffer(q, ktime.FromUs(us))
}

// QueuePush queues an allocated block, handing it directly to the longest
// waiting consumer if there is one.
func (k *Kernel) QueuePush(q QueueID, buf Buffer) {
	k.Syscall(callQueuePush, nil, Word(q), Word(buf))
}

// QueuePull takes the oldest filled block, waiting at most timeout for
// one; zero waits forever. It returns zero on timeout.
func (k *Kernel) QueuePull(q QueueID, timeout ktime.Time) Buffer {
	return Buffer(k.Syscall(callQueuePull, nil, Word(q), Word(timeout.Pack())))
}

func (k *Kernel) QueuePullMs(q QueueID, ms uint32) Buffer {
	return k.QueuePull(q, ktime.FromMs(ms))
}

func (k *Kernel) QueuePullUs(q QueueID, us uint32) Buffer {
	return k.QueuePull(q, ktime.FromUs(us))
}

// QueueReleaseBuffer returns a block to the free set, handing it directly
// to the longest waiting producer if there is one.
func (k *Kernel) QueueReleaseBuffer(q QueueID, buf Buffer) {
	k.Syscall(callQueueRelease, nil, Word(q), Word(buf))
}

// QueueIsEmpty reports whether no filled block is queued.
func (k *Kernel) QueueIsEmpty(q QueueID) bool {
	return k.Syscall(callQueueIsEmpty, nil, Word(q)) != 0
}

// QueueIsFull reports whether every block is held outside the free set.
func (k *Kernel) QueueIsFull(q QueueID) bool {
	return k.Syscall(callQueueIsFull, nil, Word(q)) != 0
}

// QueueDestroy destroys q and frees its storage. Every waiter fails.
func (k *Kernel) QueueDestroy(q QueueID) { k.Syscall(callQueueDestroy, nil, Word(q)) }

// QueueBytes returns the payload of buf. The slice aliases pool memory and
// is valid until the block is released.
func (k *Kernel) QueueBytes(q QueueID, buf Buffer) []byte {
	var b []byte
	k.Syscall(callQueueBytes, &b, Word(q), Word(buf))
	return b
}

func (k *Kernel) queueHandler(c Call) Word {
	k.checkContext(Supervisor|IRQ, "QUEUE")
	s := k.arch.DisableInterrupts()
	defer k.arch.RestoreInterrupts(s)

	if c.Num == callQueueCreate {
		return Word(k.queueCreate(int(c.Args[0]), int(c.Args[1]), int(c.Args[2])))
	}
	q := k.queueFor(c.Args[0])
	switch c.Num {
	case callQueueAllocate:
		return k.queueAllocate(q, ktime.Unpack(uint64(c.Args[1])))
	case callQueuePush:
		if i, ok := k.queueBlock(q, Buffer(c.Args[1]), blockAllocated); ok {
			k.queuePush(q, i)
		}
	case callQueuePull:
		return k.queuePull(q, ktime.Unpack(uint64(c.Args[1])))
	case callQueueRelease:
		if i, ok := k.queueBlock(q, Buffer(c.Args[1]), blockPulled, blockAllocated); ok {
			k.queueRelease(q, i)
		}
	case callQueueIsEmpty:
		if q.filled.n == 0 {
			return 1
		}
	case callQueueIsFull:
		if q.free.n == 0 {
			return 1
		}
	case callQueueDestroy:
		k.queueDestroy(q)
	case callQueueBytes:
		out, ok := c.Ref.(*[]byte)
		i, valid := k.queueBlock(q, Buffer(c.Args[1]), blockAllocated, blockFilled, blockPulled)
		if ok && valid {
			*out = q.pool.Bytes(q.payload(i), q.blockSize)
		}
	default:
		k.raise(ErrInvalidSysCall)
	}
	return 0
}

func (k *Kernel) queueFor(w Word) *queue {
	q, ok := k.queues.get(uint32(w))
	if !ok {
		k.badHandle("QUEUE")
	}
	return q
}

func (k *Kernel) queueCreate(blockSize, count, align int) QueueID {
	if blockSize <= 0 || count <= 0 || align < 0 || align&(align-1) != 0 {
		k.raise(ErrRangeCheck)
		return 0
	}
	if align < mem.WordSize {
		align = mem.WordSize
	}
	alignOffset := max(blockHeaderSize, align)
	stride := alignUp(alignOffset+blockSize, max(align, blockHeaderSize))

	pool := k.poolOf(k.active)
	base, ok := pool.Alloc(stride*count, max(align, blockHeaderSize))
	if !ok {
		k.raise(ErrOutOfHeap)
		return 0
	}
	h, q, ok := k.queues.alloc()
	if !ok {
		_ = pool.Free(base)
		k.fatal(ErrOutOfSystemMemory, "QUEUE")
	}
	*q = queue{
		id:          QueueID(h),
		pool:        pool,
		base:        base,
		blockSize:   blockSize,
		stride:      stride,
		alignOffset: alignOffset,
		count:       count,
		free:        blockFIFO{head: noBlock, tail: noBlock},
		filled:      blockFIFO{head: noBlock, tail: noBlock},
	}
	for i := 0; i < count; i++ {
		q.setState(uint32(i), blockFree)
		q.append(&q.free, uint32(i))
	}
	return q.id
}

func (k *Kernel) queueAllocate(q *queue, timeout ktime.Time) Word {
	if i, ok := q.pop(&q.free); ok {
		q.setState(i, blockAllocated)
		return Word(q.buffer(i))
	}
	t := k.caller()
	q.pushWaiters.PushTail(t)
	k.sleep(t, timeout, SyncQueue, q)
	return 0
}

func (k *Kernel) queuePush(q *queue, i uint32) {
	if w := q.pullWaiters.PopHead(); w != nil {
		q.setState(i, blockPulled)
		k.arch.Patch(w.ctx, Word(q.buffer(i)))
		k.wakeup(w)
		return
	}
	q.setState(i, blockFilled)
	q.append(&q.filled, i)
}

func (k *Kernel) queuePull(q *queue, timeout ktime.Time) Word {
	if i, ok := q.pop(&q.filled); ok {
		q.setState(i, blockPulled)
		return Word(q.buffer(i))
	}
	t := k.caller()
	q.pullWaiters.PushTail(t)
	k.sleep(t, timeout, SyncQueue, q)
	return 0
}

func (k *Kernel) queueRelease(q *queue, i uint32) {
	if w := q.pushWaiters.PopHead(); w != nil {
		q.setState(i, blockAllocated)
		k.arch.Patch(w.ctx, Word(q.buffer(i)))
		k.wakeup(w)
		return
	}
	q.setState(i, blockFree)
	q.append(&q.free, i)
}

func (k *Kernel) queueDestroy(q *queue) {
	for _, l := range [...]*threadList{&q.pushWaiters, &q.pullWaiters} {
		for w := l.PopHead(); w != nil; w = l.PopHead() {
			k.arch.Patch(w.ctx, 0)
			k.wakeup(w)
		}
	}
	if err := q.pool.Free(q.base); err != nil {
		k.fatal(ErrPointerOutOfPool, "QUEUE")
	}
	k.queues.release(uint32(q.id))
}

// queueBlock resolves buf to a block index of q in one of the given
// states. Anything else terminates the caller.
func (k *Kernel) queueBlock(q *queue, buf Buffer, states ...byte) (uint32, bool) {
	off := int(buf) - 1 - q.base - q.alignOffset
	if buf == 0 || off < 0 || off%q.stride != 0 || off/q.stride >= q.count {
		k.raise(ErrPointerOutOfPool)
		return 0, false
	}
	i := uint32(off / q.stride)
	st := q.state(i)
	for _, s := range states {
		if st == s {
			return i, true
		}
	}
	k.raise(ErrInvalidState)
	return 0, false
}

// releaseWaiter detaches a producer or consumer that stopped waiting.
func (q *queue) releaseWaiter(t *thread) {
	if q.pushWaiters.Contains(t) {
		q.pushWaiters.Remove(t)
		return
	}
	q.pullWaiters.Remove(t)
}

func (q *queue) header(i uint32) []byte {
	return q.pool.Bytes(q.payload(i)-blockHeaderSize, blockHeaderSize)
}

func (q *queue) payload(i uint32) int {
	return q.base + int(i)*q.stride + q.alignOffset
}

func (q *queue) buffer(i uint32) Buffer { return Buffer(q.payload(i) + 1) }

func (q *queue) state(i uint32) byte { return q.header(i)[4] }

func (q *queue) setState(i uint32, s byte) { q.header(i)[4] = s }

func (q *queue) next(i uint32) uint32 {
	return binary.LittleEndian.Uint32(q.header(i))
}

func (q *queue) setNext(i, next uint32) {
	binary.LittleEndian.PutUint32(q.header(i), next)
}

func (q *queue) append(f *blockFIFO, i uint32) {
	q.setNext(i, noBlock)
	if f.tail == noBlock {
		f.head = i
	} else {
		q.setNext(f.tail, i)
	}
	f.tail = i
	f.n++
}

func (q *queue) pop(f *blockFIFO) (uint32, bool) {
	i := f.head
	if i == noBlock {
		return 0, false
	}
	f.head = q.next(i)
	if f.head == noBlock {
		f.tail = noBlock
	}
	f.n--
	return i, true
}

func alignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}
