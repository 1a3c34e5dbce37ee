package kernel

import (
	"encoding/binary"

	"ember/ktime"
)

const messageSize = 8

// MessageQueueCreate creates a queue of count word sized messages.
func (k *Kernel) MessageQueueCreate(count int) QueueID {
	return k.QueueCreate(messageSize, count, messageSize)
}

// MessagePost queues msg, waiting at most timeout for room; zero waits
// forever. It reports false on timeout.
func (k *Kernel) MessagePost(q QueueID, msg uint64, timeout ktime.Time) bool {
	buf := k.QueueAllocateBuffer(q, timeout)
	if buf == 0 {
		return false
	}
	binary.LittleEndian.PutUint64(k.QueueBytes(q, buf), msg)
	k.QueuePush(q, buf)
	return true
}

func (k *Kernel) MessagePostMs(q QueueID, msg uint64, ms uint32) bool {
	return k.MessagePost(q, msg, ktime.FromMs(ms))
}

func (k *Kernel) MessagePostUs(q QueueID, msg uint64, us uint32) bool {
	return k.MessagePost(q, msg, ktime.FromUs(us))
}

// MessagePeek takes the oldest message, waiting at most timeout for one;
// zero waits forever.
func (k *Kernel) MessagePeek(q QueueID, timeout ktime.Time) (uint64, bool) {
	buf := k.QueuePull(q, timeout)
	if buf == 0 {
		return 0, false
	}
	msg := binary.LittleEndian.Uint64(k.QueueBytes(q, buf))
	k.QueueReleaseBuffer(q, buf)
	return msg, true
}

func (k *Kernel) MessagePeekMs(q QueueID, ms uint32) (uint64, bool) {
	return k.MessagePeek(q, ktime.FromMs(ms))
}

func (k *Kernel) MessagePeekUs(q QueueID, us uint32) (uint64, bool) {
	return k.MessagePeek(q, ktime.FromUs(us))
}
