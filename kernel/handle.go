package kernel

// Object magics, checked on every handle lookup when marks are enabled.
const (
	magicThread    uint32 = 0x7de32076
	magicMutex     uint32 = 0xd0cc6e26
	magicEvent     uint32 = 0x57e198c7
	magicSemaphore uint32 = 0xabfd92d9
	magicQueue     uint32 = 0x6b54bbeb
	magicTimer     uint32 = 0xbecafcf5
)

// Object handles. The low half is the slot index plus one, the high half
// the slot generation, so a stale handle never resolves to a reused slot.
// Zero is never a valid handle.
type (
	ThreadID    uint32
	MutexID     uint32
	EventID     uint32
	SemaphoreID uint32
	QueueID     uint32
	TimerID     uint32
)

type slot[T any] struct {
	gen   uint16
	magic uint32
	next  int32
	v     T
}

// slab is a fixed table of kernel objects. It allocates only in newSlab.
type slab[T any] struct {
	name  string
	magic uint32
	slots []slot[T]
	free  int32
	used  int
}

func newSlab[T any](name string, magic uint32, n int) *slab[T] {
	s := &slab[T]{name: name, magic: magic, slots: make([]slot[T], n), free: -1}
	for i := n - 1; i >= 0; i-- {
		s.slots[i].next = s.free
		s.free = int32(i)
	}
	return s
}

func (s *slab[T]) alloc() (uint32, *T, bool) {
	if s.free < 0 {
		return 0, nil, false
	}
	i := s.free
	sl := &s.slots[i]
	s.free = sl.next
	sl.next = -1
	sl.gen++
	sl.magic = s.magic
	s.used++
	return uint32(sl.gen)<<16 | uint32(i+1), &sl.v, true
}

// get resolves h. It reports false for handles that are out of range,
// stale or whose slot magic is damaged.
func (s *slab[T]) get(h uint32) (*T, bool) {
	i := int(h&0xffff) - 1
	if i < 0 || i >= len(s.slots) {
		return nil, false
	}
	sl := &s.slots[i]
	if sl.magic != s.magic || sl.gen != uint16(h>>16) {
		return nil, false
	}
	return &sl.v, true
}

func (s *slab[T]) release(h uint32) {
	i := int(h&0xffff) - 1
	sl := &s.slots[i]
	var zero T
	sl.v = zero
	sl.magic = 0
	sl.next = s.free
	s.free = int32(i)
	s.used--
}

// each calls fn for every live object in slot order.
func (s *slab[T]) each(fn func(*T)) {
	for i := range s.slots {
		if s.slots[i].magic == s.magic {
			fn(&s.slots[i].v)
		}
	}
}
