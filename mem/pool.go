// Package mem is a first-fit memory pool over a fixed byte arena.
//
// Blocks are addressed by their byte offset in the arena. Bookkeeping
// lives in a fixed entry table sized at construction, so the pool never
// allocates after New.
package mem

import (
	"errors"
	"fmt"

	"ember/internal/dlist"
	"ember/internal/slist"
)

// WordSize is the minimum alignment and size granularity.
const WordSize = 4

var ErrInvalidFree = errors.New("mem: free of unallocated block")

type entry struct {
	off  int
	size int
	used bool

	// all entries in address order
	addr dlist.Link[entry]
	// free entries in address order
	free slist.Link[entry]
}

func (e *entry) DLink() *dlist.Link[entry] { return &e.addr }
func (e *entry) SLink() *slist.Link[entry] { return &e.free }

// Stat summarizes pool usage.
type Stat struct {
	FreeBlocks  int
	UsedBlocks  int
	TotalFree   int
	LargestFree int
	TotalUsed   int
}

// Pool is a first-fit allocator. It is not safe for concurrent use; the
// kernel serializes access with its critical sections.
type Pool struct {
	name string
	buf  []byte

	table  []entry
	spare  slist.List[entry, *entry]
	blocks dlist.List[entry, *entry]
	frees  slist.List[entry, *entry]
}

// New returns a pool of size bytes that can track at most maxBlocks blocks
// (used and free together).
func New(name string, size, maxBlocks int) *Pool {
	return NewWithBuffer(name, make([]byte, alignUp(size, WordSize)), maxBlocks)
}

// NewWithBuffer builds a pool over an existing arena.
func NewWithBuffer(name string, buf []byte, maxBlocks int) *Pool {
	if maxBlocks < 1 {
		maxBlocks = 1
	}
	p := &Pool{
		name:  name,
		buf:   buf[:len(buf)&^(WordSize-1)],
		table: make([]entry, maxBlocks),
	}
	for i := len(p.table) - 1; i > 0; i-- {
		p.spare.PushHead(&p.table[i])
	}
	e := &p.table[0]
	e.size = len(p.buf)
	p.blocks.PushTail(e)
	p.frees.PushHead(e)
	return p
}

// Name returns the pool name given at construction.
func (p *Pool) Name() string { return p.name }

// Size returns the arena size in bytes.
func (p *Pool) Size() int { return len(p.buf) }

// Bytes returns n bytes of the arena starting at off.
func (p *Pool) Bytes(off, n int) []byte { return p.buf[off : off+n : off+n] }

// Alloc reserves size bytes aligned to align and returns the block offset.
// It reports false when no free block is large enough or the entry table
// is exhausted.
func (p *Pool) Alloc(size, align int) (int, bool) {
	if align <= 0 {
		align = WordSize
	}
	if align&(align-1) != 0 {
		return 0, false
	}
	align = max(align, WordSize)
	size = alignUp(max(size, WordSize), WordSize)

	var prev *entry
	for cur := p.frees.Head(); cur != nil; prev, cur = cur, p.frees.Next(cur) {
		start := alignUp(cur.off, align)
		pad := start - cur.off
		if cur.size-pad < size {
			continue
		}
		// padding needs an entry of its own; without a spare for the tail
		// the whole block is handed out
		spares := p.spareCount(2)
		if pad > 0 {
			if spares == 0 {
				continue
			}
			spares--
		}
		splitTail := cur.size-pad-size >= WordSize && spares > 0

		p.frees.RemoveAfter(prev)
		if pad > 0 {
			head := p.spare.PopHead()
			*head = entry{off: cur.off, size: pad}
			p.blocks.InsertBefore(head, cur)
			p.frees.InsertAfter(prev, head)
			prev = head
			cur.off = start
			cur.size -= pad
		}
		if splitTail {
			tail := p.spare.PopHead()
			*tail = entry{off: cur.off + size, size: cur.size - size}
			p.blocks.InsertAfter(tail, cur)
			p.frees.InsertAfter(prev, tail)
			cur.size = size
		}
		cur.used = true
		return cur.off, true
	}
	return 0, false
}

// spareCount counts spare entries, stopping once limit is reached.
func (p *Pool) spareCount(limit int) int {
	n := 0
	for e := p.spare.Head(); e != nil && n < limit; e = p.spare.Next(e) {
		n++
	}
	return n
}

// Free returns the block at off to the pool, merging it with free
// neighbours.
func (p *Pool) Free(off int) error {
	var e *entry
	for cur := p.blocks.Head(); cur != nil; cur = p.blocks.Next(cur) {
		if cur.off == off {
			e = cur
			break
		}
		if cur.off > off {
			break
		}
	}
	if e == nil || !e.used {
		return fmt.Errorf("%s: offset %d: %w", p.name, off, ErrInvalidFree)
	}
	e.used = false

	if next := p.blocks.Next(e); next != nil && !next.used {
		p.unlinkFree(next)
		e.size += next.size
		p.release(next)
	}
	if prev := p.blocks.Prev(e); prev != nil && !prev.used {
		prev.size += e.size
		p.release(e)
		return nil
	}

	var after *entry
	for cur := p.frees.Head(); cur != nil && cur.off < e.off; cur = p.frees.Next(cur) {
		after = cur
	}
	p.frees.InsertAfter(after, e)
	return nil
}

func (p *Pool) unlinkFree(e *entry) {
	var prev *entry
	for cur := p.frees.Head(); cur != nil; prev, cur = cur, p.frees.Next(cur) {
		if cur == e {
			p.frees.RemoveAfter(prev)
			return
		}
	}
}

func (p *Pool) release(e *entry) {
	p.blocks.Remove(e)
	*e = entry{}
	p.spare.PushHead(e)
}

// BlockSize returns the usable size of the allocated block at off.
func (p *Pool) BlockSize(off int) (int, bool) {
	for cur := p.blocks.Head(); cur != nil; cur = p.blocks.Next(cur) {
		if cur.off == off && cur.used {
			return cur.size, true
		}
	}
	return 0, false
}

// Stat walks the pool and summarizes it.
func (p *Pool) Stat() Stat {
	var s Stat
	for cur := p.blocks.Head(); cur != nil; cur = p.blocks.Next(cur) {
		if cur.used {
			s.UsedBlocks++
			s.TotalUsed += cur.size
			continue
		}
		s.FreeBlocks++
		s.TotalFree += cur.size
		s.LargestFree = max(s.LargestFree, cur.size)
	}
	return s
}

func alignUp(v, align int) int {
	return (v + align - 1) &^ (align - 1)
}
