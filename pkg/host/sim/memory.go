package sim

import (
	"fmt"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/woxQAQ/pgxbridge/pkg/host"
)

const (
	maxAlign        = 8
	minBlockSize    = 8192
	minChunkSize    = 8
	topContextName  = "TopMemoryContext"
	xactContextName = "TopTransactionContext"
)

type memoryContext struct {
	id       host.MemoryContext
	name     string
	parent   *memoryContext
	children []*memoryContext

	blocks [][]byte
	free   int // offset of the first unused byte in the last block
	chunks map[uintptr]uintptr

	callbacks []func()
	allocated uintptr
}

func (b *Backend) newContext(parent *memoryContext, name string) *memoryContext {
	b.nextContext++
	c := &memoryContext{
		id:     host.MemoryContext(b.nextContext),
		name:   name,
		parent: parent,
		chunks: make(map[uintptr]uintptr),
	}
	if parent != nil {
		parent.children = append(parent.children, c)
	}
	b.contexts[c.id] = c
	return c
}

func (b *Backend) lookup(cxt host.MemoryContext) *memoryContext {
	c, ok := b.contexts[cxt]
	if !ok {
		b.Ereport(host.Errorf(host.InternalError, "invalid memory context handle %d", cxt))
	}
	return c
}

// CurrentMemoryContext returns the active context.
func (b *Backend) CurrentMemoryContext() host.MemoryContext {
	return b.current
}

// SwitchMemoryContext makes cxt active and returns the previously active one.
func (b *Backend) SwitchMemoryContext(cxt host.MemoryContext) host.MemoryContext {
	prev := b.current
	b.current = cxt
	return prev
}

// TopMemoryContext returns the root context.
func (b *Backend) TopMemoryContext() host.MemoryContext {
	return b.top.id
}

// TransactionContext returns the context reset when a transaction ends.
func (b *Backend) TransactionContext() host.MemoryContext {
	return b.xact.id
}

// CreateMemoryContext creates a child of parent.
func (b *Backend) CreateMemoryContext(parent host.MemoryContext, name string) host.MemoryContext {
	p := b.lookup(parent)
	c := b.newContext(p, name)
	b.logger.Debug("memory context created",
		zap.String("name", name),
		zap.String("parent", p.name),
	)
	return c.id
}

// MemoryContextName returns the name cxt was created with.
func (b *Backend) MemoryContextName(cxt host.MemoryContext) string {
	if c, ok := b.contexts[cxt]; ok {
		return c.name
	}
	return ""
}

// ResetMemoryContext runs the reset callbacks of cxt, deletes its children
// and releases every block it owns. The context itself survives.
func (b *Backend) ResetMemoryContext(cxt host.MemoryContext) {
	b.reset(b.lookup(cxt))
}

func (b *Backend) reset(c *memoryContext) {
	for len(c.callbacks) > 0 {
		fn := c.callbacks[len(c.callbacks)-1]
		c.callbacks = c.callbacks[:len(c.callbacks)-1]
		fn()
	}
	for len(c.children) > 0 {
		b.delete(c.children[len(c.children)-1])
	}
	for ptr := range c.chunks {
		delete(b.chunks, ptr)
	}
	clear(c.chunks)
	for _, blk := range c.blocks {
		if err := unix.Munmap(blk); err != nil {
			b.logger.Warn("munmap failed", zap.String("context", c.name), zap.Error(err))
		}
	}
	c.blocks = nil
	c.free = 0
	c.allocated = 0
}

// DeleteMemoryContext resets cxt and removes it from the tree.
func (b *Backend) DeleteMemoryContext(cxt host.MemoryContext) {
	c := b.lookup(cxt)
	if c == b.top {
		b.Ereport(host.Errorf(host.InternalError, "cannot delete %s", topContextName))
	}
	if b.isActiveOrAncestor(c) {
		b.Ereport(host.Errorf(host.InternalError, "cannot delete active memory context %q", c.name))
	}
	b.delete(c)
}

func (b *Backend) isActiveOrAncestor(c *memoryContext) bool {
	for cur := b.contexts[b.current]; cur != nil; cur = cur.parent {
		if cur == c {
			return true
		}
	}
	return false
}

func (b *Backend) delete(c *memoryContext) {
	b.reset(c)
	if p := c.parent; p != nil {
		for i, sib := range p.children {
			if sib == c {
				p.children = append(p.children[:i], p.children[i+1:]...)
				break
			}
		}
	}
	delete(b.contexts, c.id)
	b.logger.Debug("memory context deleted", zap.String("name", c.name))
}

// RegisterResetCallback runs fn when cxt is next reset or deleted.
func (b *Backend) RegisterResetCallback(cxt host.MemoryContext, fn func()) {
	c := b.lookup(cxt)
	c.callbacks = append(c.callbacks, fn)
}

// Alloc returns zeroed, maxaligned memory owned by cxt.
func (b *Backend) Alloc(cxt host.MemoryContext, size uintptr) unsafe.Pointer {
	c := b.lookup(cxt)
	if size > maxAllocSize {
		b.Ereport(host.Errorf(host.ProgramLimitExceeded, "invalid memory alloc request size %d", size))
	}
	n := alignUp(max(size, minChunkSize), maxAlign)

	if len(c.blocks) == 0 || uintptr(len(c.blocks[len(c.blocks)-1])-c.free) < n {
		blkSize := max(alignUp(n, uintptr(b.pageSize)), minBlockSize)
		blk, err := unix.Mmap(-1, 0, int(blkSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
		if err != nil {
			b.Ereport(&host.ErrorData{
				Level:    host.Error,
				SQLState: host.OutOfMemory,
				Message:  "out of memory",
				Detail:   fmt.Sprintf("Failed on request of size %d in memory context %q.", size, c.name),
			})
		}
		c.blocks = append(c.blocks, blk)
		c.free = 0
	}

	blk := c.blocks[len(c.blocks)-1]
	ptr := unsafe.Pointer(&blk[c.free])
	c.free += int(n)
	c.allocated += n
	c.chunks[uintptr(ptr)] = size
	b.chunks[uintptr(ptr)] = c
	return ptr
}

// Free releases a chunk. Arena memory is only reclaimed when the owning
// context is reset; freeing a pointer the backend never handed out is an
// error, as it is in the host.
func (b *Backend) Free(ptr unsafe.Pointer) {
	c, ok := b.chunks[uintptr(ptr)]
	if !ok {
		b.Ereport(host.Errorf(host.InternalError, "pfree called with invalid pointer %p", ptr))
	}
	c.allocated -= alignUp(max(c.chunks[uintptr(ptr)], minChunkSize), maxAlign)
	delete(c.chunks, uintptr(ptr))
	delete(b.chunks, uintptr(ptr))
}

// maxAllocSize mirrors the host's MaxAllocSize (1 GB - 1).
const maxAllocSize = 0x3fffffff

func alignUp(n, a uintptr) uintptr {
	return (n + a - 1) &^ (a - 1)
}
