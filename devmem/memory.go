package devmem

import (
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/rpivk/internal/utils"
	"github.com/vkngwrapper/rpivk/memutils"
)

// Memory is a page-aligned allocation from a Heap. It implements resource.DeviceMemory.
//
// The unified memory type is host visible and host coherent, so Memory may be mapped at any
// time without flushing. The host backing store is only created the first time it is mapped.
type Memory struct {
	heap  *Heap
	size  int
	freed atomic.Bool

	mapMutex      utils.OptionalMutex
	mapReferences int
	data          []byte
}

func newMemory(heap *Heap, size int) *Memory {
	return &Memory{
		heap: heap,
		size: size,
		mapMutex: utils.OptionalMutex{
			UseMutex: heap.useMutex,
		},
	}
}

// Size returns the size of the allocation in bytes, which is always a multiple of
// memutils.PageSize
func (m *Memory) Size() int {
	return m.size
}

// Alignment returns the alignment of the base address of the allocation. Memory is handed out
// by the kernel a page at a time.
func (m *Memory) Alignment() uint {
	return uint(memutils.PageSize)
}

// Map returns size bytes of the memory's contents starting at offset, for reading and writing
// from the host. size may be common.WholeSize to map every byte past offset. Each successful
// call must be paired with a call to Unmap.
func (m *Memory) Map(offset, size int) ([]byte, common.VkResult, error) {
	if m.freed.Load() {
		panic(errors.AssertionFailedf("attempted to map memory that has already been freed"))
	}

	if size == common.WholeSize {
		size = m.size - offset
	}
	if offset < 0 || size <= 0 || offset+size > m.size {
		return nil, core1_0.VKErrorMemoryMapFailed, errors.Newf("attempted to map %d bytes at offset %d in memory with size %d", size, offset, m.size)
	}

	m.mapMutex.Lock()
	defer m.mapMutex.Unlock()

	if m.data == nil {
		m.data = make([]byte, m.size)
	}
	m.mapReferences++

	return m.data[offset : offset+size : offset+size], core1_0.VKSuccess, nil
}

// Unmap releases a mapping acquired through Map
func (m *Memory) Unmap() error {
	m.mapMutex.Lock()
	defer m.mapMutex.Unlock()

	if m.mapReferences == 0 {
		return errors.New("attempted to unmap memory that is not mapped")
	}
	m.mapReferences--

	return nil
}

// MapReferences returns the number of outstanding calls to Map
func (m *Memory) MapReferences() int {
	m.mapMutex.Lock()
	defer m.mapMutex.Unlock()

	return m.mapReferences
}

// Free returns the memory to its Heap. Resources bound to the memory must have been destroyed
// first. Freeing memory twice is a programming error and panics.
func (m *Memory) Free() {
	if !m.freed.CompareAndSwap(false, true) {
		panic(errors.AssertionFailedf("attempted to free memory that has already been freed"))
	}

	m.heap.logger.Debug("Memory::Free")

	m.mapMutex.Lock()
	m.mapReferences = 0
	m.data = nil
	m.mapMutex.Unlock()

	m.heap.freeMemory(m.size)
}
