package devmem

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/cockroachdb/errors"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/rpivk/memutils"
	"github.com/vkngwrapper/rpivk/resource"
	"golang.org/x/exp/slog"
)

// HeapOptions contains optional settings when creating a Heap
type HeapOptions struct {
	// ExternallySynchronized indicates that the consumer guarantees each Memory allocated from
	// the Heap is only mapped and unmapped from one thread at a time
	ExternallySynchronized bool

	// Size is the size in bytes of the physical heap. If left 0, the heap is as large as the
	// heap reported by resource.Device.MemoryProperties for a default device.
	Size int
	// SizeLimit caps the number of bytes that may be allocated from the heap at once. It is
	// ignored when larger than Size. 0 means no limit below Size.
	SizeLimit int
	// MaxAllocationCount is the number of Memory objects that may be allocated at once. When
	// it is exceeded, allocation fails with core1_0.VKErrorTooManyObjects. 0 means no limit.
	MaxAllocationCount int
}

// Budget summarizes the memory allocated from a Heap. A block is a Memory allocation and
// an allocation is a resource bound into one, as reported through the heap's
// ResourceCallbacks.
type Budget struct {
	Statistics memutils.Statistics
	Usage      int
	Budget     int
}

// Heap is a reference provider of resource.DeviceMemory for the unified memory type. It
// accounts for every byte allocated from it, but it does not suballocate: every Allocate
// call produces a new, page-aligned Memory.
type Heap struct {
	logger             *slog.Logger
	useMutex           bool
	size               int
	maxAllocatable     int
	maxAllocationCount int

	memoryCount     uint32
	blockCount      int32
	blockBytes      int64
	allocationCount int32
	allocationBytes int64
}

const defaultHeapSize int = 256 * 1024 * 1024

// NewHeap creates a new Heap
//
// logger - Debug-level traces of allocations and error-level reports of unfreed memory are
// written here
//
// options - Optional parameters: it is valid to leave all the fields blank
func NewHeap(logger *slog.Logger, options HeapOptions) (*Heap, error) {
	if logger == nil {
		return nil, errors.New("devmem.NewHeap requires a non-nil logger")
	}
	if options.Size < 0 || options.SizeLimit < 0 || options.MaxAllocationCount < 0 {
		return nil, errors.Newf("devmem.HeapOptions fields must not be negative: %+v", options)
	}

	heap := &Heap{
		logger:             logger,
		useMutex:           !options.ExternallySynchronized,
		size:               options.Size,
		maxAllocationCount: options.MaxAllocationCount,
	}

	if heap.size == 0 {
		heap.size = defaultHeapSize
	}

	heap.maxAllocatable = heap.size
	if options.SizeLimit > 0 && options.SizeLimit < heap.size {
		heap.maxAllocatable = options.SizeLimit
	}

	return heap, nil
}

// Size returns the size in bytes of the heap
func (h *Heap) Size() int {
	return h.size
}

func (h *Heap) addBlockAllocationWithBudget(allocationSize int) (common.VkResult, error) {
	for {
		currentVal := atomic.LoadInt64(&h.blockBytes)
		targetVal := currentVal + int64(allocationSize)

		if targetVal > int64(h.maxAllocatable) {
			return core1_0.VKErrorOutOfDeviceMemory, core1_0.VKErrorOutOfDeviceMemory.ToError()
		}

		if atomic.CompareAndSwapInt64(&h.blockBytes, currentVal, targetVal) {
			break
		}
	}

	atomic.AddInt32(&h.blockCount, 1)
	return core1_0.VKSuccess, nil
}

func (h *Heap) removeBlockAllocation(allocationSize int) {
	newVal := atomic.AddInt64(&h.blockBytes, int64(-allocationSize))
	if newVal < 0 {
		panic(fmt.Sprintf("block bytes for the heap went negative: %d", newVal))
	}

	newCountVal := atomic.AddInt32(&h.blockCount, -1)
	if newCountVal < 0 {
		panic(fmt.Sprintf("block count for the heap went negative: %d", newCountVal))
	}
}

// Allocate allocates a new Memory from the heap. info.MemoryTypeIndex must be
// resource.UnifiedMemoryTypeIndex, and info.AllocationSize is rounded up to a whole number of
// memutils.PageSize pages, which is the size the returned Memory reports.
//
// Only a nil allocationCallbacks is supported.
func (h *Heap) Allocate(allocationCallbacks *driver.AllocationCallbacks, info core1_0.MemoryAllocateInfo) (mem *Memory, res common.VkResult, err error) {
	h.logger.Debug("Heap::Allocate", slog.Int("AllocationSize", info.AllocationSize))

	if allocationCallbacks != nil {
		return nil, core1_0.VKErrorFeatureNotPresent, errors.Wrap(resource.ErrAllocationCallbacksUnsupported, "Allocate")
	}
	if info.MemoryTypeIndex != resource.UnifiedMemoryTypeIndex {
		return nil, core1_0.VKErrorUnknown, errors.Newf("memory type index %d does not exist", info.MemoryTypeIndex)
	}
	if info.AllocationSize <= 0 {
		return nil, core1_0.VKErrorUnknown, errors.Newf("allocation size must be positive, but was %d", info.AllocationSize)
	}

	newMemoryCount := atomic.AddUint32(&h.memoryCount, 1)
	defer func() {
		// If we failed out, roll back the memory count increment
		if err != nil {
			// Decrement
			atomic.AddUint32(&h.memoryCount, ^uint32(0))
		}
	}()

	if h.maxAllocationCount > 0 && int(newMemoryCount) > h.maxAllocationCount {
		return nil, core1_0.VKErrorTooManyObjects, core1_0.VKErrorTooManyObjects.ToError()
	}

	size, err := memutils.CheckedAlignedSize(info.AllocationSize)
	if err != nil {
		return nil, core1_0.VKErrorOutOfDeviceMemory, err
	}

	res, err = h.addBlockAllocationWithBudget(size)
	if err != nil {
		h.logger.Debug("    Heap::Allocate FAILED", slog.Int("BlockBytes", int(atomic.LoadInt64(&h.blockBytes))))
		return nil, res, err
	}

	return newMemory(h, size), core1_0.VKSuccess, nil
}

func (h *Heap) freeMemory(size int) {
	h.removeBlockAllocation(size)
	// Decrement
	atomic.AddUint32(&h.memoryCount, ^uint32(0))
}

func (h *Heap) addAllocation(size int) {
	atomic.AddInt64(&h.allocationBytes, int64(size))
	atomic.AddInt32(&h.allocationCount, 1)
}

func (h *Heap) removeAllocation(size int) {
	newSizeVal := atomic.AddInt64(&h.allocationBytes, int64(-size))
	if newSizeVal < 0 {
		panic(fmt.Sprintf("allocation bytes for the heap went negative: %d", newSizeVal))
	}

	newCountVal := atomic.AddInt32(&h.allocationCount, -1)
	if newCountVal < 0 {
		panic(fmt.Sprintf("allocation count for the heap went negative: %d", newCountVal))
	}
}

// ResourceCallbacks returns callbacks that, once passed to resource.New through
// resource.CreateOptions, count every buffer and image bound into memory from this heap as
// an allocation in Budget. Bindings into memory from anywhere else are ignored.
func (h *Heap) ResourceCallbacks() *resource.ResourceCallbackOptions {
	return &resource.ResourceCallbackOptions{
		Bind: func(device *resource.Device, kind resource.ResourceKind, handle uint64, memory resource.DeviceMemory, offset int, size int, userData any) {
			if mem, ok := memory.(*Memory); ok && mem.heap == h {
				h.addAllocation(size)
			}
		},
		Destroy: func(device *resource.Device, kind resource.ResourceKind, handle uint64, memory resource.DeviceMemory, offset int, size int, userData any) {
			if mem, ok := memory.(*Memory); ok && mem.heap == h {
				h.removeAllocation(size)
			}
		},
	}
}

// Budget reports the memory currently allocated from the heap
func (h *Heap) Budget() Budget {
	var budget Budget

	budget.Statistics.BlockCount = int(atomic.LoadInt32(&h.blockCount))
	budget.Statistics.BlockBytes = int(atomic.LoadInt64(&h.blockBytes))
	budget.Statistics.AllocationCount = int(atomic.LoadInt32(&h.allocationCount))
	budget.Statistics.AllocationBytes = int(atomic.LoadInt64(&h.allocationBytes))

	budget.Usage = budget.Statistics.BlockBytes
	budget.Budget = h.maxAllocatable

	return budget
}

// AllocationCount returns the number of Memory objects that have not yet been freed
func (h *Heap) AllocationCount() int {
	return int(atomic.LoadUint32(&h.memoryCount))
}

// BuildStatsString produces a json document describing the heap's budget
func (h *Heap) BuildStatsString() string {
	budget := h.Budget()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	obj.Name("HeapSize").Int(h.size)
	obj.Name("Usage").Int(budget.Usage)
	obj.Name("Budget").Int(budget.Budget)

	statsObj := obj.Name("Stats").Object()
	budget.Statistics.PrintJson(&statsObj)
	statsObj.End()

	obj.End()
	return string(writer.Bytes())
}

// Destroy reports memory that was never freed. Unlike resource.Device, which never owns the
// memory its resources are bound to, a Heap owns every Memory it allocates, so any Memory left
// at this point is a leak.
func (h *Heap) Destroy() error {
	h.logger.Debug("Heap::Destroy")

	budget := h.Budget()
	if budget.Statistics.BlockCount == 0 {
		return nil
	}

	h.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed device memory",
		slog.Int("BlockCount", budget.Statistics.BlockCount),
		slog.Int("BlockBytes", budget.Statistics.BlockBytes),
		slog.Int("AllocationCount", budget.Statistics.AllocationCount),
	)

	return errors.Newf("%d memory allocations were not freed before the destruction of this heap", budget.Statistics.BlockCount)
}
