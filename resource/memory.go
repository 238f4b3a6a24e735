package resource

import (
	"github.com/vkngwrapper/core/v2/core1_0"
)

//go:generate mockgen -source memory.go -destination ./mocks/memory.go -package mock_resource

// DeviceMemory is a caller-owned allocation of device-addressable memory. A Device only reads
// its size and alignment: binding a resource into it, or destroying a bound resource, never
// frees or changes the memory.
type DeviceMemory interface {
	// Size is the size of the allocation in bytes
	Size() int
	// Alignment is the alignment guaranteed for the base address of the allocation
	Alignment() uint
}

const (
	// UnifiedMemoryTypeIndex is the only memory type the hardware exposes. CPU and GPU share
	// one physical memory, so it is device local, host visible, and host coherent all at once.
	UnifiedMemoryTypeIndex int = 0

	unifiedMemoryPropertyFlags = core1_0.MemoryPropertyDeviceLocal |
		core1_0.MemoryPropertyHostVisible |
		core1_0.MemoryPropertyHostCoherent

	unifiedMemoryTypeBits uint32 = 1 << UnifiedMemoryTypeIndex
)

// MemoryProperties reports the memory types and heaps that resources created by this
// Device may be bound into
func (d *Device) MemoryProperties() *core1_0.PhysicalDeviceMemoryProperties {
	d.checkLive()

	return &core1_0.PhysicalDeviceMemoryProperties{
		MemoryTypes: []core1_0.MemoryType{
			{
				PropertyFlags: unifiedMemoryPropertyFlags,
				HeapIndex:     0,
			},
		},
		MemoryHeaps: []core1_0.MemoryHeap{
			{
				Size:  d.heapSize,
				Flags: core1_0.MemoryHeapDeviceLocal,
			},
		},
	}
}
