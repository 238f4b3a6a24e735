package resource

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

// BufferCreateInfo describes a new buffer
type BufferCreateInfo struct {
	// Size is the size of the buffer in bytes. The memory it requires is rounded up to a
	// whole number of memutils.PageSize pages.
	Size  int
	Usage core1_0.BufferUsageFlags

	SharingMode core1_0.SharingMode
	// QueueFamilyIndices lists the queue families that may access the buffer concurrently.
	// The device keeps its own copy.
	QueueFamilyIndices []uint32
}

type bufferObject struct {
	size               int
	usage              core1_0.BufferUsageFlags
	sharingMode        core1_0.SharingMode
	queueFamilyIndices []uint32

	requirements core1_0.MemoryRequirements
	binding      memoryBinding
}

func (b *bufferObject) hostObjectCount() int {
	if b.queueFamilyIndices != nil {
		return 2
	}
	return 1
}

func (b *bufferObject) createInfo() BufferCreateInfo {
	return BufferCreateInfo{
		Size:               b.size,
		Usage:              b.usage,
		SharingMode:        b.sharingMode,
		QueueFamilyIndices: slices.Clone(b.queueFamilyIndices),
	}
}

// CreateBuffer creates a new, unbound buffer. Its memory requirements are fixed at creation:
// the alignment is memutils.PageSize and the size is info.Size rounded up to a whole page.
//
// Only a nil allocationCallbacks is supported.
func (d *Device) CreateBuffer(allocationCallbacks *driver.AllocationCallbacks, info BufferCreateInfo) (Buffer, common.VkResult, error) {
	d.checkLive()
	d.logger.Debug("Device::CreateBuffer", slog.Int("Size", info.Size))

	res, err := checkAllocationCallbacks(allocationCallbacks, "CreateBuffer")
	if err != nil {
		return NullBuffer, res, err
	}

	requirements, res, err := computeRequirements(resourceDescriptor{Kind: ResourceKindBuffer, Buffer: &info})
	if err != nil {
		return NullBuffer, res, err
	}

	obj := &bufferObject{
		size:         info.Size,
		usage:        info.Usage,
		sharingMode:  info.SharingMode,
		requirements: requirements,
	}

	hostObjects := obj.hostObjectCount()
	if len(info.QueueFamilyIndices) > 0 {
		hostObjects++
	}

	if !d.reserveHostObjects(hostObjects) {
		d.logger.Debug("    Device::CreateBuffer FAILED", slog.Int("HostObjects", d.HostObjectCount()))
		return NullBuffer, core1_0.VKErrorOutOfHostMemory, errors.Wrap(ErrOutOfHostMemory, "could not allocate a buffer")
	}

	if len(info.QueueFamilyIndices) > 0 {
		obj.queueFamilyIndices = slices.Clone(info.QueueFamilyIndices)
	}

	return d.buffers.Insert(obj), core1_0.VKSuccess, nil
}

// DestroyBuffer releases a buffer handle. Memory the buffer was bound to is owned by the
// caller and is not freed or otherwise affected. Destroying NullBuffer does nothing.
func (d *Device) DestroyBuffer(allocationCallbacks *driver.AllocationCallbacks, buffer Buffer) error {
	d.checkLive()
	d.logger.Debug("Device::DestroyBuffer")

	if _, err := checkAllocationCallbacks(allocationCallbacks, "DestroyBuffer"); err != nil {
		return err
	}

	if buffer == NullBuffer {
		return nil
	}

	obj, ok := d.buffers.Remove(buffer)
	if !ok {
		d.reportBadHandle(ResourceKindBuffer, uint64(buffer), d.buffers.Issued(buffer), "DestroyBuffer")
	}

	d.releaseHostObjects(obj.hostObjectCount())
	d.callbacks.Destroy(ResourceKindBuffer, uint64(buffer), obj.binding, obj.requirements.Size)

	return nil
}

// BufferInfo returns the parameters a live buffer was created with
func (d *Device) BufferInfo(buffer Buffer) BufferCreateInfo {
	d.checkLive()

	return d.lookupBuffer(buffer, "BufferInfo").createInfo()
}
