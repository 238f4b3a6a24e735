package resource

import (
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/rpivk/memutils"
	"golang.org/x/exp/slog"
)

// memoryBinding is the region of a DeviceMemory allocation that a buffer or image is bound to.
// The zero value is unbound.
type memoryBinding struct {
	memory DeviceMemory
	offset int
}

func (b memoryBinding) IsBound() bool {
	return b.memory != nil
}

// bind attaches a resource to memory at offset. It is shared by every resource kind that owns
// backing memory, and records the binding only when every precondition holds:
//
// the resource has never been bound; the memory's base is at least as aligned as the resource;
// offset lies within memory; offset is a multiple of the resource's alignment; and the
// resource's aligned size fits in the memory remaining past offset.
//
// Any other call is a contract violation. Bindings into the same memory are not checked for
// overlap, since aliasing is a legal use of the API.
func (d *Device) bind(kind ResourceKind, handle uint64, requirements core1_0.MemoryRequirements, binding *memoryBinding, memory DeviceMemory, offset int, operation string) {
	if memory == nil {
		contractViolation("%s: attempted to bind %s %d to nil memory", operation, kind, handle)
	}
	if binding.IsBound() {
		contractViolation("%s: %s %d is already bound to memory at offset %d", operation, kind, handle, binding.offset)
	}

	if requirements.Size < 0 {
		contractViolation("%s: %s %d has a negative size %d", operation, kind, handle, requirements.Size)
	}

	memoryAlignment := memory.Alignment()
	if memoryAlignment == 0 || !memutils.IsAligned(int(memoryAlignment), uint(requirements.Alignment)) {
		contractViolation("%s: memory aligned to %d cannot hold a %s aligned to %d", operation, memoryAlignment, kind, requirements.Alignment)
	}

	memorySize := memory.Size()
	if offset < 0 || offset >= memorySize {
		contractViolation("%s: offset %d is outside of memory with size %d", operation, offset, memorySize)
	}
	if !memutils.IsAligned(offset, uint(requirements.Alignment)) {
		contractViolation("%s: offset %d is not a multiple of the %s's alignment %d", operation, offset, kind, requirements.Alignment)
	}
	if requirements.Size > memorySize-offset {
		contractViolation("%s: %s %d requires %d bytes, but only %d remain in memory past offset %d",
			operation, kind, handle, requirements.Size, memorySize-offset, offset)
	}

	binding.memory = memory
	binding.offset = offset

	d.callbacks.Bind(kind, handle, *binding, requirements.Size)
}

// BindBufferMemory binds an unbound buffer to memory, starting offset bytes into the memory.
// The caller keeps ownership of memory, and remains responsible for freeing it after every
// resource bound to it is destroyed.
//
// Rebinding the buffer, binding at an offset outside of memory or that is not a multiple of
// the buffer's alignment, or binding where the buffer's aligned size does not fit are all
// contract violations.
func (d *Device) BindBufferMemory(buffer Buffer, memory DeviceMemory, offset int) (common.VkResult, error) {
	d.checkLive()
	d.logger.Debug("Device::BindBufferMemory", slog.Int("Offset", offset))

	obj := d.lookupBuffer(buffer, "BindBufferMemory")
	d.bind(ResourceKindBuffer, uint64(buffer), obj.requirements, &obj.binding, memory, offset, "BindBufferMemory")

	return core1_0.VKSuccess, nil
}

// BindImageMemory binds an unbound image to memory, starting offset bytes into the memory.
// Its contract is identical to BindBufferMemory.
func (d *Device) BindImageMemory(image Image, memory DeviceMemory, offset int) (common.VkResult, error) {
	d.checkLive()
	d.logger.Debug("Device::BindImageMemory", slog.Int("Offset", offset))

	obj := d.lookupImage(image, "BindImageMemory")
	d.bind(ResourceKindImage, uint64(image), obj.requirements, &obj.binding, memory, offset, "BindImageMemory")

	return core1_0.VKSuccess, nil
}

// BindBufferMemoryInfo describes one buffer binding in a BindBufferMemory2 call
type BindBufferMemoryInfo struct {
	Buffer       Buffer
	Memory       DeviceMemory
	MemoryOffset int
}

// BindImageMemoryInfo describes one image binding in a BindImageMemory2 call
type BindImageMemoryInfo struct {
	Image        Image
	Memory       DeviceMemory
	MemoryOffset int
}

// BindBufferMemory2 binds each buffer in infos in order, with the same contract as
// BindBufferMemory (khr_bind_memory2)
func (d *Device) BindBufferMemory2(infos []BindBufferMemoryInfo) (common.VkResult, error) {
	d.checkLive()
	d.logger.Debug("Device::BindBufferMemory2", slog.Int("Count", len(infos)))

	for _, info := range infos {
		obj := d.lookupBuffer(info.Buffer, "BindBufferMemory2")
		d.bind(ResourceKindBuffer, uint64(info.Buffer), obj.requirements, &obj.binding, info.Memory, info.MemoryOffset, "BindBufferMemory2")
	}

	return core1_0.VKSuccess, nil
}

// BindImageMemory2 binds each image in infos in order, with the same contract as
// BindImageMemory (khr_bind_memory2)
func (d *Device) BindImageMemory2(infos []BindImageMemoryInfo) (common.VkResult, error) {
	d.checkLive()
	d.logger.Debug("Device::BindImageMemory2", slog.Int("Count", len(infos)))

	for _, info := range infos {
		obj := d.lookupImage(info.Image, "BindImageMemory2")
		d.bind(ResourceKindImage, uint64(info.Image), obj.requirements, &obj.binding, info.Memory, info.MemoryOffset, "BindImageMemory2")
	}

	return core1_0.VKSuccess, nil
}

// BufferBinding returns the memory and offset a live buffer is bound to. bound is false if
// the buffer has not been bound yet.
func (d *Device) BufferBinding(buffer Buffer) (memory DeviceMemory, offset int, bound bool) {
	d.checkLive()

	binding := d.lookupBuffer(buffer, "BufferBinding").binding
	return binding.memory, binding.offset, binding.IsBound()
}

// ImageBinding returns the memory and offset a live image is bound to. bound is false if
// the image has not been bound yet.
func (d *Device) ImageBinding(image Image) (memory DeviceMemory, offset int, bound bool) {
	d.checkLive()

	binding := d.lookupImage(image, "ImageBinding").binding
	return binding.memory, binding.offset, binding.IsBound()
}
