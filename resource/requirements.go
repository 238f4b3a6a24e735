package resource

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/rpivk/memutils"
)

// resourceDescriptor is the creation-time description of a resource that owns backing
// memory. Exactly one of Buffer or Image is set, according to Kind.
type resourceDescriptor struct {
	Kind   ResourceKind
	Buffer *BufferCreateInfo
	Image  *ImageCreateInfo
}

// computeRequirements is the single size and alignment policy for every resource that can be
// bound to memory. Every resource is page aligned and consumes whole pages. A resource whose
// size cannot be represented fails with core1_0.VKErrorOutOfDeviceMemory.
func computeRequirements(desc resourceDescriptor) (core1_0.MemoryRequirements, common.VkResult, error) {
	requirements := core1_0.MemoryRequirements{
		Alignment:      memutils.PageSize,
		MemoryTypeBits: unifiedMemoryTypeBits,
	}

	switch desc.Kind {
	case ResourceKindBuffer:
		size, err := memutils.CheckedAlignedSize(desc.Buffer.Size)
		if err != nil {
			return requirements, core1_0.VKErrorOutOfDeviceMemory, errors.Mark(errors.Wrapf(err, "buffer of %d bytes", desc.Buffer.Size), ErrResourceTooLarge)
		}
		requirements.Size = size
	case ResourceKindImage:
		size, err := imageBackingSize(desc.Image)
		if errors.Is(err, ErrUnsupportedFormat) {
			return requirements, core1_0.VKErrorFormatNotSupported, err
		} else if err != nil {
			return requirements, core1_0.VKErrorOutOfDeviceMemory, errors.Mark(errors.Wrap(err, "image"), ErrResourceTooLarge)
		}
		requirements.Size = size
	default:
		contractViolation("attempted to compute memory requirements for a %s, which does not own memory", desc.Kind)
	}

	memutils.DebugCheckPow2(requirements.Alignment, "resource alignment")
	return requirements, core1_0.VKSuccess, nil
}

// MemoryRequirements2 extends core1_0.MemoryRequirements with the dedicated allocation
// report of khr_dedicated_allocation
type MemoryRequirements2 struct {
	MemoryRequirements core1_0.MemoryRequirements

	// PrefersDedicatedAllocation is true if the resource would perform better in a DeviceMemory
	// allocation of its own
	PrefersDedicatedAllocation bool
	// RequiresDedicatedAllocation is true if the resource may only be bound to a DeviceMemory
	// allocation of its own
	RequiresDedicatedAllocation bool
}

// dedicatedRequirements wraps requirements in a MemoryRequirements2. Memory is unified and
// carved into pages, so no resource ever benefits from a dedicated allocation.
func dedicatedRequirements(requirements core1_0.MemoryRequirements) MemoryRequirements2 {
	return MemoryRequirements2{
		MemoryRequirements: requirements,
	}
}

// GetBufferMemoryRequirements reports the size, alignment, and compatible memory types for a
// live buffer
func (d *Device) GetBufferMemoryRequirements(buffer Buffer) core1_0.MemoryRequirements {
	d.checkLive()
	d.logger.Debug("Device::GetBufferMemoryRequirements")

	return d.lookupBuffer(buffer, "GetBufferMemoryRequirements").requirements
}

// GetImageMemoryRequirements reports the size, alignment, and compatible memory types for a
// live image
func (d *Device) GetImageMemoryRequirements(image Image) core1_0.MemoryRequirements {
	d.checkLive()
	d.logger.Debug("Device::GetImageMemoryRequirements")

	return d.lookupImage(image, "GetImageMemoryRequirements").requirements
}

// GetBufferMemoryRequirements2 is GetBufferMemoryRequirements with the dedicated allocation
// report of khr_get_memory_requirements2 and khr_dedicated_allocation
func (d *Device) GetBufferMemoryRequirements2(buffer Buffer) MemoryRequirements2 {
	return dedicatedRequirements(d.GetBufferMemoryRequirements(buffer))
}

// GetImageMemoryRequirements2 is GetImageMemoryRequirements with the dedicated allocation
// report of khr_get_memory_requirements2 and khr_dedicated_allocation
func (d *Device) GetImageMemoryRequirements2(image Image) MemoryRequirements2 {
	return dedicatedRequirements(d.GetImageMemoryRequirements(image))
}

// GetDeviceBufferMemoryRequirements reports the memory requirements a buffer created from info
// would have, without creating it (khr_maintenance4)
func (d *Device) GetDeviceBufferMemoryRequirements(info BufferCreateInfo) (MemoryRequirements2, common.VkResult, error) {
	d.checkLive()
	d.logger.Debug("Device::GetDeviceBufferMemoryRequirements")

	requirements, res, err := computeRequirements(resourceDescriptor{Kind: ResourceKindBuffer, Buffer: &info})
	if err != nil {
		return MemoryRequirements2{}, res, err
	}

	return dedicatedRequirements(requirements), res, nil
}

// GetDeviceImageMemoryRequirements reports the memory requirements an image created from info
// would have, without creating it (khr_maintenance4)
func (d *Device) GetDeviceImageMemoryRequirements(info ImageCreateInfo) (MemoryRequirements2, common.VkResult, error) {
	d.checkLive()
	d.logger.Debug("Device::GetDeviceImageMemoryRequirements")

	requirements, res, err := computeRequirements(resourceDescriptor{Kind: ResourceKindImage, Image: &info})
	if err != nil {
		return MemoryRequirements2{}, res, err
	}

	return dedicatedRequirements(requirements), res, nil
}
