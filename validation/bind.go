package validation

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/rpivk/memutils"
	"github.com/vkngwrapper/rpivk/resource"
	"golang.org/x/exp/slog"
)

func checkBinding(kind resource.ResourceKind, requirements core1_0.MemoryRequirements, alreadyBound bool, memory resource.DeviceMemory, offset int) error {
	if memory == nil {
		return errors.Newf("attempted to bind a %s to nil memory", kind)
	}
	if alreadyBound {
		return errors.Newf("the %s is already bound to memory", kind)
	}

	if requirements.Size < 0 {
		return errors.Newf("the %s has a negative size %d", kind, requirements.Size)
	}

	memoryAlignment := memory.Alignment()
	if memoryAlignment == 0 || !memutils.IsAligned(int(memoryAlignment), uint(requirements.Alignment)) {
		return errors.Wrapf(memutils.MisalignedError, "memory aligned to %d cannot hold a %s aligned to %d", memoryAlignment, kind, requirements.Alignment)
	}

	memorySize := memory.Size()
	if offset < 0 || offset >= memorySize {
		return errors.Newf("offset %d is outside of memory with size %d", offset, memorySize)
	}
	if !memutils.IsAligned(offset, uint(requirements.Alignment)) {
		return errors.Wrapf(memutils.MisalignedError, "offset %d is not a multiple of the %s's alignment %d", offset, kind, requirements.Alignment)
	}
	if requirements.Size > memorySize-offset {
		return errors.Newf("the %s requires %d bytes, but only %d remain in memory past offset %d", kind, requirements.Size, memorySize-offset, offset)
	}

	return nil
}

func (l *Layer) checkBufferBinding(buffer resource.Buffer, memory resource.DeviceMemory, offset int) error {
	if !l.device.IsBufferLive(buffer) {
		return errors.Newf("buffer %d is not a live buffer", uint64(buffer))
	}

	_, _, bound := l.device.BufferBinding(buffer)
	return checkBinding(resource.ResourceKindBuffer, l.device.GetBufferMemoryRequirements(buffer), bound, memory, offset)
}

func (l *Layer) checkImageBinding(image resource.Image, memory resource.DeviceMemory, offset int) error {
	if !l.device.IsImageLive(image) {
		return errors.Newf("image %d is not a live image", uint64(image))
	}

	_, _, bound := l.device.ImageBinding(image)
	return checkBinding(resource.ResourceKindImage, l.device.GetImageMemoryRequirements(image), bound, memory, offset)
}

// BindBufferMemory validates the binding and forwards to resource.Device.BindBufferMemory
func (l *Layer) BindBufferMemory(buffer resource.Buffer, memory resource.DeviceMemory, offset int) (common.VkResult, error) {
	l.logger.Debug("Layer::BindBufferMemory", slog.Int("Offset", offset))

	if err := l.checkBufferBinding(buffer, memory, offset); err != nil {
		return l.invalid("BindBufferMemory", err)
	}

	return l.device.BindBufferMemory(buffer, memory, offset)
}

// BindImageMemory validates the binding and forwards to resource.Device.BindImageMemory
func (l *Layer) BindImageMemory(image resource.Image, memory resource.DeviceMemory, offset int) (common.VkResult, error) {
	l.logger.Debug("Layer::BindImageMemory", slog.Int("Offset", offset))

	if err := l.checkImageBinding(image, memory, offset); err != nil {
		return l.invalid("BindImageMemory", err)
	}

	return l.device.BindImageMemory(image, memory, offset)
}

// BindBufferMemory2 validates every binding before forwarding any of them to
// resource.Device.BindBufferMemory2, so either all buffers are bound or none are
func (l *Layer) BindBufferMemory2(infos []resource.BindBufferMemoryInfo) (common.VkResult, error) {
	l.logger.Debug("Layer::BindBufferMemory2", slog.Int("Count", len(infos)))

	seen := make(map[resource.Buffer]struct{}, len(infos))
	for i, info := range infos {
		if _, duplicate := seen[info.Buffer]; duplicate {
			return l.invalidf("BindBufferMemory2", "infos[%d]: buffer %d appears more than once", i, uint64(info.Buffer))
		}
		seen[info.Buffer] = struct{}{}

		if err := l.checkBufferBinding(info.Buffer, info.Memory, info.MemoryOffset); err != nil {
			return l.invalid("BindBufferMemory2", errors.Wrapf(err, "infos[%d]", i))
		}
	}

	return l.device.BindBufferMemory2(infos)
}

// BindImageMemory2 validates every binding before forwarding any of them to
// resource.Device.BindImageMemory2, so either all images are bound or none are
func (l *Layer) BindImageMemory2(infos []resource.BindImageMemoryInfo) (common.VkResult, error) {
	l.logger.Debug("Layer::BindImageMemory2", slog.Int("Count", len(infos)))

	seen := make(map[resource.Image]struct{}, len(infos))
	for i, info := range infos {
		if _, duplicate := seen[info.Image]; duplicate {
			return l.invalidf("BindImageMemory2", "infos[%d]: image %d appears more than once", i, uint64(info.Image))
		}
		seen[info.Image] = struct{}{}

		if err := l.checkImageBinding(info.Image, info.Memory, info.MemoryOffset); err != nil {
			return l.invalid("BindImageMemory2", errors.Wrapf(err, "infos[%d]", i))
		}
	}

	return l.device.BindImageMemory2(infos)
}
