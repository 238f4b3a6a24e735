package validation

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/rpivk/resource"
	"golang.org/x/exp/slog"
)

const texelBufferUsage = core1_0.BufferUsageUniformTexelBuffer | core1_0.BufferUsageStorageTexelBuffer

func (l *Layer) checkBufferViewCreateInfo(info resource.BufferViewCreateInfo) error {
	if !l.device.IsBufferLive(info.Buffer) {
		return errors.Newf("buffer %d is not a live buffer", uint64(info.Buffer))
	}
	if _, supported := resource.TexelSize(info.Format); !supported {
		return errors.Newf("format %d is not supported", int(info.Format))
	}

	bufferInfo := l.device.BufferInfo(info.Buffer)
	if bufferInfo.Usage&texelBufferUsage == 0 {
		return errors.Newf("buffer %d was not created with a texel buffer usage", uint64(info.Buffer))
	}

	if !l.options.CheckViewRanges {
		return nil
	}

	if info.Offset < 0 || info.Offset >= bufferInfo.Size {
		return errors.Newf("offset %d is outside of buffer with size %d", info.Offset, bufferInfo.Size)
	}
	if info.Range == common.WholeSize {
		return nil
	}
	if info.Range <= 0 {
		return errors.Newf("range must be positive or common.WholeSize, but was %d", info.Range)
	}
	if info.Offset+info.Range > bufferInfo.Size {
		return errors.Newf("offset %d and range %d overrun buffer with size %d", info.Offset, info.Range, bufferInfo.Size)
	}

	return nil
}

// CreateBufferView validates info and forwards to resource.Device.CreateBufferView. The view's
// offset and range are only checked against the buffer's size when Options.CheckViewRanges is
// set.
func (l *Layer) CreateBufferView(allocationCallbacks *driver.AllocationCallbacks, info resource.BufferViewCreateInfo) (resource.BufferView, common.VkResult, error) {
	l.logger.Debug("Layer::CreateBufferView", slog.Int("Offset", info.Offset), slog.Int("Range", info.Range))

	if err := l.checkBufferViewCreateInfo(info); err != nil {
		res, err := l.invalid("CreateBufferView", err)
		return resource.NullBufferView, res, err
	}

	return l.device.CreateBufferView(allocationCallbacks, info)
}

// DestroyBufferView rejects stale handles, then forwards to resource.Device.DestroyBufferView
func (l *Layer) DestroyBufferView(allocationCallbacks *driver.AllocationCallbacks, view resource.BufferView) (common.VkResult, error) {
	l.logger.Debug("Layer::DestroyBufferView")

	if view != resource.NullBufferView && !l.device.IsBufferViewLive(view) {
		return l.invalidf("DestroyBufferView", "buffer view %d is not a live buffer view", uint64(view))
	}

	err := l.device.DestroyBufferView(allocationCallbacks, view)
	if err != nil {
		return core1_0.VKErrorFeatureNotPresent, err
	}
	return core1_0.VKSuccess, nil
}

func checkSubresourceSpan(name string, base, count, total int) error {
	if base < 0 || base >= total {
		return errors.Newf("base %s %d is outside of the image's %d %ss", name, base, total, name)
	}
	if count < 1 || base+count > total {
		return errors.Newf("%d %ss starting at %d overrun the image's %d %ss", count, name, base, total, name)
	}

	return nil
}

func (l *Layer) checkImageViewCreateInfo(info resource.ImageViewCreateInfo) error {
	if !l.device.IsImageLive(info.Image) {
		return errors.Newf("image %d is not a live image", uint64(info.Image))
	}
	if _, supported := resource.TexelSize(info.Format); !supported {
		return errors.Newf("format %d is not supported", int(info.Format))
	}

	if !l.options.CheckViewRanges {
		return nil
	}

	imageInfo := l.device.ImageInfo(info.Image)
	subresources := info.SubresourceRange

	err := checkSubresourceSpan("mip level", int(subresources.BaseMipLevel), int(subresources.LevelCount), imageInfo.MipLevels)
	if err != nil {
		return err
	}

	return checkSubresourceSpan("array layer", int(subresources.BaseArrayLayer), int(subresources.LayerCount), imageInfo.ArrayLayers)
}

// CreateImageView validates info and forwards to resource.Device.CreateImageView. The view's
// subresource range is only checked against the image's mip levels and array layers when
// Options.CheckViewRanges is set.
func (l *Layer) CreateImageView(allocationCallbacks *driver.AllocationCallbacks, info resource.ImageViewCreateInfo) (resource.ImageView, common.VkResult, error) {
	l.logger.Debug("Layer::CreateImageView")

	if err := l.checkImageViewCreateInfo(info); err != nil {
		res, err := l.invalid("CreateImageView", err)
		return resource.NullImageView, res, err
	}

	return l.device.CreateImageView(allocationCallbacks, info)
}

// DestroyImageView rejects stale handles, then forwards to resource.Device.DestroyImageView
func (l *Layer) DestroyImageView(allocationCallbacks *driver.AllocationCallbacks, view resource.ImageView) (common.VkResult, error) {
	l.logger.Debug("Layer::DestroyImageView")

	if view != resource.NullImageView && !l.device.IsImageViewLive(view) {
		return l.invalidf("DestroyImageView", "image view %d is not a live image view", uint64(view))
	}

	err := l.device.DestroyImageView(allocationCallbacks, view)
	if err != nil {
		return core1_0.VKErrorFeatureNotPresent, err
	}
	return core1_0.VKSuccess, nil
}
