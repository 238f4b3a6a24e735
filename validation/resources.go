package validation

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"github.com/vkngwrapper/rpivk/memutils"
	"github.com/vkngwrapper/rpivk/resource"
	"golang.org/x/exp/slog"
)

// CreateBuffer validates info and forwards to resource.Device.CreateBuffer
func (l *Layer) CreateBuffer(allocationCallbacks *driver.AllocationCallbacks, info resource.BufferCreateInfo) (resource.Buffer, common.VkResult, error) {
	l.logger.Debug("Layer::CreateBuffer", slog.Int("Size", info.Size))

	if info.Size <= 0 {
		res, err := l.invalidf("CreateBuffer", "buffer size must be positive, but was %d", info.Size)
		return resource.NullBuffer, res, err
	}
	if err := checkSharingMode(info.SharingMode, info.QueueFamilyIndices); err != nil {
		res, err := l.invalid("CreateBuffer", err)
		return resource.NullBuffer, res, err
	}

	return l.device.CreateBuffer(allocationCallbacks, info)
}

// DestroyBuffer rejects stale handles, then forwards to resource.Device.DestroyBuffer
func (l *Layer) DestroyBuffer(allocationCallbacks *driver.AllocationCallbacks, buffer resource.Buffer) (common.VkResult, error) {
	l.logger.Debug("Layer::DestroyBuffer")

	if buffer != resource.NullBuffer && !l.device.IsBufferLive(buffer) {
		return l.invalidf("DestroyBuffer", "buffer %d is not a live buffer", uint64(buffer))
	}

	err := l.device.DestroyBuffer(allocationCallbacks, buffer)
	if err != nil {
		return core1_0.VKErrorFeatureNotPresent, err
	}
	return core1_0.VKSuccess, nil
}

// GetBufferMemoryRequirements rejects stale handles, then forwards to
// resource.Device.GetBufferMemoryRequirements
func (l *Layer) GetBufferMemoryRequirements(buffer resource.Buffer) (core1_0.MemoryRequirements, common.VkResult, error) {
	if !l.device.IsBufferLive(buffer) {
		res, err := l.invalidf("GetBufferMemoryRequirements", "buffer %d is not a live buffer", uint64(buffer))
		return core1_0.MemoryRequirements{}, res, err
	}

	return l.device.GetBufferMemoryRequirements(buffer), core1_0.VKSuccess, nil
}

// maxMipLevels is the length of the full mip chain for an image with the provided extent
func maxMipLevels(extent core1_0.Extent3D) int {
	largest := extent.Width
	if extent.Height > largest {
		largest = extent.Height
	}
	if extent.Depth > largest {
		largest = extent.Depth
	}

	levels := 1
	for largest > 1 {
		largest >>= 1
		levels++
	}
	return levels
}

func checkImageCreateInfo(info resource.ImageCreateInfo) error {
	if _, supported := resource.TexelSize(info.Format); !supported {
		return errors.Newf("format %d is not supported", int(info.Format))
	}

	extent := info.Extent
	if extent.Width < 1 || extent.Height < 1 || extent.Depth < 1 {
		return errors.Newf("every dimension of the extent must be at least 1, but was %dx%dx%d", extent.Width, extent.Height, extent.Depth)
	}

	switch info.ImageType {
	case core1_0.ImageType1D:
		if extent.Height != 1 || extent.Depth != 1 {
			return errors.Newf("1D images must have a height and depth of 1, but were %d and %d", extent.Height, extent.Depth)
		}
	case core1_0.ImageType2D:
		if extent.Depth != 1 {
			return errors.Newf("2D images must have a depth of 1, but was %d", extent.Depth)
		}
	case core1_0.ImageType3D:
		if info.ArrayLayers != 1 {
			return errors.Newf("3D images must have exactly 1 array layer, but had %d", info.ArrayLayers)
		}
	default:
		return errors.Newf("unknown image type %d", int(info.ImageType))
	}

	if info.MipLevels < 1 || info.MipLevels > maxMipLevels(extent) {
		return errors.Newf("an image with extent %dx%dx%d may have between 1 and %d mip levels, but had %d",
			extent.Width, extent.Height, extent.Depth, maxMipLevels(extent), info.MipLevels)
	}
	if info.ArrayLayers < 1 {
		return errors.Newf("an image must have at least 1 array layer, but had %d", info.ArrayLayers)
	}

	samples := int(info.Samples)
	if samples < 1 {
		return errors.Newf("an image must have at least 1 sample, but had %d", samples)
	}
	if err := memutils.CheckPow2(samples, "image sample count"); err != nil {
		return err
	}
	if samples > 1 && (info.MipLevels != 1 || info.Tiling != core1_0.ImageTilingOptimal) {
		return errors.New("multisampled images must have optimal tiling and exactly 1 mip level")
	}

	return checkSharingMode(info.SharingMode, info.QueueFamilyIndices)
}

// CreateImage validates info and forwards to resource.Device.CreateImage
func (l *Layer) CreateImage(allocationCallbacks *driver.AllocationCallbacks, info resource.ImageCreateInfo) (resource.Image, common.VkResult, error) {
	l.logger.Debug("Layer::CreateImage")

	if err := checkImageCreateInfo(info); err != nil {
		res, err := l.invalid("CreateImage", err)
		return resource.NullImage, res, err
	}

	return l.device.CreateImage(allocationCallbacks, info)
}

// DestroyImage rejects stale handles, then forwards to resource.Device.DestroyImage
func (l *Layer) DestroyImage(allocationCallbacks *driver.AllocationCallbacks, image resource.Image) (common.VkResult, error) {
	l.logger.Debug("Layer::DestroyImage")

	if image != resource.NullImage && !l.device.IsImageLive(image) {
		return l.invalidf("DestroyImage", "image %d is not a live image", uint64(image))
	}

	err := l.device.DestroyImage(allocationCallbacks, image)
	if err != nil {
		return core1_0.VKErrorFeatureNotPresent, err
	}
	return core1_0.VKSuccess, nil
}

// GetImageMemoryRequirements rejects stale handles, then forwards to
// resource.Device.GetImageMemoryRequirements
func (l *Layer) GetImageMemoryRequirements(image resource.Image) (core1_0.MemoryRequirements, common.VkResult, error) {
	if !l.device.IsImageLive(image) {
		res, err := l.invalidf("GetImageMemoryRequirements", "image %d is not a live image", uint64(image))
		return core1_0.MemoryRequirements{}, res, err
	}

	return l.device.GetImageMemoryRequirements(image), core1_0.VKSuccess, nil
}
