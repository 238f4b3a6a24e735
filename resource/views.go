package resource

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v2/common"
	"github.com/vkngwrapper/core/v2/core1_0"
	"github.com/vkngwrapper/core/v2/driver"
	"golang.org/x/exp/slog"
)

// BufferViewCreateInfo describes a typed view over a range of a buffer
type BufferViewCreateInfo struct {
	Buffer Buffer
	Format core1_0.Format
	Offset int
	// Range is the number of bytes in the view, or common.WholeSize for every byte from Offset
	// to the end of the buffer
	Range int
}

// ImageViewCreateInfo describes a view over a subresource range of an image
type ImageViewCreateInfo struct {
	Image            Image
	ViewType         core1_0.ImageViewType
	Format           core1_0.Format
	Components       core1_0.ComponentMapping
	SubresourceRange core1_0.ImageSubresourceRange
}

type bufferViewObject struct {
	buffer    Buffer
	format    core1_0.Format
	offset    int
	rangeSize int
}

type imageViewObject struct {
	image            Image
	viewType         core1_0.ImageViewType
	format           core1_0.Format
	components       core1_0.ComponentMapping
	subresourceRange core1_0.ImageSubresourceRange
}

// CreateBufferView creates a view over a live buffer. The view does not own the buffer, and
// the caller must not use the view after the buffer is destroyed.
//
// The offset and range are copied as given: checking that they lie within the buffer is
// the responsibility of the validation layer.
func (d *Device) CreateBufferView(allocationCallbacks *driver.AllocationCallbacks, info BufferViewCreateInfo) (BufferView, common.VkResult, error) {
	d.checkLive()
	d.logger.Debug("Device::CreateBufferView", slog.Int("Offset", info.Offset), slog.Int("Range", info.Range))

	res, err := checkAllocationCallbacks(allocationCallbacks, "CreateBufferView")
	if err != nil {
		return NullBufferView, res, err
	}

	d.lookupBuffer(info.Buffer, "CreateBufferView")

	if !d.reserveHostObjects(1) {
		d.logger.Debug("    Device::CreateBufferView FAILED", slog.Int("HostObjects", d.HostObjectCount()))
		return NullBufferView, core1_0.VKErrorOutOfHostMemory, errors.Wrap(ErrOutOfHostMemory, "could not allocate a buffer view")
	}

	return d.bufferViews.Insert(&bufferViewObject{
		buffer:    info.Buffer,
		format:    info.Format,
		offset:    info.Offset,
		rangeSize: info.Range,
	}), core1_0.VKSuccess, nil
}

// DestroyBufferView releases a buffer view. The buffer it views is unaffected. Destroying
// NullBufferView does nothing.
func (d *Device) DestroyBufferView(allocationCallbacks *driver.AllocationCallbacks, view BufferView) error {
	d.checkLive()
	d.logger.Debug("Device::DestroyBufferView")

	if _, err := checkAllocationCallbacks(allocationCallbacks, "DestroyBufferView"); err != nil {
		return err
	}

	if view == NullBufferView {
		return nil
	}

	if _, ok := d.bufferViews.Remove(view); !ok {
		d.reportBadHandle(ResourceKindBufferView, uint64(view), d.bufferViews.Issued(view), "DestroyBufferView")
	}
	d.releaseHostObjects(1)

	return nil
}

// BufferViewInfo returns the parameters a live buffer view was created with
func (d *Device) BufferViewInfo(view BufferView) BufferViewCreateInfo {
	d.checkLive()

	obj := d.lookupBufferView(view, "BufferViewInfo")
	return BufferViewCreateInfo{
		Buffer: obj.buffer,
		Format: obj.format,
		Offset: obj.offset,
		Range:  obj.rangeSize,
	}
}

// BufferViewRange returns the number of bytes a live buffer view covers. A view created with
// common.WholeSize covers the rest of its buffer past its offset, which is 0 if the offset
// lies past the end of the buffer. The view's buffer must still be live.
func (d *Device) BufferViewRange(view BufferView) int {
	d.checkLive()

	obj := d.lookupBufferView(view, "BufferViewRange")
	if obj.rangeSize != common.WholeSize {
		return obj.rangeSize
	}

	remaining := d.lookupBuffer(obj.buffer, "BufferViewRange").size - obj.offset
	if remaining < 0 {
		return 0
	}
	return remaining
}

// CreateImageView creates a view over a live image. The view does not own the image, and
// the caller must not use the view after the image is destroyed.
//
// The subresource range is copied as given: checking that it lies within the image is the
// responsibility of the validation layer.
func (d *Device) CreateImageView(allocationCallbacks *driver.AllocationCallbacks, info ImageViewCreateInfo) (ImageView, common.VkResult, error) {
	d.checkLive()
	d.logger.Debug("Device::CreateImageView")

	res, err := checkAllocationCallbacks(allocationCallbacks, "CreateImageView")
	if err != nil {
		return NullImageView, res, err
	}

	d.lookupImage(info.Image, "CreateImageView")

	if !d.reserveHostObjects(1) {
		d.logger.Debug("    Device::CreateImageView FAILED", slog.Int("HostObjects", d.HostObjectCount()))
		return NullImageView, core1_0.VKErrorOutOfHostMemory, errors.Wrap(ErrOutOfHostMemory, "could not allocate an image view")
	}

	return d.imageViews.Insert(&imageViewObject{
		image:            info.Image,
		viewType:         info.ViewType,
		format:           info.Format,
		components:       info.Components,
		subresourceRange: info.SubresourceRange,
	}), core1_0.VKSuccess, nil
}

// DestroyImageView releases an image view. The image it views is unaffected. Destroying
// NullImageView does nothing.
func (d *Device) DestroyImageView(allocationCallbacks *driver.AllocationCallbacks, view ImageView) error {
	d.checkLive()
	d.logger.Debug("Device::DestroyImageView")

	if _, err := checkAllocationCallbacks(allocationCallbacks, "DestroyImageView"); err != nil {
		return err
	}

	if view == NullImageView {
		return nil
	}

	if _, ok := d.imageViews.Remove(view); !ok {
		d.reportBadHandle(ResourceKindImageView, uint64(view), d.imageViews.Issued(view), "DestroyImageView")
	}
	d.releaseHostObjects(1)

	return nil
}

// ImageViewInfo returns the parameters a live image view was created with
func (d *Device) ImageViewInfo(view ImageView) ImageViewCreateInfo {
	d.checkLive()

	obj := d.lookupImageView(view, "ImageViewInfo")
	return ImageViewCreateInfo{
		Image:            obj.image,
		ViewType:         obj.viewType,
		Format:           obj.format,
		Components:       obj.components,
		SubresourceRange: obj.subresourceRange,
	}
}
